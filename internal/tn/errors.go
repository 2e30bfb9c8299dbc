package tn

import "fmt"

// ShapeMismatchError reports two tensors disagreeing on a shared index's
// dimension. Always fatal, never recovered.
type ShapeMismatchError struct {
	Ind  string
	DimA int
	DimB int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("index %q has conflicting dimensions %d and %d", e.Ind, e.DimA, e.DimB)
}

// ConflictError reports an index rename that collides with an existing index
// of a different dimension.
type ConflictError struct {
	Old    string
	New    string
	DimOld int
	DimNew int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot rename index %q to %q: %q already exists with dimension %d, not %d",
		e.Old, e.New, e.New, e.DimNew, e.DimOld)
}

// LogicError reports a structurally impossible request: an output index
// absent from every input, a malformed contraction path, and the like.
// Surfaced synchronously before any computation is performed.
type LogicError struct {
	Reason string
}

func (e *LogicError) Error() string {
	return "logic error: " + e.Reason
}

func logicErrorf(format string, args ...any) *LogicError {
	return &LogicError{Reason: fmt.Sprintf(format, args...)}
}
