package tn

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// IndexRegistry tracks, for a network, which indices exist, their dimension,
// and the multiset of tensors referencing each index. It is the single
// source of truth for detecting hyperedges (indices shared by three or more
// tensors, or repeated within one tensor) and open indices (appearing
// exactly once).
//
// The registry must be kept exactly consistent with the live tensor
// collection; tensors owned by a network are renamed through the network,
// never by mutating their index lists directly.
type IndexRegistry struct {
	dims   map[string]int
	owners map[string]map[int]int // index -> tid -> multiplicity
}

// NewIndexRegistry creates an empty registry.
func NewIndexRegistry() *IndexRegistry {
	return &IndexRegistry{
		dims:   map[string]int{},
		owners: map[string]map[int]int{},
	}
}

// Register records every index of t as referenced by tid. It fails with a
// ShapeMismatchError if any index disagrees with an already known dimension,
// leaving the registry untouched.
func (r *IndexRegistry) Register(tid int, t *Tensor) error {
	shape := t.Shape()
	for i, ind := range t.inds {
		if d, ok := r.dims[ind]; ok && d != shape[i] {
			return &ShapeMismatchError{Ind: ind, DimA: d, DimB: shape[i]}
		}
	}
	// An index repeated within t must also self-agree.
	local := map[string]int{}
	for i, ind := range t.inds {
		if d, ok := local[ind]; ok && d != shape[i] {
			return &ShapeMismatchError{Ind: ind, DimA: d, DimB: shape[i]}
		}
		local[ind] = shape[i]
	}

	for i, ind := range t.inds {
		r.dims[ind] = shape[i]
		m := r.owners[ind]
		if m == nil {
			m = map[int]int{}
			r.owners[ind] = m
		}
		m[tid]++
	}
	return nil
}

// Unregister removes tid's references to every index of t, dropping indices
// that no tensor references anymore.
func (r *IndexRegistry) Unregister(tid int, t *Tensor) {
	for _, ind := range t.inds {
		m := r.owners[ind]
		if m == nil {
			continue
		}
		m[tid]--
		if m[tid] <= 0 {
			delete(m, tid)
		}
		if len(m) == 0 {
			delete(r.owners, ind)
			delete(r.dims, ind)
		}
	}
}

// Reindex renames old to new in the bookkeeping. Renaming onto an existing
// index of the same dimension merges the two (this is how bonds are formed);
// a differing dimension is a ConflictError.
func (r *IndexRegistry) Reindex(old, new string) error {
	if old == new {
		return nil
	}
	dim, ok := r.dims[old]
	if !ok {
		return logicErrorf("reindex: unknown index %q", old)
	}
	if d, ok := r.dims[new]; ok && d != dim {
		return &ConflictError{Old: old, New: new, DimOld: dim, DimNew: d}
	}

	dst := r.owners[new]
	if dst == nil {
		dst = map[int]int{}
		r.owners[new] = dst
	}
	for tid, n := range r.owners[old] {
		dst[tid] += n
	}
	delete(r.owners, old)
	delete(r.dims, old)
	r.dims[new] = dim
	return nil
}

// Dim returns the dimension of ind.
func (r *IndexRegistry) Dim(ind string) (int, bool) {
	d, ok := r.dims[ind]
	return d, ok
}

// Neighbors returns the sorted tensor ids referencing ind.
func (r *IndexRegistry) Neighbors(ind string) []int {
	m := r.owners[ind]
	tids := make([]int, 0, len(m))
	for tid := range m {
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	return tids
}

// Multiplicity returns the total number of axes across all tensors carrying
// ind.
func (r *IndexRegistry) Multiplicity(ind string) int {
	total := 0
	for _, n := range r.owners[ind] {
		total += n
	}
	return total
}

// IsHyper reports whether ind is a hyperedge: referenced by three or more
// tensors, or more than once within a single tensor.
func (r *IndexRegistry) IsHyper(ind string) bool {
	m := r.owners[ind]
	if len(m) >= 3 {
		return true
	}
	for _, n := range m {
		if n >= 2 {
			return true
		}
	}
	return false
}

// IsOpen reports whether ind appears exactly once across the network, making
// it part of the external interface.
func (r *IndexRegistry) IsOpen(ind string) bool {
	return r.Multiplicity(ind) == 1
}

// Inds returns all known indices, sorted.
func (r *IndexRegistry) Inds() []string {
	inds := make([]string, 0, len(r.dims))
	for ind := range r.dims {
		inds = append(inds, ind)
	}
	sort.Strings(inds)
	return inds
}

// RandInd generates a fresh index label with the given prefix, unlikely to
// collide with anything in scope. Used when composing networks whose inner
// indices clash.
func RandInd(prefix string) string {
	return "_" + prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
