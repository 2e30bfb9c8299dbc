// Package tn implements the labeled-tensor data model: tensors addressed by
// named indices and tags, the index registry, and tensor networks.
package tn

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sjdu10/quimb/internal/tensor"
)

// Tensor is a labeled dense array: a raw data buffer, an ordered sequence of
// index labels (one per axis), and a free-form tag set. Index order fixes
// the physical axis-to-index map and affects performance, not results, of
// contraction.
type Tensor struct {
	raw     *tensor.RawTensor
	inds    []string
	tags    map[string]struct{}
	backend tensor.Backend
}

// New creates a labeled tensor over raw. The number of index labels must
// equal the buffer rank.
func New(raw *tensor.RawTensor, inds []string, b tensor.Backend, tags ...string) (*Tensor, error) {
	if len(inds) != len(raw.Shape()) {
		return nil, logicErrorf("tensor with %d indices over rank-%d data", len(inds), len(raw.Shape()))
	}
	t := &Tensor{
		raw:     raw,
		inds:    append([]string(nil), inds...),
		tags:    map[string]struct{}{},
		backend: b,
	}
	for _, tag := range tags {
		t.tags[tag] = struct{}{}
	}
	return t, nil
}

// Randn creates a tensor with normally distributed entries.
func Randn(inds []string, dims []int, dtype tensor.DataType, b tensor.Backend, rng *rand.Rand, tags ...string) (*Tensor, error) {
	if len(inds) != len(dims) {
		return nil, logicErrorf("tensor with %d indices over %d dimensions", len(inds), len(dims))
	}
	raw := tensor.Randn(tensor.Shape(dims), dtype, b.Device(), rng)
	return New(raw, inds, b, tags...)
}

// FromSlice creates a labeled tensor from a Go slice.
func FromSlice[T tensor.DType](data []T, inds []string, dims []int, b tensor.Backend, tags ...string) (*Tensor, error) {
	raw, err := tensor.FromSlice(data, tensor.Shape(dims), b.Device())
	if err != nil {
		return nil, err
	}
	return New(raw, inds, b, tags...)
}

// Raw returns the underlying raw tensor.
func (t *Tensor) Raw() *tensor.RawTensor { return t.raw }

// Backend returns the tensor's compute backend.
func (t *Tensor) Backend() tensor.Backend { return t.backend }

// Shape returns the tensor's shape.
func (t *Tensor) Shape() tensor.Shape { return t.raw.Shape() }

// DType returns the tensor's data type.
func (t *Tensor) DType() tensor.DataType { return t.raw.DType() }

// Inds returns a copy of the ordered index labels.
func (t *Tensor) Inds() []string {
	return append([]string(nil), t.inds...)
}

// HasInd reports whether t carries ind on any axis.
func (t *Tensor) HasInd(ind string) bool {
	for _, x := range t.inds {
		if x == ind {
			return true
		}
	}
	return false
}

// IndDim returns the dimension of ind on t.
func (t *Tensor) IndDim(ind string) (int, bool) {
	for i, x := range t.inds {
		if x == ind {
			return t.raw.Shape()[i], true
		}
	}
	return 0, false
}

// Tags returns the tensor's tags, sorted.
func (t *Tensor) Tags() []string {
	tags := make([]string, 0, len(t.tags))
	for tag := range t.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// HasTag reports whether t carries tag.
func (t *Tensor) HasTag(tag string) bool {
	_, ok := t.tags[tag]
	return ok
}

// AddTag adds a tag.
func (t *Tensor) AddTag(tag string) { t.tags[tag] = struct{}{} }

// DropTag removes a tag if present.
func (t *Tensor) DropTag(tag string) { delete(t.tags, tag) }

// Clone returns an independent copy. The data buffer is shared copy-on-write.
func (t *Tensor) Clone() *Tensor {
	tags := make(map[string]struct{}, len(t.tags))
	for tag := range t.tags {
		tags[tag] = struct{}{}
	}
	return &Tensor{
		raw:     t.raw.Clone(),
		inds:    append([]string(nil), t.inds...),
		tags:    tags,
		backend: t.backend,
	}
}

// Reindex renames indices in-place according to a bijective mapping.
// A mapping that sends two distinct indices of t to the same label is a
// ConflictError. Tensors owned by a network must be renamed through the
// network so the registry stays consistent.
func (t *Tensor) Reindex(mapping map[string]string) error {
	next := make([]string, len(t.inds))
	for i, ind := range t.inds {
		if to, ok := mapping[ind]; ok {
			next[i] = to
		} else {
			next[i] = ind
		}
	}
	// Bijectivity over the affected labels: distinct sources must stay
	// distinct, except for labels already equal on t.
	seen := map[string]string{}
	for i, ind := range t.inds {
		if prev, ok := seen[next[i]]; ok && prev != ind {
			return &ConflictError{Old: ind, New: next[i], DimOld: t.raw.Shape()[i], DimNew: t.raw.Shape()[i]}
		}
		seen[next[i]] = ind
	}
	t.inds = next
	return nil
}

// Conj returns the element-wise conjugate. Index order is untouched: index
// semantics, not a physical transpose, define the conjugate transpose.
func (t *Tensor) Conj() *Tensor {
	out := t.Clone()
	out.raw = t.backend.Conj(t.raw)
	return out
}

// Scale multiplies the tensor's entries by s, in place with respect to the
// labels: indices and tags are untouched.
func (t *Tensor) Scale(s complex128) {
	t.raw = t.backend.Scale(t.raw, s)
}

// Norm returns the Frobenius norm: the square root of the self-inner-product
// of t with its own conjugate over all indices.
func (t *Tensor) Norm() float64 {
	var acc float64
	switch t.raw.DType() {
	case tensor.Float32:
		for _, v := range t.raw.AsFloat32() {
			acc += float64(v) * float64(v)
		}
	case tensor.Float64:
		for _, v := range t.raw.AsFloat64() {
			acc += v * v
		}
	case tensor.Complex64:
		for _, v := range t.raw.AsComplex64() {
			acc += float64(real(v))*float64(real(v)) + float64(imag(v))*float64(imag(v))
		}
	case tensor.Complex128:
		for _, v := range t.raw.AsComplex128() {
			acc += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(acc)
}

// Normalize scales t to unit Frobenius norm.
func (t *Tensor) Normalize() error {
	n := t.Norm()
	if n == 0 {
		return logicErrorf("cannot normalize a zero tensor")
	}
	t.Scale(complex(1/n, 0))
	return nil
}

// Scalar returns the value of a rank-0 tensor.
func (t *Tensor) Scalar() (complex128, error) {
	if t.raw.NumElements() != 1 || len(t.inds) != 0 {
		return 0, logicErrorf("scalar value of tensor with indices %v", t.inds)
	}
	switch t.raw.DType() {
	case tensor.Float32:
		return complex(float64(t.raw.AsFloat32()[0]), 0), nil
	case tensor.Float64:
		return complex(t.raw.AsFloat64()[0], 0), nil
	case tensor.Complex64:
		return complex128(t.raw.AsComplex64()[0]), nil
	default:
		return t.raw.AsComplex128()[0], nil
	}
}

// ContractWith performs the generalized pairwise contraction of t and other.
//
// With outputInds nil, standard einsum summation semantics apply: indices
// appearing in exactly one operand axis across both tensors survive (in
// first-appearance order, t's axes first) and everything else is summed,
// including an index repeated within one operand, which is traced.
//
// With outputInds given, exactly those indices survive, in that order;
// shared indices not requested are summed, and indices appearing in only
// one operand but requested survive as outer-product/broadcast axes.
//
// Fails with a ShapeMismatchError if any shared index disagrees on
// dimension, and a LogicError if a requested output index is absent from
// both operands.
func (t *Tensor) ContractWith(other *Tensor, outputInds []string) (*Tensor, error) {
	counts := map[string]int{}
	for _, ind := range t.inds {
		counts[ind]++
	}
	for _, ind := range other.inds {
		counts[ind]++
	}

	// Shared indices must agree on dimension.
	for ind := range counts {
		da, aok := t.IndDim(ind)
		db, bok := other.IndDim(ind)
		if aok && bok && da != db {
			return nil, &ShapeMismatchError{Ind: ind, DimA: da, DimB: db}
		}
	}

	if outputInds == nil {
		for _, ind := range append(t.Inds(), other.inds...) {
			if counts[ind] == 1 {
				outputInds = append(outputInds, ind)
			}
			counts[ind] = 0 // first appearance only
		}
		if outputInds == nil {
			outputInds = []string{}
		}
	} else {
		seen := map[string]bool{}
		for _, ind := range outputInds {
			if !t.HasInd(ind) && !other.HasInd(ind) {
				return nil, logicErrorf("output index %q absent from both operands", ind)
			}
			if seen[ind] {
				return nil, logicErrorf("output index %q requested twice", ind)
			}
			seen[ind] = true
		}
	}

	// Integer labels for the backend primitive.
	labels := map[string]int{}
	label := func(ind string) int {
		if l, ok := labels[ind]; ok {
			return l
		}
		l := len(labels)
		labels[ind] = l
		return l
	}
	spec := tensor.ContractSpec{
		A:      make([]int, len(t.inds)),
		B:      make([]int, len(other.inds)),
		Output: make([]int, len(outputInds)),
	}
	for i, ind := range t.inds {
		spec.A[i] = label(ind)
	}
	for i, ind := range other.inds {
		spec.B[i] = label(ind)
	}
	for i, ind := range outputInds {
		spec.Output[i] = label(ind)
	}

	raw := t.backend.Contract(t.raw, other.raw, spec)
	return New(raw, outputInds, t.backend)
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, inds=%v, tags=%v)", t.raw.Shape(), t.inds, t.Tags())
}
