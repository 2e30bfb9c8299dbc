package tn

import (
	"fmt"
	"sort"
)

// TensorNetwork is an unordered collection of tensors plus derived index and
// tag maps for fast lookup. Each tensor is exclusively owned by exactly one
// network unless explicitly shared; mutating a member tensor's index list
// directly (rather than through the network) violates the registry
// invariant and is disallowed.
type TensorNetwork struct {
	tensors map[int]*Tensor
	nextTid int
	reg     *IndexRegistry
	tags    map[string]map[int]struct{}
}

// NewNetwork creates a network from a sequence of tensors. Tensors sharing
// an index must agree on its dimension.
func NewNetwork(ts ...*Tensor) (*TensorNetwork, error) {
	net := &TensorNetwork{
		tensors: map[int]*Tensor{},
		reg:     NewIndexRegistry(),
		tags:    map[string]map[int]struct{}{},
	}
	for _, t := range ts {
		if _, err := net.Add(t); err != nil {
			return nil, err
		}
	}
	return net, nil
}

// Add inserts t into the network, taking ownership, and returns its tensor
// id. Index and tag maps are updated atomically: a dimension disagreement
// leaves the network untouched.
func (net *TensorNetwork) Add(t *Tensor) (int, error) {
	tid := net.nextTid
	if err := net.reg.Register(tid, t); err != nil {
		return 0, err
	}
	net.nextTid++
	net.tensors[tid] = t
	for tag := range t.tags {
		net.tagTid(tag, tid)
	}
	return tid, nil
}

// Remove deletes the tensor with the given id and returns it.
func (net *TensorNetwork) Remove(tid int) (*Tensor, error) {
	t, ok := net.tensors[tid]
	if !ok {
		return nil, logicErrorf("no tensor with id %d", tid)
	}
	net.reg.Unregister(tid, t)
	for tag := range t.tags {
		net.untagTid(tag, tid)
	}
	delete(net.tensors, tid)
	return t, nil
}

// Replace substitutes the tensor at tid, keeping the id. Typically used to
// install a contraction result or an ALS update in place.
func (net *TensorNetwork) Replace(tid int, t *Tensor) error {
	old, ok := net.tensors[tid]
	if !ok {
		return logicErrorf("no tensor with id %d", tid)
	}
	net.reg.Unregister(tid, old)
	if err := net.reg.Register(tid, t); err != nil {
		// Roll back so the registry still matches the collection.
		if rerr := net.reg.Register(tid, old); rerr != nil {
			panic(fmt.Sprintf("registry rollback failed: %v", rerr))
		}
		return err
	}
	for tag := range old.tags {
		net.untagTid(tag, tid)
	}
	for tag := range t.tags {
		net.tagTid(tag, tid)
	}
	net.tensors[tid] = t
	return nil
}

func (net *TensorNetwork) tagTid(tag string, tid int) {
	m := net.tags[tag]
	if m == nil {
		m = map[int]struct{}{}
		net.tags[tag] = m
	}
	m[tid] = struct{}{}
}

func (net *TensorNetwork) untagTid(tag string, tid int) {
	if m := net.tags[tag]; m != nil {
		delete(m, tid)
		if len(m) == 0 {
			delete(net.tags, tag)
		}
	}
}

// NumTensors returns the number of tensors in the network.
func (net *TensorNetwork) NumTensors() int { return len(net.tensors) }

// Tids returns all tensor ids, sorted.
func (net *TensorNetwork) Tids() []int {
	tids := make([]int, 0, len(net.tensors))
	for tid := range net.tensors {
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	return tids
}

// Tensor returns the tensor with the given id.
func (net *TensorNetwork) Tensor(tid int) (*Tensor, bool) {
	t, ok := net.tensors[tid]
	return t, ok
}

// Tensors returns the network's tensors in tid order.
func (net *TensorNetwork) Tensors() []*Tensor {
	tids := net.Tids()
	ts := make([]*Tensor, len(tids))
	for i, tid := range tids {
		ts[i] = net.tensors[tid]
	}
	return ts
}

// Registry exposes the network's index registry for read-only queries
// (dimensions, neighbors, hyperedge and openness tests).
func (net *TensorNetwork) Registry() *IndexRegistry { return net.reg }

// TidsWithTag returns the sorted ids of tensors carrying tag.
func (net *TensorNetwork) TidsWithTag(tag string) []int {
	m := net.tags[tag]
	tids := make([]int, 0, len(m))
	for tid := range m {
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	return tids
}

// TidsWithInd returns the sorted ids of tensors referencing ind.
func (net *TensorNetwork) TidsWithInd(ind string) []int {
	return net.reg.Neighbors(ind)
}

// OpenInds returns the network's open indices (appearing exactly once),
// sorted. They form the network's external interface.
func (net *TensorNetwork) OpenInds() []string {
	var open []string
	for _, ind := range net.reg.Inds() {
		if net.reg.IsOpen(ind) {
			open = append(open, ind)
		}
	}
	return open
}

// InnerInds returns the network's non-open indices, sorted.
func (net *TensorNetwork) InnerInds() []string {
	var inner []string
	for _, ind := range net.reg.Inds() {
		if !net.reg.IsOpen(ind) {
			inner = append(inner, ind)
		}
	}
	return inner
}

// Reindex renames indices network-wide. Renaming onto an existing index of
// a different dimension is a ConflictError; the same dimension merges the
// indices, forming a bond.
func (net *TensorNetwork) Reindex(mapping map[string]string) error {
	// Validate against the registry first so a failure leaves the network
	// untouched.
	for old, new := range mapping {
		dim, ok := net.reg.Dim(old)
		if !ok {
			continue
		}
		if d, ok := net.reg.Dim(new); ok && d != dim {
			return &ConflictError{Old: old, New: new, DimOld: dim, DimNew: d}
		}
	}
	// Per-tensor bijectivity: the rename may not merge two axes of one
	// tensor into a single label.
	for _, t := range net.tensors {
		seen := map[string]string{}
		for _, ind := range t.inds {
			to := ind
			if m, ok := mapping[ind]; ok {
				to = m
			}
			if prev, ok := seen[to]; ok && prev != ind {
				dim, _ := net.reg.Dim(ind)
				return &ConflictError{Old: ind, New: to, DimOld: dim, DimNew: dim}
			}
			seen[to] = ind
		}
	}
	for _, t := range net.tensors {
		if err := t.Reindex(mapping); err != nil {
			return err
		}
	}
	// Rebuild the registry so all renames apply simultaneously.
	reg := NewIndexRegistry()
	for tid, t := range net.tensors {
		if err := reg.Register(tid, t); err != nil {
			return err
		}
	}
	net.reg = reg
	return nil
}

// Clone returns a deep copy of the network. Tensor ids are preserved.
func (net *TensorNetwork) Clone() *TensorNetwork {
	out := &TensorNetwork{
		tensors: make(map[int]*Tensor, len(net.tensors)),
		nextTid: net.nextTid,
		reg:     NewIndexRegistry(),
		tags:    map[string]map[int]struct{}{},
	}
	for tid, t := range net.tensors {
		c := t.Clone()
		out.tensors[tid] = c
		if err := out.reg.Register(tid, c); err != nil {
			panic(fmt.Sprintf("clone of consistent network failed: %v", err))
		}
		for tag := range c.tags {
			out.tagTid(tag, tid)
		}
	}
	return out
}

// Conj returns a deep copy with every tensor conjugated. Index order and
// labels are untouched.
func (net *TensorNetwork) Conj() *TensorNetwork {
	out := net.Clone()
	for tid, t := range out.tensors {
		conj := t.Conj()
		out.tensors[tid] = conj
	}
	return out
}

// Combine composes net with other into a new network containing copies of
// both tensor collections. Inner indices of other that collide with any of
// net's indices are renamed to fresh labels first, so accidental label reuse
// never creates spurious bonds; shared open indices join as intended.
func (net *TensorNetwork) Combine(other *TensorNetwork) (*TensorNetwork, error) {
	o := other.Clone()

	mangle := map[string]string{}
	for _, ind := range o.InnerInds() {
		if _, ok := net.reg.Dim(ind); ok {
			mangle[ind] = RandInd("b")
		}
	}
	if len(mangle) > 0 {
		if err := o.Reindex(mangle); err != nil {
			return nil, err
		}
	}

	out := net.Clone()
	// Re-id other's tensors into the combined network.
	for _, tid := range o.Tids() {
		t := o.tensors[tid]
		if _, err := out.Add(t); err != nil {
			return nil, err
		}
	}
	return out, nil
}
