package contract

import (
	"math"
	"math/bits"
)

// planOptimal finds the path with minimum total scalar operation count by
// dynamic programming over subsets of the inputs. Exponential in the input
// count; callers gate it behind a threshold.
func planOptimal(inputs [][]string, output []string, dims map[string]int) (*Path, error) {
	n := len(inputs)
	if n > 20 {
		return nil, logicf("exhaustive planning over %d tensors is intractable", n)
	}

	inOutput := map[string]bool{}
	for _, ind := range output {
		inOutput[ind] = true
	}
	// Bitmask of the inputs holding each index.
	holders := map[string]uint32{}
	for i, inds := range inputs {
		for _, ind := range inds {
			holders[ind] |= 1 << uint(i)
		}
	}

	full := uint32(1)<<uint(n) - 1

	// kept[S] is the index set the contraction of subset S must keep: every
	// index held outside S or pinned by the output. keptSize[S] is its
	// element count.
	kept := make([]map[string]int, full+1)
	keptSize := make([]float64, full+1)
	subsetInds := func(s uint32) map[string]int {
		out := map[string]int{}
		for ind, h := range holders {
			if h&s != 0 && (h&^s != 0 || inOutput[ind]) {
				out[ind] = 1
			}
		}
		return out
	}
	for s := uint32(1); s <= full; s++ {
		kept[s] = subsetInds(s)
		keptSize[s] = nodeSize(kept[s], dims)
	}

	const inf = math.MaxFloat64
	best := make([]float64, full+1)
	split := make([]uint32, full+1)
	for s := uint32(1); s <= full; s++ {
		if bits.OnesCount32(s) == 1 {
			best[s] = 0
			continue
		}
		best[s] = inf
	}

	// Subsets in increasing popcount order so both halves of every split
	// are already solved.
	order := make([][]uint32, n+1)
	for s := uint32(1); s <= full; s++ {
		c := bits.OnesCount32(s)
		order[c] = append(order[c], s)
	}

	// pairCost(l, r) is the operation count of contracting the results of
	// subsets l and r: the product over the union of their kept indices.
	pairCost := func(l, r uint32) float64 {
		cost := 1.0
		for ind := range kept[l] {
			cost *= float64(dims[ind])
		}
		for ind := range kept[r] {
			if _, dup := kept[l][ind]; !dup {
				cost *= float64(dims[ind])
			}
		}
		return cost
	}

	for c := 2; c <= n; c++ {
		for _, s := range order[c] {
			// Enumerate proper submasks; fixing the lowest set bit in the
			// left half visits each unordered split once.
			low := s & (-s)
			rest := s &^ low
			for sub := rest; sub > 0; sub = (sub - 1) & rest {
				l := low | (rest &^ sub)
				r := sub
				if best[l] == inf || best[r] == inf {
					continue
				}
				cost := best[l] + best[r] + pairCost(l, r)
				if cost < best[s] || (cost == best[s] && l < split[s]) {
					best[s] = cost
					split[s] = l
				}
			}
		}
	}

	if best[full] == inf {
		return nil, logicf("no contraction order found for %d tensors", n)
	}

	// Emit the tree in post-order, assigning ssa ids as steps are produced.
	path := &Path{NumInputs: n}
	next := n
	var emit func(s uint32) int
	emit = func(s uint32) int {
		if bits.OnesCount32(s) == 1 {
			return bits.TrailingZeros32(s)
		}
		l := split[s]
		r := s &^ l
		a := emit(l)
		b := emit(r)
		path.Steps = append(path.Steps, Step{A: a, B: b})
		id := next
		next++
		return id
	}
	emit(full)
	return path, nil
}
