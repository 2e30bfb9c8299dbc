package contract

import (
	"container/heap"
)

// planGreedy builds a path by repeatedly contracting the pair of connected
// tensors that most shrinks the working set, scoring each candidate by
// size(result) - size(a) - size(b). Ties prefer the smaller result.
// Disconnected components are joined by outer products at the end, smallest
// first. Candidate pairs live in a heap with lazy invalidation, so the
// whole construction is O(n^2 log n) in the input count.
func planGreedy(inputs [][]string, output []string, dims map[string]int) (*Path, error) {
	inOutput := map[string]bool{}
	for _, ind := range output {
		inOutput[ind] = true
	}

	refs := map[string]int{}
	nodes := map[int]map[string]int{}
	for ssa, inds := range inputs {
		node := map[string]int{}
		for _, ind := range inds {
			node[ind]++
			refs[ind]++
		}
		nodes[ssa] = node
	}

	// holders[ind] is the set of live ssa ids carrying ind.
	holders := map[string]map[int]bool{}
	for ssa, node := range nodes {
		for ind := range node {
			if holders[ind] == nil {
				holders[ind] = map[int]bool{}
			}
			holders[ind][ssa] = true
		}
	}

	pq := &pairHeap{}
	pushPair := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		na, nb := nodes[a], nodes[b]
		result := resultInds(na, nb, refs, inOutput)
		score := nodeSize(result, dims) - nodeSize(na, dims) - nodeSize(nb, dims)
		heap.Push(pq, pairItem{a: a, b: b, score: score, resultSize: nodeSize(result, dims)})
	}

	seeded := map[[2]int]bool{}
	for _, hs := range holders {
		ids := make([]int, 0, len(hs))
		for id := range hs {
			ids = append(ids, id)
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if a > b {
					a, b = b, a
				}
				if !seeded[[2]int{a, b}] {
					seeded[[2]int{a, b}] = true
					pushPair(a, b)
				}
			}
		}
	}

	path := &Path{NumInputs: len(inputs)}
	next := len(inputs)

	merge := func(a, b int) int {
		na, nb := nodes[a], nodes[b]
		result := resultInds(na, nb, refs, inOutput)
		for ind, n := range na {
			refs[ind] -= n
			delete(holders[ind], a)
		}
		for ind, n := range nb {
			refs[ind] -= n
			delete(holders[ind], b)
		}
		delete(nodes, a)
		delete(nodes, b)
		id := next
		next++
		nodes[id] = result
		for ind := range result {
			refs[ind]++
			if holders[ind] == nil {
				holders[ind] = map[int]bool{}
			}
			holders[ind][id] = true
		}
		path.Steps = append(path.Steps, Step{A: a, B: b})
		return id
	}

	for len(nodes) > 1 && pq.Len() > 0 {
		item := heap.Pop(pq).(pairItem)
		if nodes[item.a] == nil || nodes[item.b] == nil {
			continue
		}
		// Merges elsewhere can change an index's remaining reference
		// count and with it this pair's score. Re-queue stale entries
		// instead of acting on them.
		result := resultInds(nodes[item.a], nodes[item.b], refs, inOutput)
		score := nodeSize(result, dims) - nodeSize(nodes[item.a], dims) - nodeSize(nodes[item.b], dims)
		if score != item.score {
			heap.Push(pq, pairItem{a: item.a, b: item.b, score: score, resultSize: nodeSize(result, dims)})
			continue
		}
		id := merge(item.a, item.b)

		// New candidates: the fresh node against every live node it
		// shares an index with.
		neighbor := map[int]bool{}
		for ind := range nodes[id] {
			for other := range holders[ind] {
				if other != id {
					neighbor[other] = true
				}
			}
		}
		for other := range neighbor {
			pushPair(id, other)
		}
	}

	// Any survivors are disconnected components. Fold them in by outer
	// product, smallest first, so intermediates grow as slowly as possible.
	for len(nodes) > 1 {
		var rem []int
		for id := range nodes {
			rem = append(rem, id)
		}
		a, b := smallestTwo(rem, nodes, dims)
		merge(a, b)
	}
	return path, nil
}

func smallestTwo(ids []int, nodes map[int]map[string]int, dims map[string]int) (int, int) {
	best := func(skip int) int {
		sel, selSize := -1, 0.0
		for _, id := range ids {
			if id == skip || nodes[id] == nil {
				continue
			}
			sz := nodeSize(nodes[id], dims)
			if sel == -1 || sz < selSize || (sz == selSize && id < sel) {
				sel, selSize = id, sz
			}
		}
		return sel
	}
	a := best(-1)
	b := best(a)
	return a, b
}

type pairItem struct {
	a, b       int
	score      float64
	resultSize float64
}

type pairHeap []pairItem

func (h pairHeap) Len() int { return len(h) }
func (h pairHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].resultSize < h[j].resultSize
}
func (h pairHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pairHeap) Push(x any) { *h = append(*h, x.(pairItem)) }

func (h *pairHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
