// Package contract implements contraction-path planning and execution for
// tensor networks: cost modeling, greedy and optimal planners, delegation
// to external optimizers, path caching, and the step executor.
package contract

import (
	"fmt"
	"math"
	"sort"

	"github.com/sjdu10/quimb/internal/tn"
)

// Step is one pairwise contraction over ssa ids: operands are either
// original inputs (ids 0..n-1) or previously produced intermediates, and
// the result is stored at the next ssa id.
type Step struct {
	A int
	B int
}

// Path is an ordered sequence of pairwise contraction steps in ssa form.
// Step k consumes two live ids and produces id NumInputs+k.
type Path struct {
	NumInputs int
	Steps     []Step
}

// Validate checks the ssa-path invariant: every id is consumed by exactly
// one step after it becomes live, and a complete path reduces the inputs to
// a single result.
func (p *Path) Validate() error {
	if p.NumInputs < 1 {
		return logicf("path over %d inputs", p.NumInputs)
	}
	if len(p.Steps) != p.NumInputs-1 {
		return logicf("path has %d steps for %d inputs, want %d", len(p.Steps), p.NumInputs, p.NumInputs-1)
	}
	consumed := make([]bool, p.NumInputs+len(p.Steps))
	for k, s := range p.Steps {
		live := p.NumInputs + k
		for _, id := range []int{s.A, s.B} {
			if id < 0 || id >= live {
				return logicf("step %d references id %d before it exists", k, id)
			}
			if consumed[id] {
				return logicf("step %d consumes id %d twice", k, id)
			}
			consumed[id] = true
		}
		if s.A == s.B {
			return logicf("step %d contracts id %d with itself", k, s.A)
		}
	}
	return nil
}

// LinearToSSA converts a path in linear form, where each pair references
// positions in a shrinking operand list and results are appended at the end,
// into ssa form.
func LinearToSSA(numInputs int, pairs [][2]int) (*Path, error) {
	ids := make([]int, numInputs)
	for i := range ids {
		ids[i] = i
	}
	next := numInputs
	path := &Path{NumInputs: numInputs}
	for k, pr := range pairs {
		i, j := pr[0], pr[1]
		if i == j || i < 0 || j < 0 || i >= len(ids) || j >= len(ids) {
			return nil, logicf("linear step %d references positions (%d, %d) in a list of %d", k, i, j, len(ids))
		}
		if i > j {
			i, j = j, i
		}
		path.Steps = append(path.Steps, Step{A: ids[i], B: ids[j]})
		// Remove j then i (j > i), append the result.
		ids = append(ids[:j], ids[j+1:]...)
		ids = append(ids[:i], ids[i+1:]...)
		ids = append(ids, next)
		next++
	}
	return path, path.Validate()
}

// PathInfo reports the cost of a path: total scalar multiply-add count,
// the log2 of the largest intermediate's element count ("contraction
// width"), and the per-step cost breakdown. Reporting artifacts; the core
// never mutates them.
type PathInfo struct {
	Flops     float64
	Width     float64
	StepFlops []float64
}

// stepMeta is the planner's view of one executed step: the indices the
// resulting intermediate keeps, and the step's scalar operation count.
type stepMeta struct {
	outInds []string
	flops   float64
	numel   float64
}

// simulate walks a path over the given inputs, deriving each intermediate's
// index list by set algebra: an index survives a step while any unconsumed
// operand, or the requested output, still references it. This is what keeps
// hyperedges alive until their last holder is merged in.
//
// The final step's indices are forced to the requested output order.
func simulate(inputs [][]string, output []string, dims map[string]int, path *Path) ([]stepMeta, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if len(inputs) != path.NumInputs {
		return nil, logicf("path over %d inputs given %d tensors", path.NumInputs, len(inputs))
	}

	inOutput := map[string]bool{}
	for _, ind := range output {
		inOutput[ind] = true
	}

	// Global reference counts; each node contributes one count per axis.
	refs := map[string]int{}
	nodes := make([]map[string]int, 0, 2*len(inputs)-1)
	for _, inds := range inputs {
		node := map[string]int{}
		for _, ind := range inds {
			if _, ok := dims[ind]; !ok {
				return nil, logicf("no dimension recorded for index %q", ind)
			}
			node[ind]++
			refs[ind]++
		}
		nodes = append(nodes, node)
	}

	metas := make([]stepMeta, 0, len(path.Steps))
	for k, s := range path.Steps {
		a, b := nodes[s.A], nodes[s.B]

		// The step iterates the union of both operands' index spaces.
		union := map[string]bool{}
		flops := 1.0
		for _, node := range []map[string]int{a, b} {
			for ind := range node {
				if !union[ind] {
					union[ind] = true
					flops *= float64(dims[ind])
				}
			}
		}

		result := map[string]int{}
		var outInds []string
		for ind := range union {
			outside := refs[ind] - a[ind] - b[ind]
			if outside > 0 || inOutput[ind] {
				result[ind] = 1
				outInds = append(outInds, ind)
			}
		}
		sort.Strings(outInds)

		for ind, n := range a {
			refs[ind] -= n
		}
		for ind, n := range b {
			refs[ind] -= n
		}
		for ind := range result {
			refs[ind]++
		}

		if k == len(path.Steps)-1 {
			// Last step keeps exactly the requested output, in order.
			if len(result) != len(output) {
				return nil, logicf("final step keeps %v, requested output %v", outInds, output)
			}
			for _, ind := range output {
				if result[ind] == 0 {
					return nil, logicf("final step keeps %v, requested output %v", outInds, output)
				}
			}
			outInds = append([]string(nil), output...)
		}

		numel := 1.0
		for _, ind := range outInds {
			numel *= float64(dims[ind])
		}
		nodes = append(nodes, result)
		metas = append(metas, stepMeta{outInds: outInds, flops: flops, numel: numel})
	}
	return metas, nil
}

// Info computes the cost report for a path over the given problem.
func Info(inputs [][]string, output []string, dims map[string]int, path *Path) (*PathInfo, error) {
	metas, err := simulate(inputs, output, dims, path)
	if err != nil {
		return nil, err
	}
	info := &PathInfo{StepFlops: make([]float64, 0, len(metas))}
	maxNumel := 1.0
	for _, m := range metas {
		info.Flops += m.flops
		info.StepFlops = append(info.StepFlops, m.flops)
		if m.numel > maxNumel {
			maxNumel = m.numel
		}
	}
	info.Width = math.Log2(maxNumel)
	return info, nil
}

func logicf(format string, args ...any) error {
	return &tn.LogicError{Reason: fmt.Sprintf(format, args...)}
}
