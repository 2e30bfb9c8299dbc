package contract

// Planner methods. MethodAuto picks MethodOptimal for small problems and
// MethodGreedy otherwise.
const (
	MethodAuto    = "auto"
	MethodGreedy  = "greedy"
	MethodOptimal = "optimal"
	MethodChain   = "chain"
)

// DefaultOptimalThreshold is the largest input count MethodAuto will hand
// to the exhaustive planner. The subset dynamic program is exponential in
// the input count, so this stays small.
const DefaultOptimalThreshold = 12

// Optimizer plans a contraction path for an externally supplied strategy.
// Implementations receive the full problem and return a path in ssa form;
// the planner validates the result before use.
type Optimizer interface {
	Optimize(inputs [][]string, output []string, dims map[string]int) (*Path, error)
}

// PathFunc adapts a plain function to the Optimizer interface.
type PathFunc func(inputs [][]string, output []string, dims map[string]int) (*Path, error)

func (f PathFunc) Optimize(inputs [][]string, output []string, dims map[string]int) (*Path, error) {
	return f(inputs, output, dims)
}

// LiteralPath is an Optimizer that always returns a fixed, caller-supplied
// path. Useful for replaying a known-good plan.
type LiteralPath struct {
	Path *Path
}

func (l LiteralPath) Optimize(inputs [][]string, output []string, dims map[string]int) (*Path, error) {
	return l.Path, nil
}

// PlannerConfig configures path planning. The zero value plans with
// MethodAuto, no external optimizer and no cache.
type PlannerConfig struct {
	// Method selects the built-in strategy. Ignored when External is set.
	Method string

	// OptimalThreshold caps the input count handed to the exhaustive
	// planner under MethodAuto. Zero means DefaultOptimalThreshold.
	OptimalThreshold int

	// External delegates planning to a caller-supplied optimizer.
	External Optimizer

	// Cache, when set, memoizes plans across structurally identical
	// problems.
	Cache *PathCache
}

// Planner turns a contraction problem into an executable path.
type Planner struct {
	cfg PlannerConfig
}

func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.Method == "" {
		cfg.Method = MethodAuto
	}
	if cfg.OptimalThreshold <= 0 {
		cfg.OptimalThreshold = DefaultOptimalThreshold
	}
	return &Planner{cfg: cfg}
}

// Plan produces a contraction path for the given inputs and output, along
// with its predicted cost. Index order within each input is irrelevant to
// planning; only the index sets and their dimensions matter.
func (p *Planner) Plan(inputs [][]string, output []string, dims map[string]int) (*Path, *PathInfo, error) {
	if err := checkProblem(inputs, output, dims); err != nil {
		return nil, nil, err
	}

	if len(inputs) == 1 {
		// Degenerate single-tensor problem: no pairwise steps to plan.
		path := &Path{NumInputs: 1}
		return path, &PathInfo{}, nil
	}

	method := p.cfg.Method
	if p.cfg.External != nil {
		method = "external"
	} else if method == MethodAuto {
		if len(inputs) <= p.cfg.OptimalThreshold {
			method = MethodOptimal
		} else {
			method = MethodGreedy
		}
	}

	var key string
	if p.cfg.Cache != nil && p.cfg.External == nil {
		key = fingerprint(method, inputs, output, dims)
		if path, ok := p.cfg.Cache.get(key); ok {
			info, err := Info(inputs, output, dims, path)
			if err != nil {
				return nil, nil, err
			}
			return path, info, nil
		}
	}

	var (
		path *Path
		err  error
	)
	switch method {
	case "external":
		path, err = p.cfg.External.Optimize(inputs, output, dims)
		if err == nil {
			err = path.Validate()
		}
	case MethodGreedy:
		path, err = planGreedy(inputs, output, dims)
	case MethodOptimal:
		path, err = planOptimal(inputs, output, dims)
	case MethodChain:
		path, err = planChain(inputs)
	default:
		err = logicf("unknown planning method %q", p.cfg.Method)
	}
	if err != nil {
		return nil, nil, err
	}

	info, err := Info(inputs, output, dims, path)
	if err != nil {
		return nil, nil, err
	}
	if key != "" {
		p.cfg.Cache.put(key, path)
	}
	return path, info, nil
}

// checkProblem validates the planning problem: every index must have a
// recorded dimension, and every output index must appear in some input.
func checkProblem(inputs [][]string, output []string, dims map[string]int) error {
	if len(inputs) == 0 {
		return logicf("cannot plan a contraction over zero tensors")
	}
	present := map[string]bool{}
	for ti, inds := range inputs {
		for _, ind := range inds {
			d, ok := dims[ind]
			if !ok {
				return logicf("tensor %d carries index %q with no recorded dimension", ti, ind)
			}
			if d <= 0 {
				return logicf("index %q has non-positive dimension %d", ind, d)
			}
			present[ind] = true
		}
	}
	seen := map[string]bool{}
	for _, ind := range output {
		if !present[ind] {
			return logicf("output index %q does not appear in any input", ind)
		}
		if seen[ind] {
			return logicf("output index %q repeated", ind)
		}
		seen[ind] = true
	}
	return nil
}

// planChain contracts the inputs left to right in the order given. A
// deterministic preset for tensor trains, where that order is optimal.
func planChain(inputs [][]string) (*Path, error) {
	path := &Path{NumInputs: len(inputs)}
	acc := 0
	for i := 1; i < len(inputs); i++ {
		path.Steps = append(path.Steps, Step{A: acc, B: i})
		acc = len(inputs) + i - 1
	}
	return path, nil
}

// nodeSize is the element count of a node's index set.
func nodeSize(inds map[string]int, dims map[string]int) float64 {
	size := 1.0
	for ind, n := range inds {
		for i := 0; i < n; i++ {
			size *= float64(dims[ind])
		}
	}
	return size
}

// resultInds derives the index set a merge of two nodes keeps, given global
// reference counts and the set of indices pinned by the requested output.
func resultInds(a, b map[string]int, refs map[string]int, inOutput map[string]bool) map[string]int {
	result := map[string]int{}
	for _, node := range []map[string]int{a, b} {
		for ind := range node {
			if _, done := result[ind]; done {
				continue
			}
			if refs[ind]-a[ind]-b[ind] > 0 || inOutput[ind] {
				result[ind] = 1
			}
		}
	}
	return result
}
