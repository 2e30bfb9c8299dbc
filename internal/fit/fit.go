// Package fit adjusts the tensors of an ansatz network to minimize its
// distance to a target network with the same open indices. Two
// optimization modes are provided: alternating least squares, which solves
// the exact normal equations one site at a time, and first-order gradient
// descent with Adam updates.
package fit

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"

	"github.com/sjdu10/quimb/internal/contract"
	"github.com/sjdu10/quimb/internal/linalg"
	"github.com/sjdu10/quimb/internal/tn"
)

// Fitting methods.
const (
	MethodALS      = "als"
	MethodGradient = "gradient"
)

// State tracks the fitter's lifecycle.
type State int

const (
	StateInitialized State = iota
	StateIterating
	StateConverged
	StateBudgetExhausted
	StateDiverged
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateBudgetExhausted:
		return "budget-exhausted"
	case StateDiverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// ErrDiverged reports that the loss became non-finite or grew far past its
// starting value. The fitter still returns the best network seen.
var ErrDiverged = errors.New("fit: diverged")

// Progress is handed to the Progress callback after every iteration.
type Progress struct {
	Iter     int
	Distance float64
	State    State
}

// Report summarizes a finished run.
type Report struct {
	State      State
	Iterations int
	Distance   float64
}

// Config configures a fit. The zero value runs ALS for DefaultMaxIter
// sweeps with the default tolerance over every ansatz tensor.
type Config struct {
	// Method is MethodALS (default) or MethodGradient.
	Method string

	// MaxIter bounds the number of sweeps (ALS) or update steps
	// (gradient). Zero means DefaultMaxIter.
	MaxIter int

	// Tol declares convergence when the distance changes by less than
	// Tol relative to its magnitude between iterations. Zero means
	// DefaultTol.
	Tol float64

	// Tags restricts optimization to tensors carrying any of the given
	// tags. Empty optimizes every tensor.
	Tags []string

	// Randomize visits sites in a fresh random order each ALS sweep
	// instead of ascending tensor id.
	Randomize bool

	// Rng drives randomized sweeps. Nil uses the global source.
	Rng *rand.Rand

	// Progress, when set, is called after every iteration.
	Progress func(Progress)

	// LearningRate scales gradient updates. Zero means
	// DefaultLearningRate. Ignored by ALS.
	LearningRate float64

	// Planner plans the environment contractions. Nil means the default.
	Planner *contract.Planner

	// Linalg backs the ALS solves. Nil means the dense gonum-backed
	// implementation.
	Linalg linalg.Backend
}

const (
	DefaultMaxIter      = 100
	DefaultTol          = 1e-9
	DefaultLearningRate = 0.05
)

// Fitter drives the optimization of one ansatz against one target. It is
// single-use: construct, Run once, read the result.
type Fitter struct {
	cfg    Config
	ket    *tn.TensorNetwork
	target *tn.TensorNetwork
	sites  []int
	prime  map[string]string
	state  State

	planner *contract.Planner
	lin     linalg.Backend
	tnorm2  float64

	adam map[int]*adamState
}

// New validates the problem and prepares a fitter. The ansatz and target
// must expose identical open indices with matching dimensions; the ansatz
// is cloned, never mutated.
func New(ansatz, target *tn.TensorNetwork, cfg Config) (*Fitter, error) {
	if ansatz.NumTensors() == 0 {
		return nil, &tn.LogicError{Reason: "empty ansatz network"}
	}
	if target.NumTensors() == 0 {
		return nil, &tn.LogicError{Reason: "empty target network"}
	}
	if err := checkOpenIndsMatch(ansatz, target); err != nil {
		return nil, err
	}

	if cfg.Method == "" {
		cfg.Method = MethodALS
	}
	if cfg.Method != MethodALS && cfg.Method != MethodGradient {
		return nil, &tn.LogicError{Reason: "unknown fitting method " + cfg.Method}
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultMaxIter
	}
	if cfg.Tol <= 0 {
		cfg.Tol = DefaultTol
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultLearningRate
	}

	f := &Fitter{
		cfg:     cfg,
		ket:     ansatz.Clone(),
		target:  target,
		state:   StateInitialized,
		planner: cfg.Planner,
		lin:     cfg.Linalg,
	}
	if f.planner == nil {
		f.planner = contract.NewPlanner(contract.PlannerConfig{})
	}
	if f.lin == nil {
		f.lin = linalg.NewDense()
	}

	f.sites = selectSites(f.ket, cfg.Tags)
	if len(f.sites) == 0 {
		return nil, &tn.LogicError{Reason: "no ansatz tensor matches the optimization tags"}
	}
	for _, tid := range f.sites {
		t, _ := f.ket.Tensor(tid)
		if hasDuplicates(t.Inds()) {
			return nil, &tn.LogicError{Reason: "optimized tensor " + t.String() + " repeats an index"}
		}
	}

	var err error
	f.prime, err = makePrimer(f.ket, f.target)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// State reports the current lifecycle state.
func (f *Fitter) State() State { return f.state }

// Run optimizes until convergence, budget exhaustion, or divergence. On
// divergence it returns the best network seen together with ErrDiverged;
// on cancellation it returns the best network seen together with the
// context error, never a partially updated state.
func (f *Fitter) Run(ctx context.Context) (*tn.TensorNetwork, *Report, error) {
	if f.state != StateInitialized {
		return nil, nil, &tn.LogicError{Reason: "fitter already ran"}
	}
	f.state = StateIterating

	var err error
	f.tnorm2, err = f.norm2(ctx, f.target)
	if err != nil {
		return nil, nil, errors.Wrap(err, "computing target norm")
	}

	dist, err := f.distance(ctx)
	if err != nil {
		return nil, nil, err
	}
	best, bestDist := f.ket.Clone(), dist

	iters := 0
	for iters < f.cfg.MaxIter {
		if err := ctx.Err(); err != nil {
			return best, &Report{State: f.state, Iterations: iters, Distance: bestDist}, err
		}

		switch f.cfg.Method {
		case MethodALS:
			err = f.sweepALS(ctx)
		case MethodGradient:
			err = f.stepGradient(ctx, iters+1)
		}
		if err == nil {
			iters++
			prev := dist
			dist, err = f.distance(ctx)
			if err == nil {
				if f.cfg.Progress != nil {
					f.cfg.Progress(Progress{Iter: iters, Distance: dist, State: f.state})
				}

				if math.IsNaN(dist) || math.IsInf(dist, 0) {
					f.state = StateDiverged
					return best, &Report{State: f.state, Iterations: iters, Distance: bestDist}, ErrDiverged
				}
				if dist < bestDist {
					bestDist = dist
					best = f.ket.Clone()
				}
				if math.Abs(prev-dist) <= f.cfg.Tol*math.Max(1, dist) {
					f.state = StateConverged
					return best, &Report{State: f.state, Iterations: iters, Distance: bestDist}, nil
				}
				continue
			}
		}
		if isCanceled(err) {
			return best, &Report{State: f.state, Iterations: iters, Distance: bestDist}, err
		}
		return nil, nil, err
	}

	f.state = StateBudgetExhausted
	return best, &Report{State: f.state, Iterations: iters, Distance: bestDist}, nil
}

// isCanceled reports whether err stems from context cancellation, however
// deeply wrapped.
func isCanceled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// Fit is the one-call form of New followed by Run.
func Fit(ctx context.Context, ansatz, target *tn.TensorNetwork, cfg Config) (*tn.TensorNetwork, *Report, error) {
	f, err := New(ansatz, target, cfg)
	if err != nil {
		return nil, nil, err
	}
	return f.Run(ctx)
}

// distance is sqrt(|A|^2 + |T|^2 - 2 Re<A, T>), the Frobenius distance
// between the states the two networks represent.
func (f *Fitter) distance(ctx context.Context) (float64, error) {
	anorm2, err := f.norm2(ctx, f.ket)
	if err != nil {
		return 0, errors.Wrap(err, "computing ansatz norm")
	}
	ov, err := f.overlap(ctx, f.ket, f.target)
	if err != nil {
		return 0, errors.Wrap(err, "computing overlap")
	}
	d2 := anorm2 + f.tnorm2 - 2*real(ov)
	if d2 < 0 {
		d2 = 0
	}
	return math.Sqrt(d2), nil
}

// overlap computes <a, b>: the conjugate of a, inner indices primed,
// contracted against b across their shared open indices.
func (f *Fitter) overlap(ctx context.Context, a, b *tn.TensorNetwork) (complex128, error) {
	bra, err := conjPrimed(a, f.prime)
	if err != nil {
		return 0, err
	}
	comb, err := bra.Combine(b)
	if err != nil {
		return 0, err
	}
	out, _, err := contract.Network(ctx, comb, []string{}, f.planner, contract.ExecConfig{})
	if err != nil {
		return 0, err
	}
	return out.Scalar()
}

func (f *Fitter) norm2(ctx context.Context, net *tn.TensorNetwork) (float64, error) {
	ov, err := f.overlap(ctx, net, net)
	if err != nil {
		return 0, err
	}
	return real(ov), nil
}

// conjPrimed returns the conjugated network with every inner index renamed
// through the prime map, so it can be combined with an unprimed copy
// without the inner bonds joining.
func conjPrimed(net *tn.TensorNetwork, prime map[string]string) (*tn.TensorNetwork, error) {
	bra := net.Conj()
	mapping := map[string]string{}
	for _, ind := range bra.InnerInds() {
		if p, ok := prime[ind]; ok {
			mapping[ind] = p
		}
	}
	if len(mapping) == 0 {
		return bra, nil
	}
	if err := bra.Reindex(mapping); err != nil {
		return nil, err
	}
	return bra, nil
}

// makePrimer builds a renaming for every inner index of both networks that
// avoids every name either network uses.
func makePrimer(ket, target *tn.TensorNetwork) (map[string]string, error) {
	avoid := map[string]bool{}
	for _, ind := range ket.Registry().Inds() {
		avoid[ind] = true
	}
	for _, ind := range target.Registry().Inds() {
		avoid[ind] = true
	}

	prime := map[string]string{}
	add := func(ind string) {
		if _, done := prime[ind]; done {
			return
		}
		p := ind + "_b"
		for avoid[p] {
			p = tn.RandInd("b")
		}
		avoid[p] = true
		prime[ind] = p
	}
	for _, ind := range ket.InnerInds() {
		add(ind)
	}
	for _, ind := range target.InnerInds() {
		add(ind)
	}
	return prime, nil
}

func checkOpenIndsMatch(ansatz, target *tn.TensorNetwork) error {
	ao, to := ansatz.OpenInds(), target.OpenInds()
	if len(ao) != len(to) {
		return &tn.LogicError{Reason: "ansatz and target expose different open indices"}
	}
	for i := range ao {
		if ao[i] != to[i] {
			return &tn.LogicError{Reason: "ansatz and target expose different open indices"}
		}
		da, _ := ansatz.Registry().Dim(ao[i])
		dt, _ := target.Registry().Dim(to[i])
		if da != dt {
			return &tn.ShapeMismatchError{Ind: ao[i], DimA: da, DimB: dt}
		}
	}
	return nil
}

// sweepOrder returns the site visit order for one sweep. Ascending tensor
// id unless the configuration asks for a fresh shuffle.
func (f *Fitter) sweepOrder() []int {
	if !f.cfg.Randomize {
		return f.sites
	}
	order := make([]int, len(f.sites))
	copy(order, f.sites)
	shuffle := rand.Shuffle
	if f.cfg.Rng != nil {
		shuffle = f.cfg.Rng.Shuffle
	}
	shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

func selectSites(net *tn.TensorNetwork, tags []string) []int {
	if len(tags) == 0 {
		return net.Tids()
	}
	set := map[int]bool{}
	for _, tag := range tags {
		for _, tid := range net.TidsWithTag(tag) {
			set[tid] = true
		}
	}
	sites := make([]int, 0, len(set))
	for tid := range set {
		sites = append(sites, tid)
	}
	sort.Ints(sites)
	return sites
}

func hasDuplicates(inds []string) bool {
	seen := map[string]bool{}
	for _, ind := range inds {
		if seen[ind] {
			return true
		}
		seen[ind] = true
	}
	return false
}
