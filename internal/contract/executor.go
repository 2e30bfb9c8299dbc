package contract

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sjdu10/quimb/internal/linalg"
	"github.com/sjdu10/quimb/internal/tensor"
	"github.com/sjdu10/quimb/internal/tn"
)

// DefaultMinParallelFlops is the per-step operation count below which
// parallel dispatch is not worth the scheduling overhead.
const DefaultMinParallelFlops = 1 << 16

// TruncateConfig bounds intermediate bond dimensions during execution.
// MaxBond caps the kept rank, Cutoff discards singular values below the
// given fraction of the spectrum norm. Zero disables the corresponding
// criterion; at least one kept value always survives.
type TruncateConfig struct {
	MaxBond int
	Cutoff  float64
}

// ExecConfig configures path execution. The zero value runs the full path
// sequentially with no truncation.
type ExecConfig struct {
	// Parallel dispatches independent steps concurrently. Ignored when
	// truncation or partial execution is requested, since those need the
	// sequential order.
	Parallel bool

	// MinParallelFlops gates parallel dispatch: if no step reaches this
	// operation count the path runs sequentially. Zero means
	// DefaultMinParallelFlops.
	MinParallelFlops float64

	// MaxSteps stops after that many steps and returns the partially
	// contracted network. Zero runs the path to completion.
	MaxSteps int

	// Truncate, when set, compresses each intermediate against the rest of
	// the network by truncated SVD.
	Truncate *TruncateConfig

	// Linalg backs the truncation factorizations. Nil means the dense
	// gonum-backed implementation.
	Linalg linalg.Backend
}

// Result is the outcome of executing a path. Tensor is set for a complete
// run, Network for a partial one. TruncErrs records the relative discarded
// singular-value weight of each truncation performed, in execution order.
type Result struct {
	Tensor    *tn.Tensor
	Network   *tn.TensorNetwork
	TruncErrs []float64
}

// Execute runs a contraction path over the given tensors. The tensors are
// positional: tensor i is ssa id i. Inputs are never mutated.
func Execute(ctx context.Context, path *Path, tensors []*tn.Tensor, output []string, cfg ExecConfig) (*Result, error) {
	inputs := make([][]string, len(tensors))
	dims := map[string]int{}
	for i, t := range tensors {
		inputs[i] = t.Inds()
		for _, ind := range inputs[i] {
			if d, ok := t.IndDim(ind); ok {
				dims[ind] = d
			}
		}
	}

	if path.NumInputs == 1 && len(tensors) == 1 {
		t, err := reduceSingle(tensors[0], output)
		if err != nil {
			return nil, err
		}
		return &Result{Tensor: t}, nil
	}

	metas, err := simulate(inputs, output, dims, path)
	if err != nil {
		return nil, err
	}

	if cfg.Parallel && cfg.Truncate == nil && cfg.MaxSteps == 0 && worthParallel(metas, cfg.MinParallelFlops) {
		return executeParallel(ctx, path, tensors, metas)
	}
	return executeSequential(ctx, path, tensors, output, cfg)
}

func worthParallel(metas []stepMeta, minFlops float64) bool {
	if minFlops <= 0 {
		minFlops = DefaultMinParallelFlops
	}
	for _, m := range metas {
		if m.flops >= minFlops {
			return true
		}
	}
	return false
}

// reduceSingle maps a single tensor to the requested output indices,
// summing or tracing the rest, by contracting with a scalar unit.
func reduceSingle(t *tn.Tensor, output []string) (*tn.Tensor, error) {
	if sameInds(t.Inds(), output) {
		return t.Clone(), nil
	}
	one, err := scalarOne(t.Backend(), t.DType())
	if err != nil {
		return nil, err
	}
	return t.ContractWith(one, output)
}

func sameInds(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func scalarOne(b tensor.Backend, dtype tensor.DataType) (*tn.Tensor, error) {
	raw := tensor.Zeros(tensor.Shape{}, dtype, b.Device())
	switch dtype {
	case tensor.Float32:
		raw.AsFloat32()[0] = 1
	case tensor.Float64:
		raw.AsFloat64()[0] = 1
	case tensor.Complex64:
		raw.AsComplex64()[0] = 1
	default:
		raw.AsComplex128()[0] = 1
	}
	return tn.New(raw, nil, b)
}

func executeSequential(ctx context.Context, path *Path, tensors []*tn.Tensor, output []string, cfg ExecConfig) (*Result, error) {
	n := path.NumInputs
	nodes := make([]*tn.Tensor, n+len(path.Steps))
	consumed := make([]bool, len(nodes))
	copy(nodes, tensors)

	inOutput := map[string]bool{}
	for _, ind := range output {
		inOutput[ind] = true
	}

	res := &Result{}
	steps := path.Steps
	if cfg.MaxSteps > 0 && cfg.MaxSteps < len(steps) {
		steps = steps[:cfg.MaxSteps]
	}

	for k, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Surviving indices are derived from the live nodes rather than
		// precomputed, so bond compression can reshape the interior of the
		// network between steps.
		consumed[s.A], consumed[s.B] = true, true
		outInds := stepOutput(nodes, consumed, s, inOutput)
		if k == len(path.Steps)-1 {
			outInds = output
		}
		t, err := nodes[s.A].ContractWith(nodes[s.B], outInds)
		if err != nil {
			return nil, errors.Wrapf(err, "contraction step %d over ids (%d, %d)", k, s.A, s.B)
		}
		id := n + k
		nodes[id] = t

		if cfg.Truncate != nil && k < len(path.Steps)-1 {
			terrs, err := compressAgainstRest(nodes, consumed, id, inOutput, cfg)
			if err != nil {
				return nil, errors.Wrapf(err, "truncating intermediate of step %d", k)
			}
			res.TruncErrs = append(res.TruncErrs, terrs...)
		}
	}

	if len(steps) == len(path.Steps) {
		res.Tensor = nodes[len(nodes)-1]
		return res, nil
	}

	// Partial run: collect the surviving nodes into a reduced network.
	var live []*tn.Tensor
	for id := 0; id < n+len(steps); id++ {
		if consumed[id] {
			continue
		}
		t := nodes[id]
		if id < n {
			t = t.Clone()
		}
		live = append(live, t)
	}
	net, err := tn.NewNetwork(live...)
	if err != nil {
		return nil, errors.Wrap(err, "assembling partially contracted network")
	}
	res.Network = net
	return res, nil
}

func executeParallel(ctx context.Context, path *Path, tensors []*tn.Tensor, metas []stepMeta) (*Result, error) {
	n := path.NumInputs
	nodes := make([]*tn.Tensor, n+len(path.Steps))
	copy(nodes, tensors)

	ready := make([]chan struct{}, len(nodes))
	for i := range ready {
		ready[i] = make(chan struct{})
		if i < n {
			close(ready[i])
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for k, s := range path.Steps {
		k, s := k, s
		g.Go(func() error {
			for _, dep := range []int{s.A, s.B} {
				select {
				case <-ready[dep]:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			t, err := nodes[s.A].ContractWith(nodes[s.B], metas[k].outInds)
			if err != nil {
				return errors.Wrapf(err, "contraction step %d over ids (%d, %d)", k, s.A, s.B)
			}
			id := n + k
			nodes[id] = t
			close(ready[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Tensor: nodes[len(nodes)-1]}, nil
}

// stepOutput derives the indices the step's result keeps: an index
// survives while a live node outside the pair, or the requested output,
// still references it.
func stepOutput(nodes []*tn.Tensor, consumed []bool, s Step, inOutput map[string]bool) []string {
	outside := map[string]bool{}
	for id, t := range nodes {
		if t == nil || consumed[id] {
			continue
		}
		for _, ind := range t.Inds() {
			outside[ind] = true
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, t := range []*tn.Tensor{nodes[s.A], nodes[s.B]} {
		for _, ind := range t.Inds() {
			if seen[ind] {
				continue
			}
			seen[ind] = true
			if outside[ind] || inOutput[ind] {
				out = append(out, ind)
			}
		}
	}
	sort.Strings(out)
	return out
}

// compressAgainstRest reduces the bonds between a fresh intermediate and
// each live node it connects to: the shared leg group is split by
// truncated SVD, the orthogonal factor replaces the intermediate and the
// weighted factor is absorbed into the neighbor. Both sides shrink, which
// is what bounds memory for the rest of the run.
func compressAgainstRest(nodes []*tn.Tensor, consumed []bool, self int, inOutput map[string]bool, cfg ExecConfig) ([]float64, error) {
	var terrs []float64
	for rid := range nodes {
		if rid == self || nodes[rid] == nil || consumed[rid] {
			continue
		}
		shared := exclusiveBond(nodes, consumed, self, rid, inOutput)
		if len(shared) == 0 {
			continue
		}
		terr, changed, err := compressBond(nodes, self, rid, shared, cfg)
		if err != nil {
			return nil, err
		}
		if changed {
			terrs = append(terrs, terr)
		}
	}
	return terrs, nil
}

// exclusiveBond lists the indices held by exactly the pair (self, rid):
// hyperedge legs with a third live holder, and output legs, must keep
// their full dimension and are excluded.
func exclusiveBond(nodes []*tn.Tensor, consumed []bool, self, rid int, inOutput map[string]bool) []string {
	elsewhere := map[string]bool{}
	for id, t := range nodes {
		if t == nil || consumed[id] || id == self || id == rid {
			continue
		}
		for _, ind := range t.Inds() {
			elsewhere[ind] = true
		}
	}
	var shared []string
	for _, ind := range nodes[self].Inds() {
		if nodes[rid].HasInd(ind) && !elsewhere[ind] && !inOutput[ind] {
			shared = append(shared, ind)
		}
	}
	return shared
}

// compressBond splits nodes[self] across (other legs | shared legs) by
// thin SVD and keeps rank k: self becomes the u factor with a bond of
// dimension k labeled shared[0], and diag(s)*vh is contracted into
// nodes[rid]. A no-op when the existing bond is already minimal.
func compressBond(nodes []*tn.Tensor, self, rid int, shared []string, cfg ExecConfig) (float64, bool, error) {
	t, r := nodes[self], nodes[rid]
	inds := t.Inds()
	inShared := map[string]bool{}
	for _, ind := range shared {
		inShared[ind] = true
	}

	var rowAx, colAx []int
	var rowInds []string
	for ax, ind := range inds {
		if inShared[ind] {
			colAx = append(colAx, ax)
		} else {
			rowAx = append(rowAx, ax)
			rowInds = append(rowInds, ind)
		}
	}
	if len(rowAx) == 0 {
		return 0, false, nil
	}

	shape := t.Shape()
	rd, cd := 1, 1
	for _, ax := range rowAx {
		rd *= shape[ax]
	}
	for _, ax := range colAx {
		cd *= shape[ax]
	}

	lb := cfg.Linalg
	if lb == nil {
		lb = linalg.NewDense()
	}
	be := t.Backend()
	perm := append(append([]int{}, rowAx...), colAx...)
	m := be.Reshape(be.Transpose(t.Raw(), perm...), tensor.Shape{rd, cd})
	u, s, vh, err := lb.SVD(m)
	if err != nil {
		return 0, false, err
	}

	sv := s.AsFloat64()
	keep := linalg.TruncateRank(sv, cfg.Truncate.MaxBond, cfg.Truncate.Cutoff)
	if keep >= cd {
		return 0, false, nil
	}

	var total, lost float64
	for i, v := range sv {
		w := v * v
		total += w
		if i >= keep {
			lost += w
		}
	}
	truncErr := 0.0
	if total > 0 {
		truncErr = math.Sqrt(lost / total)
	}

	uk := sliceCols(u, keep)
	svh := be.Contract(firstRows(s, keep), firstRows(vh, keep),
		tensor.ContractSpec{A: []int{0}, B: []int{0, 1}, Output: []int{0, 1}})
	if uk.DType() != t.DType() {
		uk = be.Cast(uk, t.DType())
	}
	if svh.DType() != t.DType() {
		svh = be.Cast(svh, t.DType())
	}

	// New intermediate: the orthogonal factor over (row legs, bond).
	rowDims := make(tensor.Shape, 0, len(rowAx)+1)
	for _, ax := range rowAx {
		rowDims = append(rowDims, shape[ax])
	}
	bond := shared[0]
	nt, err := tn.New(be.Reshape(uk, append(rowDims, keep)), append(rowInds, bond), be)
	if err != nil {
		return 0, false, err
	}
	for _, tag := range t.Tags() {
		nt.AddTag(tag)
	}

	// Weighted factor, bond under a fresh name until the old shared legs
	// are contracted away into the neighbor.
	tmp := tn.RandInd("bond")
	colDims := make(tensor.Shape, 0, len(colAx)+1)
	colDims = append(colDims, keep)
	for _, ax := range colAx {
		colDims = append(colDims, shape[ax])
	}
	colInds := make([]string, 0, len(colAx)+1)
	colInds = append(colInds, tmp)
	for _, ax := range colAx {
		colInds = append(colInds, inds[ax])
	}
	f, err := tn.New(be.Reshape(svh, colDims), colInds, be)
	if err != nil {
		return 0, false, err
	}

	rOut := []string{tmp}
	rSeen := map[string]bool{}
	for _, ind := range r.Inds() {
		if !inShared[ind] && !rSeen[ind] {
			rSeen[ind] = true
			rOut = append(rOut, ind)
		}
	}
	nr, err := f.ContractWith(r, rOut)
	if err != nil {
		return 0, false, err
	}
	if nr.DType() != r.DType() {
		nr, err = tn.New(be.Cast(nr.Raw(), r.DType()), nr.Inds(), be)
		if err != nil {
			return 0, false, err
		}
	}
	if err := nr.Reindex(map[string]string{tmp: bond}); err != nil {
		return 0, false, err
	}
	for _, tag := range r.Tags() {
		nr.AddTag(tag)
	}

	nodes[self], nodes[rid] = nt, nr
	return truncErr, true, nil
}

// sliceCols copies the first k columns of a row-major matrix.
func sliceCols(x *tensor.RawTensor, k int) *tensor.RawTensor {
	shape := x.Shape()
	r, c := shape[0], shape[1]
	out := tensor.Zeros(tensor.Shape{r, k}, x.DType(), x.Device())
	es := x.DType().Size()
	src, dst := x.Data(), out.Data()
	for i := 0; i < r; i++ {
		copy(dst[i*k*es:(i+1)*k*es], src[i*c*es:(i*c+k)*es])
	}
	return out
}

// firstRows views the first k rows of a row-major matrix or vector as a
// fresh tensor.
func firstRows(x *tensor.RawTensor, k int) *tensor.RawTensor {
	shape := x.Shape()
	newShape := shape.Clone()
	newShape[0] = k
	out := tensor.Zeros(newShape, x.DType(), x.Device())
	copy(out.Data(), x.Data()[:out.ByteSize()])
	return out
}
