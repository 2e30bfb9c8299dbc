package fit_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjdu10/quimb/internal/backend/cpu"
	"github.com/sjdu10/quimb/internal/fit"
	"github.com/sjdu10/quimb/internal/linalg"
	"github.com/sjdu10/quimb/internal/tensor"
	"github.com/sjdu10/quimb/internal/tn"
)

func randTensor(t *testing.T, inds []string, dims []int, dtype tensor.DataType, rng *rand.Rand, tags ...string) *tn.Tensor {
	t.Helper()
	ts, err := tn.Randn(inds, dims, dtype, cpu.New(), rng, tags...)
	require.NoError(t, err)
	return ts
}

// matrixProblem is a 4x4 target tensor and a two-site ansatz factoring it
// through a bond of the given dimension.
func matrixProblem(t *testing.T, bond int, dtype tensor.DataType, seed int64) (ansatz, target *tn.TensorNetwork) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	target, err := tn.NewNetwork(randTensor(t, []string{"i", "j"}, []int{4, 4}, dtype, rng))
	require.NoError(t, err)

	ansatz, err = tn.NewNetwork(
		randTensor(t, []string{"i", "b"}, []int{4, bond}, dtype, rng, "L"),
		randTensor(t, []string{"b", "j"}, []int{bond, 4}, dtype, rng, "R"),
	)
	require.NoError(t, err)
	return ansatz, target
}

func TestFit_ALSExactRankConverges(t *testing.T) {
	ansatz, target := matrixProblem(t, 4, tensor.Float64, 1)

	net, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{})
	require.NoError(t, err)
	require.NotNil(t, net)
	assert.Equal(t, fit.StateConverged, report.State)
	assert.Less(t, report.Distance, 1e-6)
}

func TestFit_ALSRandomizedSweepConverges(t *testing.T) {
	ansatz, target := matrixProblem(t, 4, tensor.Float64, 5)

	net, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{
		Randomize: true,
		Rng:       rand.New(rand.NewSource(11)),
	})
	require.NoError(t, err)
	require.NotNil(t, net)
	assert.Equal(t, fit.StateConverged, report.State)
	assert.Less(t, report.Distance, 1e-6)
}

func TestFit_ALSDistanceMonotone(t *testing.T) {
	ansatz, target := matrixProblem(t, 2, tensor.Float64, 2)

	var dists []float64
	_, _, err := fit.Fit(context.Background(), ansatz, target, fit.Config{
		MaxIter: 20,
		Progress: func(p fit.Progress) {
			assert.Equal(t, fit.StateIterating, p.State)
			dists = append(dists, p.Distance)
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, dists)
	for i := 1; i < len(dists); i++ {
		assert.LessOrEqual(t, dists[i], dists[i-1]+1e-9, "sweep %d increased the distance", i)
	}
}

func TestFit_ALSRankOneMatchesTruncatedSVD(t *testing.T) {
	ansatz, target := matrixProblem(t, 1, tensor.Float64, 3)

	// Best rank-1 distance is the weight of the dropped singular values.
	tt := target.Tensors()[0]
	_, s, _, err := linalg.NewDense().SVD(tt.Raw())
	require.NoError(t, err)
	sv := s.AsFloat64()
	want := 0.0
	for _, v := range sv[1:] {
		want += v * v
	}
	want = math.Sqrt(want)

	_, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{MaxIter: 50})
	require.NoError(t, err)
	assert.InDelta(t, want, report.Distance, 1e-6)
}

func TestFit_ALSComplex(t *testing.T) {
	ansatz, target := matrixProblem(t, 4, tensor.Complex128, 4)

	_, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{})
	require.NoError(t, err)
	assert.Less(t, report.Distance, 1e-6)
}

func TestFit_ALSRingAnsatz(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	target, err := tn.NewNetwork(randTensor(t, []string{"p0", "p1", "p2"}, []int{2, 2, 2}, tensor.Float64, rng))
	require.NoError(t, err)

	ansatz, err := tn.NewNetwork(
		randTensor(t, []string{"p0", "x", "z"}, []int{2, 2, 2}, tensor.Float64, rng),
		randTensor(t, []string{"p1", "x", "y"}, []int{2, 2, 2}, tensor.Float64, rng),
		randTensor(t, []string{"p2", "y", "z"}, []int{2, 2, 2}, tensor.Float64, rng),
	)
	require.NoError(t, err)

	var first, last float64
	seen := false
	_, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{
		MaxIter: 30,
		Progress: func(p fit.Progress) {
			if !seen {
				first = p.Distance
				seen = true
			}
			last = p.Distance
		},
	})
	require.NoError(t, err)
	require.True(t, seen)
	assert.LessOrEqual(t, last, first)
	assert.LessOrEqual(t, report.Distance, first)
}

func TestFit_GradientDecreasesDistance(t *testing.T) {
	ansatz, target := matrixProblem(t, 2, tensor.Float64, 6)

	var dists []float64
	_, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{
		Method:  fit.MethodGradient,
		MaxIter: 200,
		Progress: func(p fit.Progress) {
			dists = append(dists, p.Distance)
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, dists)
	assert.Less(t, report.Distance, dists[0])
	assert.Less(t, dists[len(dists)-1], dists[0]*0.9)
}

func TestFit_GradientDivergesOnHugeLearningRate(t *testing.T) {
	ansatz, target := matrixProblem(t, 2, tensor.Float64, 7)

	// A step of ~1e200 per parameter overflows the ansatz norm to +Inf.
	best, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{
		Method:       fit.MethodGradient,
		MaxIter:      10,
		LearningRate: 1e200,
	})
	require.ErrorIs(t, err, fit.ErrDiverged)
	require.NotNil(t, best)
	require.Equal(t, fit.StateDiverged, report.State)
	// The returned network is the best snapshot, not the diverged one.
	assert.False(t, math.IsNaN(report.Distance))
	assert.False(t, math.IsInf(report.Distance, 0))
}

func TestFit_GradientFiniteGrowthRunsToBudget(t *testing.T) {
	ansatz, target := matrixProblem(t, 2, tensor.Float64, 15)

	// Large but finite steps inflate the distance without overflowing;
	// that is not divergence, the run exhausts its budget.
	_, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{
		Method:       fit.MethodGradient,
		MaxIter:      5,
		LearningRate: 1e3,
	})
	require.NoError(t, err)
	assert.Equal(t, fit.StateBudgetExhausted, report.State)
}

func TestFit_TagsRestrictOptimization(t *testing.T) {
	ansatz, target := matrixProblem(t, 2, tensor.Float64, 8)
	frozen := ansatz.Tensors()[1]
	before := append([]float64(nil), frozen.Raw().AsFloat64()...)

	net, _, err := fit.Fit(context.Background(), ansatz, target, fit.Config{
		Tags:    []string{"L"},
		MaxIter: 3,
	})
	require.NoError(t, err)

	var kept *tn.Tensor
	for _, ts := range net.Tensors() {
		if ts.HasTag("R") {
			kept = ts
		}
	}
	require.NotNil(t, kept)
	assert.Equal(t, before, kept.Raw().AsFloat64())
}

func TestFit_StateMachine(t *testing.T) {
	ansatz, target := matrixProblem(t, 4, tensor.Float64, 9)

	f, err := fit.New(ansatz, target, fit.Config{})
	require.NoError(t, err)
	assert.Equal(t, fit.StateInitialized, f.State())

	_, _, err = f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fit.StateConverged, f.State())

	_, _, err = f.Run(context.Background())
	var lerr *tn.LogicError
	require.ErrorAs(t, err, &lerr)
}

func TestFit_RejectsMismatchedOpenInds(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	target, err := tn.NewNetwork(randTensor(t, []string{"i", "j"}, []int{4, 4}, tensor.Float64, rng))
	require.NoError(t, err)
	ansatz, err := tn.NewNetwork(randTensor(t, []string{"i", "k"}, []int{4, 4}, tensor.Float64, rng))
	require.NoError(t, err)

	_, _, err = fit.Fit(context.Background(), ansatz, target, fit.Config{})
	var lerr *tn.LogicError
	require.ErrorAs(t, err, &lerr)
}

func TestFit_RejectsMismatchedDims(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	target, err := tn.NewNetwork(randTensor(t, []string{"i", "j"}, []int{4, 4}, tensor.Float64, rng))
	require.NoError(t, err)
	ansatz, err := tn.NewNetwork(randTensor(t, []string{"i", "j"}, []int{4, 3}, tensor.Float64, rng))
	require.NoError(t, err)

	_, _, err = fit.Fit(context.Background(), ansatz, target, fit.Config{})
	var serr *tn.ShapeMismatchError
	require.ErrorAs(t, err, &serr)
}

func TestFit_ContextCancellation(t *testing.T) {
	ansatz, target := matrixProblem(t, 2, tensor.Float64, 12)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := fit.Fit(ctx, ansatz, target, fit.Config{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFit_CancellationReturnsBestSoFar(t *testing.T) {
	ansatz, target := matrixProblem(t, 2, tensor.Float64, 14)

	ctx, cancel := context.WithCancel(context.Background())
	net, report, err := fit.Fit(ctx, ansatz, target, fit.Config{
		MaxIter: 50,
		Progress: func(p fit.Progress) {
			if p.Iter == 1 {
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, net)
	require.NotNil(t, report)
	assert.False(t, math.IsNaN(report.Distance))
}

func TestFit_SingleTensorAnsatzIsDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	target, err := tn.NewNetwork(
		randTensor(t, []string{"i", "b"}, []int{3, 5}, tensor.Float64, rng),
		randTensor(t, []string{"b", "j"}, []int{5, 3}, tensor.Float64, rng),
	)
	require.NoError(t, err)
	ansatz, err := tn.NewNetwork(randTensor(t, []string{"i", "j"}, []int{3, 3}, tensor.Float64, rng))
	require.NoError(t, err)

	// A full-rank single tensor fits any target exactly in one sweep.
	_, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{})
	require.NoError(t, err)
	assert.Less(t, report.Distance, 1e-6)
}
