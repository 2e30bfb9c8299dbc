package tn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjdu10/quimb/internal/backend/cpu"
	"github.com/sjdu10/quimb/internal/tensor"
	"github.com/sjdu10/quimb/internal/tn"
)

func randTensor(t *testing.T, inds []string, dims []int, rng *rand.Rand) *tn.Tensor {
	t.Helper()
	ts, err := tn.Randn(inds, dims, tensor.Float64, cpu.New(), rng)
	require.NoError(t, err)
	return ts
}

func TestNew_RankMismatch(t *testing.T) {
	raw := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float64, tensor.CPU)

	_, err := tn.New(raw, []string{"a"}, cpu.New())
	var lerr *tn.LogicError
	require.ErrorAs(t, err, &lerr)
}

func TestContractWith_SharedIndex(t *testing.T) {
	b := cpu.New()

	a, err := tn.FromSlice([]float64{1, 2, 3, 4, 5, 6}, []string{"i", "k"}, []int{2, 3}, b)
	require.NoError(t, err)
	c, err := tn.FromSlice([]float64{7, 8, 9, 10, 11, 12}, []string{"k", "j"}, []int{3, 2}, b)
	require.NoError(t, err)

	out, err := a.ContractWith(c, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"i", "j"}, out.Inds())
	assert.InDeltaSlice(t, []float64{58, 64, 139, 154}, out.Raw().AsFloat64(), 1e-12)
}

func TestContractWith_OuterProductNorm(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := randTensor(t, []string{"i", "j"}, []int{3, 4}, rng)
	b := randTensor(t, []string{"k"}, []int{5}, rng)

	out, err := a.ContractWith(b, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"i", "j", "k"}, out.Inds())

	// Disjoint index sets: norm of the outer product is the product of norms.
	assert.InDelta(t, a.Norm()*b.Norm(), out.Norm(), 1e-10)
}

func TestContractWith_SelfConjIsNormSquared(t *testing.T) {
	b := cpu.New()
	data := []complex128{1 + 1i, 2 - 3i, 0.5i, -2}
	a, err := tn.FromSlice(data, []string{"i", "j"}, []int{2, 2}, b)
	require.NoError(t, err)

	out, err := a.ContractWith(a.Conj(), []string{})
	require.NoError(t, err)
	v, err := out.Scalar()
	require.NoError(t, err)

	assert.InDelta(t, 0, imag(v), 1e-12)
	assert.GreaterOrEqual(t, real(v), 0.0)
	assert.InDelta(t, a.Norm()*a.Norm(), real(v), 1e-10)
}

func TestContractWith_RequestedBroadcastAxis(t *testing.T) {
	b := cpu.New()
	a, err := tn.FromSlice([]float64{1, 2}, []string{"i"}, []int{2}, b)
	require.NoError(t, err)
	c, err := tn.FromSlice([]float64{3, 4}, []string{"j"}, []int{2}, b)
	require.NoError(t, err)

	// Disjoint indices, both requested: survives as an outer product.
	out, err := a.ContractWith(c, []string{"j", "i"})
	require.NoError(t, err)
	require.Equal(t, []string{"j", "i"}, out.Inds())
	assert.InDeltaSlice(t, []float64{3, 6, 4, 8}, out.Raw().AsFloat64(), 1e-12)
}

func TestContractWith_ShapeMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := randTensor(t, []string{"i"}, []int{2}, rng)
	b := randTensor(t, []string{"i"}, []int{3}, rng)

	_, err := a.ContractWith(b, nil)
	var serr *tn.ShapeMismatchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "i", serr.Ind)
}

func TestContractWith_UnknownOutputIndex(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := randTensor(t, []string{"i"}, []int{2}, rng)
	b := randTensor(t, []string{"i"}, []int{2}, rng)

	_, err := a.ContractWith(b, []string{"nope"})
	var lerr *tn.LogicError
	require.ErrorAs(t, err, &lerr)
}

func TestContractWith_TraceWithinOneOperand(t *testing.T) {
	b := cpu.New()
	a, err := tn.FromSlice([]float64{1, 2, 3, 4}, []string{"i", "i"}, []int{2, 2}, b)
	require.NoError(t, err)
	one, err := tn.FromSlice([]float64{1}, []string{"u"}, []int{1}, b)
	require.NoError(t, err)

	out, err := a.ContractWith(one, []string{})
	require.NoError(t, err)
	v, err := out.Scalar()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, real(v), 1e-12)
}

func TestConj_KeepsIndexOrder(t *testing.T) {
	b := cpu.New()
	a, err := tn.FromSlice([]complex128{1 + 2i, 3 - 1i}, []string{"x"}, []int{2}, b)
	require.NoError(t, err)

	c := a.Conj()
	assert.Equal(t, a.Inds(), c.Inds())
	assert.Equal(t, complex128(1-2i), c.Raw().AsComplex128()[0])
}

func TestReindex_Bijective(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randTensor(t, []string{"i", "j"}, []int{2, 3}, rng)

	require.NoError(t, a.Reindex(map[string]string{"i": "p", "j": "q"}))
	assert.Equal(t, []string{"p", "q"}, a.Inds())

	err := a.Reindex(map[string]string{"p": "q"})
	var cerr *tn.ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestNormalize(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randTensor(t, []string{"i", "j"}, []int{4, 4}, rng)

	require.NoError(t, a.Normalize())
	assert.InDelta(t, 1.0, a.Norm(), 1e-12)
}

func TestTags(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := randTensor(t, []string{"i"}, []int{2}, rng)

	a.AddTag("site0")
	a.AddTag("ket")
	assert.True(t, a.HasTag("site0"))
	assert.Equal(t, []string{"ket", "site0"}, a.Tags())

	a.DropTag("ket")
	assert.False(t, a.HasTag("ket"))
}

func TestNorm_MatchesDirectSum(t *testing.T) {
	b := cpu.New()
	a, err := tn.FromSlice([]float64{3, 4}, []string{"i"}, []int{2}, b)
	require.NoError(t, err)
	assert.InDelta(t, 5, a.Norm(), 1e-12)
	assert.InDelta(t, math.Sqrt(25), a.Norm(), 1e-12)
}
