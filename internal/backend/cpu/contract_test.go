package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjdu10/quimb/internal/tensor"
)

func fromF64(t *testing.T, data []float64, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return raw
}

func TestContract_MatMul(t *testing.T) {
	c := New()

	// [2,3] x [3,2] -> [2,2], labels: i=0 k=1 j=2
	a := fromF64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromF64(t, []float64{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	out := c.Contract(a, b, tensor.ContractSpec{
		A:      []int{0, 1},
		B:      []int{1, 2},
		Output: []int{0, 2},
	})

	require.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.InDeltaSlice(t, []float64{58, 64, 139, 154}, out.AsFloat64(), 1e-12)
}

func TestContract_OuterProduct(t *testing.T) {
	c := New()

	a := fromF64(t, []float64{1, 2}, tensor.Shape{2})
	b := fromF64(t, []float64{3, 4, 5}, tensor.Shape{3})

	out := c.Contract(a, b, tensor.ContractSpec{
		A:      []int{0},
		B:      []int{1},
		Output: []int{0, 1},
	})

	require.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.InDeltaSlice(t, []float64{3, 4, 5, 6, 8, 10}, out.AsFloat64(), 1e-12)
}

func TestContract_Trace(t *testing.T) {
	c := New()

	// Trace of [[1,2],[3,4]] against a scalar-like all-summed second operand:
	// repeat label 0 on both axes of a, sum it out against ones.
	a := fromF64(t, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	one := fromF64(t, []float64{1}, tensor.Shape{1})

	out := c.Contract(a, one, tensor.ContractSpec{
		A:      []int{0, 0},
		B:      []int{1},
		Output: []int{},
	})

	require.Equal(t, 1, out.NumElements())
	assert.InDelta(t, 5.0, out.AsFloat64()[0], 1e-12)
}

func TestContract_BatchAxis(t *testing.T) {
	c := New()

	// Batched dot product: [2,3]·[2,3] summed over axis 1, batch axis kept.
	a := fromF64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromF64(t, []float64{1, 1, 1, 2, 2, 2}, tensor.Shape{2, 3})

	out := c.Contract(a, b, tensor.ContractSpec{
		A:      []int{0, 1},
		B:      []int{0, 1},
		Output: []int{0},
	})

	require.Equal(t, tensor.Shape{2}, out.Shape())
	assert.InDeltaSlice(t, []float64{6, 30}, out.AsFloat64(), 1e-12)
}

func TestContract_HyperLabel(t *testing.T) {
	c := New()

	// The same label on both operands and in the output behaves as a
	// shared diagonal axis rather than a summation.
	a := fromF64(t, []float64{1, 2}, tensor.Shape{2})
	b := fromF64(t, []float64{3, 4}, tensor.Shape{2})

	out := c.Contract(a, b, tensor.ContractSpec{
		A:      []int{0},
		B:      []int{0},
		Output: []int{0},
	})

	require.Equal(t, tensor.Shape{2}, out.Shape())
	assert.InDeltaSlice(t, []float64{3, 8}, out.AsFloat64(), 1e-12)
}

func TestContract_PromotesRealComplex(t *testing.T) {
	c := New()

	a := fromF64(t, []float64{1, 2}, tensor.Shape{2})
	braw, err := tensor.FromSlice([]complex128{1i, 2}, tensor.Shape{2}, tensor.CPU)
	require.NoError(t, err)

	out := c.Contract(a, braw, tensor.ContractSpec{
		A:      []int{0},
		B:      []int{0},
		Output: []int{},
	})

	require.Equal(t, tensor.Complex128, out.DType())
	got := out.AsComplex128()[0]
	assert.InDelta(t, 4.0, real(got), 1e-12)
	assert.InDelta(t, 1.0, imag(got), 1e-12)
}

func TestContract_DimensionConflictPanics(t *testing.T) {
	c := New()

	a := fromF64(t, []float64{1, 2}, tensor.Shape{2})
	b := fromF64(t, []float64{1, 2, 3}, tensor.Shape{3})

	assert.Panics(t, func() {
		c.Contract(a, b, tensor.ContractSpec{A: []int{0}, B: []int{0}, Output: []int{}})
	})
}
