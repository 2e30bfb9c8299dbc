package cpu

import (
	"fmt"

	"github.com/sjdu10/quimb/internal/tensor"
)

// Reshape returns a view of x under a new shape with the same element count.
// Tensors are always contiguous row-major, so no data movement is needed.
func (c *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return x.WithShape(shape)
}

// Transpose materializes the permutation of x's axes. With no axes given,
// the axis order is reversed.
func (c *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	rank := len(x.Shape())
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: %d axes for rank-%d tensor", len(axes), rank))
	}

	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	srcStride := make([]int, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = x.Shape()[ax]
		srcStride[i] = x.Strides()[ax]
	}

	out := tensor.Zeros(outShape, x.DType(), c.device)
	sz := x.DType().Size()
	src, dst := x.Data(), out.Data()

	coords := make([]int, rank)
	srcOff := 0
	n := out.NumElements()
	for i := 0; i < n; i++ {
		copy(dst[i*sz:(i+1)*sz], src[srcOff*sz:srcOff*sz+sz])
		for k := rank - 1; k >= 0; k-- {
			coords[k]++
			srcOff += srcStride[k]
			if coords[k] < outShape[k] {
				break
			}
			coords[k] = 0
			srcOff -= srcStride[k] * outShape[k]
		}
	}
	return out
}
