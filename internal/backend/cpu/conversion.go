package cpu

import (
	"fmt"

	"github.com/sjdu10/quimb/internal/tensor"
)

// getter returns an accessor reading element i of x as complex128.
func getter(x *tensor.RawTensor) func(i int) complex128 {
	switch x.DType() {
	case tensor.Float32:
		data := x.AsFloat32()
		return func(i int) complex128 { return complex(float64(data[i]), 0) }
	case tensor.Float64:
		data := x.AsFloat64()
		return func(i int) complex128 { return complex(data[i], 0) }
	case tensor.Complex64:
		data := x.AsComplex64()
		return func(i int) complex128 { return complex128(data[i]) }
	case tensor.Complex128:
		data := x.AsComplex128()
		return func(i int) complex128 { return data[i] }
	default:
		panic(fmt.Sprintf("cast: unsupported dtype %s", x.DType()))
	}
}

// Cast converts x to a different data type. Same-dtype casts return x
// unchanged. Complex to real drops the imaginary part; callers are expected
// to know it is zero.
func (c *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x
	}
	out := tensor.Zeros(x.Shape(), dtype, c.device)
	get := getter(x)
	n := x.NumElements()

	switch dtype {
	case tensor.Float32:
		dst := out.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = float32(real(get(i)))
		}
	case tensor.Float64:
		dst := out.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = real(get(i))
		}
	case tensor.Complex64:
		dst := out.AsComplex64()
		for i := 0; i < n; i++ {
			dst[i] = complex64(get(i))
		}
	case tensor.Complex128:
		dst := out.AsComplex128()
		for i := 0; i < n; i++ {
			dst[i] = get(i)
		}
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", dtype))
	}
	return out
}
