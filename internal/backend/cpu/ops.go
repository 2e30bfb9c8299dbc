package cpu

import (
	"fmt"

	"github.com/sjdu10/quimb/internal/parallel"
	"github.com/sjdu10/quimb/internal/tensor"
)

// element-wise operation selectors.
const (
	opAdd = iota
	opSub
	opMul
)

// ewise applies the selected binary operation element-wise.
func ewise[T number](op int, dst, a, b []T, cfg parallel.Config) {
	parallel.ForChunks(len(dst), func(start, end int) {
		switch op {
		case opAdd:
			for i := start; i < end; i++ {
				dst[i] = a[i] + b[i]
			}
		case opSub:
			for i := start; i < end; i++ {
				dst[i] = a[i] - b[i]
			}
		case opMul:
			for i := start; i < end; i++ {
				dst[i] = a[i] * b[i]
			}
		}
	}, cfg)
}

func (c *CPUBackend) binaryOp(name string, op int, a, b *tensor.RawTensor) *tensor.RawTensor {
	checkSameShape(name, a, b)
	a, b, dt := c.promote(a, b)
	out := tensor.Zeros(a.Shape(), dt, c.device)

	switch dt {
	case tensor.Float32:
		ewise(op, out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), c.par)
	case tensor.Float64:
		ewise(op, out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), c.par)
	case tensor.Complex64:
		ewise(op, out.AsComplex64(), a.AsComplex64(), b.AsComplex64(), c.par)
	case tensor.Complex128:
		ewise(op, out.AsComplex128(), a.AsComplex128(), b.AsComplex128(), c.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, dt))
	}
	return out
}

// Add performs element-wise addition. Operands must share shape.
func (c *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("add", opAdd, a, b)
}

// Sub performs element-wise subtraction. Operands must share shape.
func (c *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("sub", opSub, a, b)
}

// Mul performs element-wise (Hadamard) multiplication. Operands must share shape.
func (c *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("mul", opMul, a, b)
}

// Scale multiplies every element by s. A real tensor scaled by a scalar with
// nonzero imaginary part is promoted to Complex128 first.
func (c *CPUBackend) Scale(x *tensor.RawTensor, s complex128) *tensor.RawTensor {
	if imag(s) != 0 && !x.DType().IsComplex() {
		x = c.Cast(x, tensor.Complex128)
	}
	out := tensor.Zeros(x.Shape(), x.DType(), c.device)

	switch x.DType() {
	case tensor.Float32:
		f := float32(real(s))
		src, dst := x.AsFloat32(), out.AsFloat32()
		parallel.ForChunks(len(dst), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = src[i] * f
			}
		}, c.par)
	case tensor.Float64:
		f := real(s)
		src, dst := x.AsFloat64(), out.AsFloat64()
		parallel.ForChunks(len(dst), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = src[i] * f
			}
		}, c.par)
	case tensor.Complex64:
		f := complex64(s)
		src, dst := x.AsComplex64(), out.AsComplex64()
		parallel.ForChunks(len(dst), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = src[i] * f
			}
		}, c.par)
	case tensor.Complex128:
		src, dst := x.AsComplex128(), out.AsComplex128()
		parallel.ForChunks(len(dst), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = src[i] * s
			}
		}, c.par)
	default:
		panic(fmt.Sprintf("scale: unsupported dtype %s", x.DType()))
	}
	return out
}

// Conj returns the element-wise complex conjugate. Real dtypes are copied.
func (c *CPUBackend) Conj(x *tensor.RawTensor) *tensor.RawTensor {
	switch x.DType() {
	case tensor.Float32, tensor.Float64:
		return x.DeepClone()
	case tensor.Complex64:
		out := tensor.Zeros(x.Shape(), x.DType(), c.device)
		src, dst := x.AsComplex64(), out.AsComplex64()
		parallel.ForChunks(len(dst), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = complex(real(src[i]), -imag(src[i]))
			}
		}, c.par)
		return out
	case tensor.Complex128:
		out := tensor.Zeros(x.Shape(), x.DType(), c.device)
		src, dst := x.AsComplex128(), out.AsComplex128()
		parallel.ForChunks(len(dst), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = complex(real(src[i]), -imag(src[i]))
			}
		}, c.par)
		return out
	default:
		panic(fmt.Sprintf("conj: unsupported dtype %s", x.DType()))
	}
}
