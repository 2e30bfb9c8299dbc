package cpu

import (
	"fmt"

	"github.com/sjdu10/quimb/internal/parallel"
	"github.com/sjdu10/quimb/internal/tensor"
)

// Contract performs the generalized pairwise contraction described by spec:
// out[o] = sum_s a[o,s] * b[o,s], where o ranges over the output labels and
// s over the labels absent from the output. A label repeated within one
// operand contributes its diagonal (both axes advance together); a summed
// label held by only one operand is a plain axis sum.
//
// Operands of differing dtype are cast to their promoted common type first;
// accumulation happens in that type.
//
// TODO: route the no-trace, no-hyper case through gonum/blas GEMM once the
// raw layer grows a pinned matrix view.
func (c *CPUBackend) Contract(a, b *tensor.RawTensor, spec tensor.ContractSpec) *tensor.RawTensor {
	if len(spec.A) != len(a.Shape()) {
		panic(fmt.Sprintf("contract: %d labels for rank-%d operand", len(spec.A), len(a.Shape())))
	}
	if len(spec.B) != len(b.Shape()) {
		panic(fmt.Sprintf("contract: %d labels for rank-%d operand", len(spec.B), len(b.Shape())))
	}

	// Dimension per label, with agreement enforced across every occurrence.
	dims := map[int]int{}
	record := func(lbl, dim int) {
		if d, ok := dims[lbl]; ok && d != dim {
			panic(fmt.Sprintf("contract: label %d has conflicting dimensions %d and %d", lbl, d, dim))
		}
		dims[lbl] = dim
	}
	for i, lbl := range spec.A {
		record(lbl, a.Shape()[i])
	}
	for i, lbl := range spec.B {
		record(lbl, b.Shape()[i])
	}

	inOutput := map[int]bool{}
	for _, lbl := range spec.Output {
		if _, ok := dims[lbl]; !ok {
			panic(fmt.Sprintf("contract: output label %d absent from both operands", lbl))
		}
		inOutput[lbl] = true
	}

	// Summed labels, in first-appearance order for determinism.
	var sumLabels []int
	seen := map[int]bool{}
	for _, lbl := range append(append([]int{}, spec.A...), spec.B...) {
		if !inOutput[lbl] && !seen[lbl] {
			seen[lbl] = true
			sumLabels = append(sumLabels, lbl)
		}
	}

	// Per-label strides; a repeated label accumulates both axis strides,
	// which walks the diagonal.
	strideFor := func(labels []int, strides []int) map[int]int {
		m := map[int]int{}
		for i, lbl := range labels {
			m[lbl] += strides[i]
		}
		return m
	}
	aStr := strideFor(spec.A, a.Strides())
	bStr := strideFor(spec.B, b.Strides())

	outDims := make([]int, len(spec.Output))
	aOut := make([]int, len(spec.Output))
	bOut := make([]int, len(spec.Output))
	for i, lbl := range spec.Output {
		outDims[i] = dims[lbl]
		aOut[i] = aStr[lbl]
		bOut[i] = bStr[lbl]
	}
	sumDims := make([]int, len(sumLabels))
	aSum := make([]int, len(sumLabels))
	bSum := make([]int, len(sumLabels))
	for i, lbl := range sumLabels {
		sumDims[i] = dims[lbl]
		aSum[i] = aStr[lbl]
		bSum[i] = bStr[lbl]
	}

	a, b, dt := c.promote(a, b)
	out := tensor.Zeros(tensor.Shape(outDims), dt, c.device)

	switch dt {
	case tensor.Float32:
		contractKernel(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), outDims, sumDims, aOut, bOut, aSum, bSum, c.par)
	case tensor.Float64:
		contractKernel(out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), outDims, sumDims, aOut, bOut, aSum, bSum, c.par)
	case tensor.Complex64:
		contractKernel(out.AsComplex64(), a.AsComplex64(), b.AsComplex64(), outDims, sumDims, aOut, bOut, aSum, bSum, c.par)
	case tensor.Complex128:
		contractKernel(out.AsComplex128(), a.AsComplex128(), b.AsComplex128(), outDims, sumDims, aOut, bOut, aSum, bSum, c.par)
	default:
		panic(fmt.Sprintf("contract: unsupported dtype %s", dt))
	}
	return out
}

// contractKernel walks the output space in row-major order, accumulating the
// sum space for each element. Both spaces advance by odometer increments so
// the inner loops are free of division.
func contractKernel[T number](dst, a, b []T, outDims, sumDims, aOut, bOut, aSum, bSum []int, cfg parallel.Config) {
	sumN := 1
	for _, d := range sumDims {
		sumN *= d
	}

	parallel.ForChunks(len(dst), func(start, end int) {
		// Position the output odometer at start.
		coords := make([]int, len(outDims))
		aBase, bBase := 0, 0
		rem := start
		for k := len(outDims) - 1; k >= 0; k-- {
			coords[k] = rem % outDims[k]
			rem /= outDims[k]
			aBase += coords[k] * aOut[k]
			bBase += coords[k] * bOut[k]
		}

		sc := make([]int, len(sumDims))
		for oi := start; oi < end; oi++ {
			var acc T
			aOff, bOff := aBase, bBase
			for si := 0; si < sumN; si++ {
				acc += a[aOff] * b[bOff]
				for k := len(sumDims) - 1; k >= 0; k-- {
					sc[k]++
					aOff += aSum[k]
					bOff += bSum[k]
					if sc[k] < sumDims[k] {
						break
					}
					sc[k] = 0
					aOff -= aSum[k] * sumDims[k]
					bOff -= bSum[k] * sumDims[k]
				}
			}
			dst[oi] = acc

			for k := len(outDims) - 1; k >= 0; k-- {
				coords[k]++
				aBase += aOut[k]
				bBase += bOut[k]
				if coords[k] < outDims[k] {
					break
				}
				coords[k] = 0
				aBase -= aOut[k] * outDims[k]
				bBase -= bOut[k] * outDims[k]
			}
		}
	}, cfg)
}
