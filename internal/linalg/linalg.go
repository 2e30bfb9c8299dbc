// Package linalg is the seam between the contraction core and external
// dense linear algebra: SVD, Hermitian eigendecomposition, and linear
// solves. The core invokes these as synchronous calls with a retry-never
// policy; a backend failure is surfaced immediately, never silently retried.
package linalg

import (
	"fmt"

	"github.com/sjdu10/quimb/internal/tensor"
)

// ConvergenceFailure reports an external decomposition that did not converge
// within its iteration budget. It is surfaced to the caller, which may choose
// to retry; the core never does.
type ConvergenceFailure struct {
	Op     string
	Detail string
}

func (e *ConvergenceFailure) Error() string {
	return fmt.Sprintf("linalg: %s did not converge: %s", e.Op, e.Detail)
}

// Backend is the external linear-algebra interface. Inputs are 2D raw
// tensors (real or complex); implementations may be swapped (direct dense,
// iterative, distributed) without changing calling-code semantics.
type Backend interface {
	// SVD computes the thin singular value decomposition m = u * diag(s) * vh
	// with u (r,k), s (k) real, vh (k,c), k = min(r,c). Singular values are
	// returned in descending order.
	SVD(m *tensor.RawTensor) (u, s, vh *tensor.RawTensor, err error)

	// EigHermitian computes the eigendecomposition of a Hermitian (or real
	// symmetric) matrix: vals (n) real ascending, vecs (n,n) with
	// eigenvectors in columns.
	EigHermitian(a *tensor.RawTensor) (vals, vecs *tensor.RawTensor, err error)

	// Solve solves the square system a x = b directly. b may carry multiple
	// right-hand sides as columns.
	Solve(a, b *tensor.RawTensor) (*tensor.RawTensor, error)

	// LstSq solves a x = b in the least-squares sense through the SVD
	// pseudoinverse, discarding singular values below rcond times the
	// largest. Robust to singular a.
	LstSq(a, b *tensor.RawTensor, rcond float64) (*tensor.RawTensor, error)
}

// Truncation describes the outcome of a low-rank truncation: the rank kept
// and the relative singular weight discarded, sqrt(sum of dropped s_i^2 over
// sum of all s_i^2).
type Truncation struct {
	Rank int
	Err  float64
}

// TruncateRank decides how many singular values to keep. maxRank caps the
// rank when positive; cutoff drops values below cutoff times the largest
// when positive. Both policies are explicit configuration; zero disables
// each. At least one value is always kept.
func TruncateRank(s []float64, maxRank int, cutoff float64) int {
	k := len(s)
	if cutoff > 0 && len(s) > 0 {
		if s[0] == 0 {
			// Zero spectrum: relative thresholds are meaningless, keep
			// the single value the contract guarantees.
			return 1
		}
		thresh := cutoff * s[0]
		k = 0
		for _, v := range s {
			if v >= thresh {
				k++
			}
		}
	}
	if maxRank > 0 && maxRank < k {
		k = maxRank
	}
	if k < 1 {
		k = 1
	}
	return k
}
