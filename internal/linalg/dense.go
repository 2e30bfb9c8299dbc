package linalg

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/sjdu10/quimb/internal/tensor"
)

// Dense is the gonum-backed implementation of Backend. Real matrices go to
// gonum directly; complex matrices go through the real 2n x 2n embedding
// [[Re, -Im], [Im, Re]], which is exact for Hermitian eigenproblems and
// linear systems.
type Dense struct{}

// NewDense creates the default dense linear-algebra backend.
func NewDense() *Dense {
	return &Dense{}
}

var _ Backend = (*Dense)(nil)

func matrixDims(x *tensor.RawTensor) (int, int, error) {
	if len(x.Shape()) != 2 {
		return 0, 0, fmt.Errorf("linalg: expected a matrix, got shape %v", x.Shape())
	}
	return x.Shape()[0], x.Shape()[1], nil
}

// toFloat64s reads any real raw tensor as a float64 slice.
func toFloat64s(x *tensor.RawTensor) ([]float64, error) {
	switch x.DType() {
	case tensor.Float64:
		return x.AsFloat64(), nil
	case tensor.Float32:
		src := x.AsFloat32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("linalg: real routine on %s tensor", x.DType())
	}
}

// toComplex128s reads any raw tensor as a complex128 slice.
func toComplex128s(x *tensor.RawTensor) []complex128 {
	switch x.DType() {
	case tensor.Complex128:
		return x.AsComplex128()
	case tensor.Complex64:
		src := x.AsComplex64()
		dst := make([]complex128, len(src))
		for i, v := range src {
			dst[i] = complex128(v)
		}
		return dst
	case tensor.Float64:
		src := x.AsFloat64()
		dst := make([]complex128, len(src))
		for i, v := range src {
			dst[i] = complex(v, 0)
		}
		return dst
	case tensor.Float32:
		src := x.AsFloat32()
		dst := make([]complex128, len(src))
		for i, v := range src {
			dst[i] = complex(float64(v), 0)
		}
		return dst
	default:
		panic(fmt.Sprintf("linalg: unsupported dtype %s", x.DType()))
	}
}

func rawFromF64(data []float64, shape tensor.Shape) *tensor.RawTensor {
	out := tensor.Zeros(shape, tensor.Float64, tensor.CPU)
	copy(out.AsFloat64(), data)
	return out
}

func rawFromC128(data []complex128, shape tensor.Shape) *tensor.RawTensor {
	out := tensor.Zeros(shape, tensor.Complex128, tensor.CPU)
	copy(out.AsComplex128(), data)
	return out
}

// embed builds the real embedding [[Re, -Im], [Im, Re]] of an r x c complex
// matrix as a 2r x 2c gonum matrix.
func embed(m []complex128, r, c int) *mat.Dense {
	e := mat.NewDense(2*r, 2*c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			re, im := real(m[i*c+j]), imag(m[i*c+j])
			e.Set(i, j, re)
			e.Set(i, c+j, -im)
			e.Set(r+i, j, im)
			e.Set(r+i, c+j, re)
		}
	}
	return e
}

// SVD computes the thin singular value decomposition.
func (d *Dense) SVD(m *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor, error) {
	r, c, err := matrixDims(m)
	if err != nil {
		return nil, nil, nil, err
	}
	if m.DType().IsComplex() {
		return d.svdComplex(toComplex128s(m), r, c)
	}

	data, err := toFloat64s(m)
	if err != nil {
		return nil, nil, nil, err
	}
	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(r, c, data), mat.SVDThin); !ok {
		return nil, nil, nil, &ConvergenceFailure{Op: "SVD", Detail: fmt.Sprintf("%dx%d matrix", r, c)}
	}

	k := min(r, c)
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	uData := make([]float64, r*k)
	for i := 0; i < r; i++ {
		for j := 0; j < k; j++ {
			uData[i*k+j] = u.At(i, j)
		}
	}
	vhData := make([]float64, k*c)
	for i := 0; i < k; i++ {
		for j := 0; j < c; j++ {
			vhData[i*c+j] = v.At(j, i)
		}
	}
	return rawFromF64(uData, tensor.Shape{r, k}),
		rawFromF64(s, tensor.Shape{k}),
		rawFromF64(vhData, tensor.Shape{k, c}),
		nil
}

// svdComplex computes a thin complex SVD from the Hermitian eigenproblem of
// conj(M)^T M solved through the real embedding.
func (d *Dense) svdComplex(m []complex128, r, c int) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor, error) {
	// H = M^H M, c x c Hermitian.
	h := make([]complex128, c*c)
	for i := 0; i < c; i++ {
		for j := 0; j < c; j++ {
			var acc complex128
			for k := 0; k < r; k++ {
				mi := m[k*c+i]
				acc += complex(real(mi), -imag(mi)) * m[k*c+j]
			}
			h[i*c+j] = acc
		}
	}

	vals, vecs, err := hermitianEig(h, c)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "complex SVD")
	}

	// Descending singular values; vals come ascending.
	k := min(r, c)
	s := make([]float64, k)
	vh := make([]complex128, k*c)
	u := make([]complex128, r*k)
	for j := 0; j < k; j++ {
		ei := c - 1 - j
		sigma := math.Sqrt(math.Max(vals[ei], 0))
		s[j] = sigma
		for i := 0; i < c; i++ {
			vij := vecs[i*c+ei]
			vh[j*c+i] = complex(real(vij), -imag(vij))
		}
		if sigma > 1e-300 {
			// u_j = M v_j / sigma
			for i := 0; i < r; i++ {
				var acc complex128
				for l := 0; l < c; l++ {
					acc += m[i*c+l] * vecs[l*c+ei]
				}
				u[i*k+j] = acc / complex(sigma, 0)
			}
		}
	}
	return rawFromC128(u, tensor.Shape{r, k}),
		rawFromF64(s, tensor.Shape{k}),
		rawFromC128(vh, tensor.Shape{k, c}),
		nil
}

// EigHermitian computes the eigendecomposition of a Hermitian matrix.
func (d *Dense) EigHermitian(a *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, error) {
	n, c, err := matrixDims(a)
	if err != nil {
		return nil, nil, err
	}
	if n != c {
		return nil, nil, fmt.Errorf("linalg: eig on non-square %dx%d matrix", n, c)
	}

	if a.DType().IsComplex() {
		vals, vecs, err := hermitianEig(toComplex128s(a), n)
		if err != nil {
			return nil, nil, err
		}
		return rawFromF64(vals, tensor.Shape{n}), rawFromC128(vecs, tensor.Shape{n, n}), nil
	}

	data, err := toFloat64s(a)
	if err != nil {
		return nil, nil, err
	}
	var eig mat.EigenSym
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (data[i*n+j]+data[j*n+i])/2)
		}
	}
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, &ConvergenceFailure{Op: "EigHermitian", Detail: fmt.Sprintf("%dx%d matrix", n, n)}
	}

	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	vData := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			vData[i*n+j] = vecs.At(i, j)
		}
	}
	return rawFromF64(vals, tensor.Shape{n}), rawFromF64(vData, tensor.Shape{n, n}), nil
}

// hermitianEig solves the complex Hermitian eigenproblem through the real
// embedding. If H(p+iq) = lambda (p+iq) then the embedding maps (p;q) to
// lambda (p;q), so every real eigenvector of the embedding reads off a
// complex eigenvector directly. Each complex eigenvector spans a real
// 2-plane, so the embedded spectrum is doubled; Gram-Schmidt against the
// vectors already accepted filters the duplicates.
//
// Returns eigenvalues ascending and eigenvectors in the columns of a
// row-major n x n slice.
func hermitianEig(h []complex128, n int) ([]float64, []complex128, error) {
	e := embed(h, n, n)
	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < 2*n; i++ {
		for j := i; j < 2*n; j++ {
			sym.SetSym(i, j, (e.At(i, j)+e.At(j, i))/2)
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, &ConvergenceFailure{Op: "EigHermitian", Detail: fmt.Sprintf("embedded %dx%d matrix", 2*n, 2*n)}
	}

	embVals := eig.Values(nil)
	var embVecs mat.Dense
	eig.VectorsTo(&embVecs)

	vals := make([]float64, 0, n)
	kept := make([][]complex128, 0, n)
	for i := 0; i < 2*n && len(kept) < n; i++ {
		v := make([]complex128, n)
		for j := 0; j < n; j++ {
			v[j] = complex(embVecs.At(j, i), embVecs.At(n+j, i))
		}
		// Project out everything already accepted.
		for _, u := range kept {
			var dot complex128
			for j := 0; j < n; j++ {
				dot += complex(real(u[j]), -imag(u[j])) * v[j]
			}
			for j := 0; j < n; j++ {
				v[j] -= dot * u[j]
			}
		}
		var norm float64
		for _, x := range v {
			norm += real(x)*real(x) + imag(x)*imag(x)
		}
		norm = math.Sqrt(norm)
		if norm < 1e-8 {
			continue // duplicate of an accepted 2-plane
		}
		for j := range v {
			v[j] /= complex(norm, 0)
		}
		vals = append(vals, embVals[i])
		kept = append(kept, v)
	}
	if len(kept) != n {
		return nil, nil, &ConvergenceFailure{Op: "EigHermitian", Detail: "embedded eigenbasis extraction incomplete"}
	}

	vecs := make([]complex128, n*n)
	for col, v := range kept {
		for row := 0; row < n; row++ {
			vecs[row*n+col] = v[row]
		}
	}
	return vals, vecs, nil
}

// Solve solves the square system a x = b directly.
func (d *Dense) Solve(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	n, c, err := matrixDims(a)
	if err != nil {
		return nil, err
	}
	if n != c {
		return nil, fmt.Errorf("linalg: solve on non-square %dx%d matrix", n, c)
	}
	br, bc, err := matrixDims(b)
	if err != nil {
		return nil, err
	}
	if br != n {
		return nil, fmt.Errorf("linalg: solve dimension mismatch, a is %dx%d but b has %d rows", n, n, br)
	}

	if a.DType().IsComplex() || b.DType().IsComplex() {
		return solveEmbedded(toComplex128s(a), toComplex128s(b), n, n, bc, 0, false)
	}

	aData, err := toFloat64s(a)
	if err != nil {
		return nil, err
	}
	bData, err := toFloat64s(b)
	if err != nil {
		return nil, err
	}
	var x mat.Dense
	if err := x.Solve(mat.NewDense(n, n, aData), mat.NewDense(n, bc, bData)); err != nil {
		return nil, errors.Wrapf(err, "linalg: solve %dx%d system", n, n)
	}
	out := make([]float64, n*bc)
	for i := 0; i < n; i++ {
		for j := 0; j < bc; j++ {
			out[i*bc+j] = x.At(i, j)
		}
	}
	return rawFromF64(out, tensor.Shape{n, bc}), nil
}

// LstSq solves a x = b in the least-squares sense via the SVD pseudoinverse.
func (d *Dense) LstSq(a, b *tensor.RawTensor, rcond float64) (*tensor.RawTensor, error) {
	if rcond <= 0 {
		rcond = 1e-12
	}
	ar, ac, err := matrixDims(a)
	if err != nil {
		return nil, err
	}
	br, bc, err := matrixDims(b)
	if err != nil {
		return nil, err
	}
	if br != ar {
		return nil, fmt.Errorf("linalg: lstsq dimension mismatch, a is %dx%d but b has %d rows", ar, ac, br)
	}

	if a.DType().IsComplex() || b.DType().IsComplex() {
		return solveEmbedded(toComplex128s(a), toComplex128s(b), ar, ac, bc, rcond, true)
	}

	aData, err := toFloat64s(a)
	if err != nil {
		return nil, err
	}
	bData, err := toFloat64s(b)
	if err != nil {
		return nil, err
	}
	x, err := lstsqReal(mat.NewDense(ar, ac, aData), mat.NewDense(ar, bc, bData), rcond)
	if err != nil {
		return nil, err
	}
	out := make([]float64, ac*bc)
	for i := 0; i < ac; i++ {
		for j := 0; j < bc; j++ {
			out[i*bc+j] = x.At(i, j)
		}
	}
	return rawFromF64(out, tensor.Shape{ac, bc}), nil
}

func lstsqReal(a, b *mat.Dense, rcond float64) (*mat.Dense, error) {
	var svd mat.SVD
	ar, ac := a.Dims()
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, &ConvergenceFailure{Op: "SVD", Detail: fmt.Sprintf("%dx%d least squares", ar, ac)}
	}
	s := svd.Values(nil)
	rank := 0
	if len(s) > 0 {
		thresh := rcond * s[0]
		for _, v := range s {
			if v > thresh {
				rank++
			}
		}
	}
	if rank == 0 {
		rank = 1
	}
	var x mat.Dense
	svd.SolveTo(&x, b, rank)
	return &x, nil
}

// solveEmbedded solves a complex system through the real embedding:
// a x = b iff [[Re a, -Im a], [Im a, Re a]] [Re x; Im x] = [Re b; Im b].
func solveEmbedded(a, b []complex128, ar, ac, bc int, rcond float64, leastSquares bool) (*tensor.RawTensor, error) {
	e := embed(a, ar, ac)

	be := mat.NewDense(2*ar, bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < bc; j++ {
			be.Set(i, j, real(b[i*bc+j]))
			be.Set(ar+i, j, imag(b[i*bc+j]))
		}
	}

	var x *mat.Dense
	if leastSquares {
		var err error
		x, err = lstsqReal(e, be, rcond)
		if err != nil {
			return nil, err
		}
	} else {
		x = &mat.Dense{}
		if err := x.Solve(e, be); err != nil {
			return nil, errors.Wrapf(err, "linalg: embedded solve of %dx%d complex system", ar, ac)
		}
	}

	out := make([]complex128, ac*bc)
	for i := 0; i < ac; i++ {
		for j := 0; j < bc; j++ {
			out[i*bc+j] = complex(x.At(i, j), x.At(ac+i, j))
		}
	}
	return rawFromC128(out, tensor.Shape{ac, bc}), nil
}
