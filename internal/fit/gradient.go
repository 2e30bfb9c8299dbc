package fit

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/sjdu10/quimb/internal/contract"
	"github.com/sjdu10/quimb/internal/tensor"
	"github.com/sjdu10/quimb/internal/tn"
)

// stepGradient takes one simultaneous first-order step on every optimized
// tensor. The gradient of the squared distance with respect to the
// conjugate of site tensor x is the analytic residual E x - b: the site's
// environment applied to it, minus the target's environment.
func (f *Fitter) stepGradient(ctx context.Context, step int) error {
	grads := map[int]*tn.Tensor{}
	for _, tid := range f.sites {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, err := f.siteGradient(ctx, tid)
		if err != nil {
			return errors.Wrapf(err, "gradient of site %d", tid)
		}
		grads[tid] = g
	}
	for _, tid := range f.sites {
		if err := f.applyAdam(tid, grads[tid], step); err != nil {
			return errors.Wrapf(err, "updating site %d", tid)
		}
	}
	return nil
}

// siteGradient contracts the two environments of a site. Both are taken
// with the same output index order, the site's own, so the residual is a
// plain elementwise difference.
func (f *Fitter) siteGradient(ctx context.Context, tid int) (*tn.Tensor, error) {
	site, ok := f.ket.Tensor(tid)
	if !ok {
		return nil, &tn.LogicError{Reason: "site vanished mid-step"}
	}
	be := site.Backend()
	exec := contract.ExecConfig{}

	braMinus, err := conjPrimed(f.ket, f.prime)
	if err != nil {
		return nil, err
	}
	if _, err := braMinus.Remove(tid); err != nil {
		return nil, err
	}

	if braMinus.NumTensors() == 0 {
		// Identity environment: the residual is x minus the reduced target.
		b, _, err := contract.Network(ctx, f.target, site.Inds(), f.planner, exec)
		if err != nil {
			return nil, err
		}
		return residual(site.Raw(), b.Raw(), site, be)
	}

	// Bonded indices surface under their primed names, open legs of the
	// site under their own.
	output := make([]string, len(site.Inds()))
	for i, ind := range site.Inds() {
		if p, ok := f.prime[ind]; ok && f.ket.Registry().Multiplicity(ind) >= 2 {
			output[i] = p
		} else {
			output[i] = ind
		}
	}

	combEx, err := braMinus.Combine(f.ket)
	if err != nil {
		return nil, err
	}
	ex, _, err := contract.Network(ctx, combEx, output, f.planner, exec)
	if err != nil {
		return nil, errors.Wrap(err, "applying environment")
	}

	combB, err := braMinus.Combine(f.target)
	if err != nil {
		return nil, err
	}
	b, _, err := contract.Network(ctx, combB, output, f.planner, exec)
	if err != nil {
		return nil, errors.Wrap(err, "contracting right-hand side")
	}

	return residual(ex.Raw(), b.Raw(), site, be)
}

func residual(ex, b *tensor.RawTensor, site *tn.Tensor, be tensor.Backend) (*tn.Tensor, error) {
	dt := tensor.Promote(ex.DType(), b.DType())
	if ex.DType() != dt {
		ex = be.Cast(ex, dt)
	}
	if b.DType() != dt {
		b = be.Cast(b, dt)
	}
	return tn.New(be.Sub(ex, b), site.Inds(), be)
}

// Adam moment coefficients.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

type adamState struct {
	m []complex128
	v []float64
}

// applyAdam performs an Adam update of one site in complex arithmetic: the
// first moment averages the gradient itself, the second its squared
// magnitude.
func (f *Fitter) applyAdam(tid int, grad *tn.Tensor, step int) error {
	site, _ := f.ket.Tensor(tid)

	x := asComplex(site.Raw())
	g := asComplex(grad.Raw())
	if len(x) != len(g) {
		return &tn.LogicError{Reason: "gradient shape disagrees with site"}
	}

	if f.adam == nil {
		f.adam = map[int]*adamState{}
	}
	st := f.adam[tid]
	if st == nil {
		st = &adamState{m: make([]complex128, len(x)), v: make([]float64, len(x))}
		f.adam[tid] = st
	}

	c1 := 1 - math.Pow(adamBeta1, float64(step))
	c2 := 1 - math.Pow(adamBeta2, float64(step))
	lr := f.cfg.LearningRate
	for i := range x {
		st.m[i] = complex(adamBeta1, 0)*st.m[i] + complex(1-adamBeta1, 0)*g[i]
		gm := real(g[i])*real(g[i]) + imag(g[i])*imag(g[i])
		st.v[i] = adamBeta2*st.v[i] + (1-adamBeta2)*gm
		mhat := st.m[i] / complex(c1, 0)
		vhat := st.v[i] / c2
		x[i] -= complex(lr, 0) * mhat / complex(math.Sqrt(vhat)+adamEps, 0)
	}

	raw := tensor.Zeros(site.Shape(), tensor.Complex128, site.Raw().Device())
	copy(raw.AsComplex128(), x)
	return f.replaceSite(tid, site, raw, site.Inds())
}

func asComplex(r *tensor.RawTensor) []complex128 {
	out := make([]complex128, r.NumElements())
	switch r.DType() {
	case tensor.Float32:
		for i, v := range r.AsFloat32() {
			out[i] = complex(float64(v), 0)
		}
	case tensor.Float64:
		for i, v := range r.AsFloat64() {
			out[i] = complex(v, 0)
		}
	case tensor.Complex64:
		for i, v := range r.AsComplex64() {
			out[i] = complex128(v)
		}
	default:
		copy(out, r.AsComplex128())
	}
	return out
}
