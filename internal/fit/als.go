package fit

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sjdu10/quimb/internal/contract"
	"github.com/sjdu10/quimb/internal/tensor"
	"github.com/sjdu10/quimb/internal/tn"
)

// sweepALS performs one alternating least squares pass, solving the exact
// normal equations for each optimized tensor in turn while the rest of the
// network is held fixed.
func (f *Fitter) sweepALS(ctx context.Context) error {
	for _, tid := range f.sweepOrder() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.solveSite(ctx, tid); err != nil {
			return errors.Wrapf(err, "solving site %d", tid)
		}
	}
	return nil
}

// solveSite replaces tensor tid with the minimizer of the distance over
// that tensor alone. With the rest of the network fixed the problem is
// linear: E x = b, where E is the environment of the site paired with its
// conjugate and b the environment paired with the target. Open indices of
// the site enter E as an implicit identity and become right-hand-side
// columns.
func (f *Fitter) solveSite(ctx context.Context, tid int) error {
	site, ok := f.ket.Tensor(tid)
	if !ok {
		return &tn.LogicError{Reason: "site vanished mid-sweep"}
	}
	env, open := f.partitionSiteInds(site)
	be := site.Backend()
	exec := contract.ExecConfig{}

	braMinus, err := conjPrimed(f.ket, f.prime)
	if err != nil {
		return err
	}
	if _, err := braMinus.Remove(tid); err != nil {
		return err
	}

	// Single-tensor ansatz: the environment is the identity, so the
	// optimum is the target reduced to the site's indices.
	if braMinus.NumTensors() == 0 {
		x, _, err := contract.Network(ctx, f.target, site.Inds(), f.planner, exec)
		if err != nil {
			return err
		}
		return f.replaceSite(tid, site, x.Raw(), site.Inds())
	}

	outE := make([]string, 0, 2*len(env))
	for _, ind := range env {
		outE = append(outE, f.prime[ind])
	}
	outE = append(outE, env...)

	outB := make([]string, 0, len(env)+len(open))
	for _, ind := range env {
		outB = append(outB, f.prime[ind])
	}
	outB = append(outB, open...)

	ketMinus := f.ket.Clone()
	if _, err := ketMinus.Remove(tid); err != nil {
		return err
	}
	combE, err := braMinus.Combine(ketMinus)
	if err != nil {
		return err
	}
	envT, _, err := contract.Network(ctx, combE, outE, f.planner, exec)
	if err != nil {
		return errors.Wrap(err, "contracting environment")
	}

	combB, err := braMinus.Combine(f.target)
	if err != nil {
		return err
	}
	rhsT, _, err := contract.Network(ctx, combB, outB, f.planner, exec)
	if err != nil {
		return errors.Wrap(err, "contracting right-hand side")
	}

	dEnv, dOpen := 1, 1
	for _, ind := range env {
		d, _ := site.IndDim(ind)
		dEnv *= d
	}
	for _, ind := range open {
		d, _ := site.IndDim(ind)
		dOpen *= d
	}

	em := be.Reshape(envT.Raw(), tensor.Shape{dEnv, dEnv})
	bm := be.Reshape(rhsT.Raw(), tensor.Shape{dEnv, dOpen})
	if em.DType().IsComplex() || bm.DType().IsComplex() {
		em = be.Cast(em, tensor.Complex128)
		bm = be.Cast(bm, tensor.Complex128)
	}

	// Environments are routinely singular (gauge freedom, zero modes), so
	// solve in the least squares sense rather than inverting.
	x, err := f.lin.LstSq(em, bm, 0)
	if err != nil {
		return errors.Wrap(err, "solving normal equations")
	}

	dims := make(tensor.Shape, 0, len(env)+len(open))
	newInds := make([]string, 0, len(env)+len(open))
	for _, ind := range append(append([]string{}, env...), open...) {
		d, _ := site.IndDim(ind)
		dims = append(dims, d)
		newInds = append(newInds, ind)
	}
	return f.replaceSite(tid, site, be.Reshape(x, dims), newInds)
}

// partitionSiteInds splits a site's indices into those bonded to the rest
// of the network and its own open legs.
func (f *Fitter) partitionSiteInds(site *tn.Tensor) (env, open []string) {
	for _, ind := range site.Inds() {
		if f.ket.Registry().Multiplicity(ind) >= 2 {
			env = append(env, ind)
		} else {
			open = append(open, ind)
		}
	}
	return env, open
}

func (f *Fitter) replaceSite(tid int, old *tn.Tensor, raw *tensor.RawTensor, inds []string) error {
	be := old.Backend()
	if raw.DType() != old.DType() {
		raw = be.Cast(raw, old.DType())
	}
	nt, err := tn.New(raw, inds, be)
	if err != nil {
		return err
	}
	for _, tag := range old.Tags() {
		nt.AddTag(tag)
	}
	return f.ket.Replace(tid, nt)
}
