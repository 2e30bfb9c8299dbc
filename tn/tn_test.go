// Copyright 2026 The quimb-go authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tn_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjdu10/quimb/backend/cpu"
	"github.com/sjdu10/quimb/contract"
	"github.com/sjdu10/quimb/fit"
	"github.com/sjdu10/quimb/tensor"
	"github.com/sjdu10/quimb/tn"
)

// End-to-end pass through the public API: build a small matrix product
// state, contract it, and fit a fresh ansatz to it.
func TestPublicAPI_EndToEnd(t *testing.T) {
	b := cpu.New()

	mps := func(seed int64) *tn.TensorNetwork {
		r := rand.New(rand.NewSource(seed))
		t1, err := tn.Randn([]string{"p0", "b0"}, []int{2, 3}, tensor.Float64, b, r)
		require.NoError(t, err)
		t2, err := tn.Randn([]string{"b0", "p1", "b1"}, []int{3, 2, 3}, tensor.Float64, b, r)
		require.NoError(t, err)
		t3, err := tn.Randn([]string{"b1", "p2"}, []int{3, 2}, tensor.Float64, b, r)
		require.NoError(t, err)
		net, err := tn.NewNetwork(t1, t2, t3)
		require.NoError(t, err)
		return net
	}

	target := mps(1)
	assert.Equal(t, []string{"p0", "p1", "p2"}, target.OpenInds())

	// Contract to the dense state and check the norm squares agree with
	// the overlap network.
	dense, info, err := contract.Network(context.Background(), target, nil, nil, contract.ExecConfig{})
	require.NoError(t, err)
	require.Equal(t, []string{"p0", "p1", "p2"}, dense.Inds())
	assert.Greater(t, info.Flops, 0.0)

	direct := dense.Norm()

	conj := target.Conj()
	require.NoError(t, conj.Reindex(map[string]string{"b0": "c0", "b1": "c1"}))
	overlapNet, err := conj.Combine(target)
	require.NoError(t, err)
	scalar, _, err := contract.Network(context.Background(), overlapNet, nil, nil, contract.ExecConfig{})
	require.NoError(t, err)
	v, err := scalar.Scalar()
	require.NoError(t, err)
	assert.InDelta(t, direct*direct, real(v), 1e-8)

	// Fit an independent ansatz of the same structure to the target.
	ansatz := mps(2)
	fitted, report, err := fit.Fit(context.Background(), ansatz, target, fit.Config{MaxIter: 60})
	require.NoError(t, err)
	require.NotNil(t, fitted)
	assert.Less(t, report.Distance, 1e-4)
}
