// Copyright 2026 The quimb-go authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package fit optimizes the tensors of an ansatz network to approximate a
// target network with the same open indices.
//
// Two methods are available: alternating least squares, which exactly
// solves for one tensor at a time, and Adam-driven gradient descent. Both
// minimize the Frobenius distance between the states the two networks
// represent, track the best network seen, and stop on convergence, budget
// exhaustion, or divergence.
//
//	best, report, err := fit.Fit(ctx, ansatz, target, fit.Config{})
package fit

import (
	"context"

	"github.com/sjdu10/quimb/internal/fit"
	"github.com/sjdu10/quimb/internal/tn"
)

// Fitter drives one optimization run. Single-use.
type Fitter = fit.Fitter

// Config configures a fit.
type Config = fit.Config

// State tracks the fitter's lifecycle.
type State = fit.State

// Lifecycle states.
const (
	StateInitialized     = fit.StateInitialized
	StateIterating       = fit.StateIterating
	StateConverged       = fit.StateConverged
	StateBudgetExhausted = fit.StateBudgetExhausted
	StateDiverged        = fit.StateDiverged
)

// Fitting methods.
const (
	MethodALS      = fit.MethodALS
	MethodGradient = fit.MethodGradient
)

// Defaults.
const (
	DefaultMaxIter      = fit.DefaultMaxIter
	DefaultTol          = fit.DefaultTol
	DefaultLearningRate = fit.DefaultLearningRate
)

// Progress is handed to the Progress callback after every iteration.
type Progress = fit.Progress

// Report summarizes a finished run.
type Report = fit.Report

// ErrDiverged reports a run whose loss became non-finite or grew far past
// its starting value.
var ErrDiverged = fit.ErrDiverged

// New validates the problem and prepares a fitter.
func New(ansatz, target *tn.TensorNetwork, cfg Config) (*Fitter, error) {
	return fit.New(ansatz, target, cfg)
}

// Fit is the one-call form of New followed by Run.
func Fit(ctx context.Context, ansatz, target *tn.TensorNetwork, cfg Config) (*tn.TensorNetwork, *Report, error) {
	return fit.Fit(ctx, ansatz, target, cfg)
}
