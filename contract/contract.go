// Copyright 2026 The quimb-go authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package contract plans and executes multi-tensor contractions.
//
// Planning turns a set of labeled tensors and a requested output into a
// sequence of pairwise contraction steps: greedily, exhaustively for small
// problems, in fixed chain order, or through a caller-supplied optimizer.
// Execution runs the steps, optionally truncating intermediates by SVD or
// dispatching independent steps in parallel.
//
//	out, info, err := contract.Network(ctx, net, nil, nil, contract.ExecConfig{})
//
// contracts a whole network to its open indices with default planning and
// reports the path's predicted cost.
package contract

import (
	"context"

	"github.com/sjdu10/quimb/internal/contract"
	"github.com/sjdu10/quimb/internal/tn"
)

// Step is one pairwise contraction over ssa ids.
type Step = contract.Step

// Path is an ordered sequence of pairwise contraction steps in ssa form.
type Path = contract.Path

// PathInfo reports a path's total operation count and contraction width.
type PathInfo = contract.PathInfo

// Planner turns a contraction problem into an executable path.
type Planner = contract.Planner

// PlannerConfig configures path planning.
type PlannerConfig = contract.PlannerConfig

// Planning methods.
const (
	MethodAuto    = contract.MethodAuto
	MethodGreedy  = contract.MethodGreedy
	MethodOptimal = contract.MethodOptimal
	MethodChain   = contract.MethodChain
)

// DefaultOptimalThreshold is the largest input count MethodAuto hands to
// the exhaustive planner.
const DefaultOptimalThreshold = contract.DefaultOptimalThreshold

// Optimizer plans paths for an externally supplied strategy.
type Optimizer = contract.Optimizer

// PathFunc adapts a function to the Optimizer interface.
type PathFunc = contract.PathFunc

// LiteralPath is an Optimizer replaying a fixed path.
type LiteralPath = contract.LiteralPath

// PathCache memoizes plans across structurally identical problems.
type PathCache = contract.PathCache

// CacheStore is the storage behind a PathCache.
type CacheStore = contract.CacheStore

// ExecConfig configures path execution.
type ExecConfig = contract.ExecConfig

// TruncateConfig bounds intermediate bond dimensions during execution.
type TruncateConfig = contract.TruncateConfig

// Result is the outcome of executing a path.
type Result = contract.Result

// DefaultMinParallelFlops is the per-step operation count below which
// parallel dispatch is skipped.
const DefaultMinParallelFlops = contract.DefaultMinParallelFlops

// NewPlanner builds a planner from a configuration.
func NewPlanner(cfg PlannerConfig) *Planner {
	return contract.NewPlanner(cfg)
}

// NewPathCache returns a cache backed by an in-process map.
func NewPathCache() *PathCache {
	return contract.NewPathCache()
}

// NewPathCacheWith returns a cache backed by a caller-supplied store.
func NewPathCacheWith(store CacheStore) *PathCache {
	return contract.NewPathCacheWith(store)
}

// LinearToSSA converts a path over a shrinking operand list into ssa form.
func LinearToSSA(numInputs int, pairs [][2]int) (*Path, error) {
	return contract.LinearToSSA(numInputs, pairs)
}

// Info computes the cost report for a path over the given problem.
func Info(inputs [][]string, output []string, dims map[string]int, path *Path) (*PathInfo, error) {
	return contract.Info(inputs, output, dims, path)
}

// Execute runs a contraction path over positional tensors.
func Execute(ctx context.Context, path *Path, tensors []*tn.Tensor, output []string, cfg ExecConfig) (*Result, error) {
	return contract.Execute(ctx, path, tensors, output, cfg)
}

// Network plans and executes the full contraction of a tensor network.
func Network(ctx context.Context, net *tn.TensorNetwork, output []string, planner *Planner, cfg ExecConfig) (*tn.Tensor, *PathInfo, error) {
	return contract.Network(ctx, net, output, planner, cfg)
}

// NetworkPartial executes only the first maxSteps contractions of a
// planned path, returning the reduced network.
func NetworkPartial(ctx context.Context, net *tn.TensorNetwork, output []string, maxSteps int, planner *Planner, cfg ExecConfig) (*tn.TensorNetwork, *PathInfo, error) {
	return contract.NetworkPartial(ctx, net, output, maxSteps, planner, cfg)
}
