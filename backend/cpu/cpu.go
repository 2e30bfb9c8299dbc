// Copyright 2026 The quimb-go authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the portable pure-Go compute backend.
//
// The CPU backend implements every tensor operation with generic kernels
// and chunks large element loops across a worker pool sized to GOMAXPROCS.
package cpu

import (
	internalcpu "github.com/sjdu10/quimb/internal/backend/cpu"
	"github.com/sjdu10/quimb/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend with parallel kernels enabled.
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend that keeps every kernel on the
// calling goroutine. Useful for benchmarking and debugging.
func NewSequential() *Backend {
	return internalcpu.NewSequential()
}
