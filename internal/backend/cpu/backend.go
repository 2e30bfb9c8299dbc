// Package cpu implements the pure-Go CPU backend for the raw tensor layer,
// including the generalized pairwise contraction kernel.
package cpu

import (
	"fmt"

	"github.com/sjdu10/quimb/internal/parallel"
	"github.com/sjdu10/quimb/internal/tensor"
)

// number is the set of element types the kernels operate on.
type number interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// CPUBackend implements tensor operations on CPU, parallelized across a
// worker pool for buffers large enough to amortize dispatch overhead.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// NewSequential creates a CPU backend with parallel dispatch disabled.
// Useful for deterministic profiling and small problems.
func NewSequential() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.Config{Enabled: false},
	}
}

// Name returns the backend name.
func (c *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (c *CPUBackend) Device() tensor.Device {
	return c.device
}

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// promote casts both operands to their common dtype.
func (c *CPUBackend) promote(a, b *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, tensor.DataType) {
	dt := tensor.Promote(a.DType(), b.DType())
	return c.Cast(a, dt), c.Cast(b, dt), dt
}

func checkSameShape(op string, a, b *tensor.RawTensor) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
}
