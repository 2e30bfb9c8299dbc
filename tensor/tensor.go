// Copyright 2026 The quimb-go authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/sjdu10/quimb/internal/tensor"
)

// DType is the constraint for tensor element types.
type DType = tensor.DType

// DataType identifies the element type of a tensor at runtime.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32    DataType = tensor.Float32
	Float64    DataType = tensor.Float64
	Complex64  DataType = tensor.Complex64
	Complex128 DataType = tensor.Complex128
)

// Device identifies where a tensor's data lives.
type Device = tensor.Device

// Device constants.
const (
	CPU Device = tensor.CPU
	GPU Device = tensor.GPU
)

// Shape is the list of a tensor's dimensions.
type Shape = tensor.Shape

// RawTensor is a contiguous row-major array with reference-counted,
// copy-on-write storage.
type RawTensor = tensor.RawTensor

// Backend implements device-specific tensor arithmetic.
type Backend = tensor.Backend

// ContractSpec describes a generalized pairwise contraction in terms of
// integer axis labels. See Backend.Contract.
type ContractSpec = tensor.ContractSpec

// NewRaw allocates an uninitialized tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Zeros allocates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.Zeros(shape, dtype, device)
}

// Randn fills a tensor with standard normal samples. Complex types get
// independent real and imaginary parts with unit total variance. A nil rng
// uses the global source.
func Randn(shape Shape, dtype DataType, device Device, rng *rand.Rand) *RawTensor {
	return tensor.Randn(shape, dtype, device, rng)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// Promote returns the data type binary operations produce for a pair of
// operand types.
func Promote(a, b DataType) DataType {
	return tensor.Promote(a, b)
}
