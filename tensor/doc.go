// Copyright 2026 The quimb-go authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense numeric arrays underneath quimb-go's
// tensor networks.
//
// # Overview
//
// A RawTensor is a contiguous row-major buffer with a shape, a data type
// and a device. Buffers are reference counted and copied on write, so
// cloning is cheap and safe. All arithmetic goes through a Backend, which
// device packages implement; see backend/cpu for the portable one.
//
// # Basic usage
//
//	import (
//	    "github.com/sjdu10/quimb/backend/cpu"
//	    "github.com/sjdu10/quimb/tensor"
//	)
//
//	b := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float64, tensor.CPU)
//	y := tensor.Randn(tensor.Shape{3, 2}, tensor.Float64, tensor.CPU, nil)
//	z := b.Contract(x, y, tensor.ContractSpec{
//	    A:      []int{0, 1},
//	    B:      []int{1, 2},
//	    Output: []int{0, 2},
//	})
//
// # Supported data types
//
// Float32, Float64, Complex64 and Complex128. Mixed-type operations
// promote to the wider and, when either side is complex, complex type.
//
// Most users should work with the labeled tensors in package tn instead of
// raw tensors.
package tensor
