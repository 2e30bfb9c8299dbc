// Copyright 2026 The quimb-go authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tn provides labeled tensors and tensor networks.
//
// A Tensor pairs a dense array with one string index name per axis; axes
// with the same name contract against each other. A TensorNetwork is a
// collection of such tensors whose shared index names form its bonds, with
// an IndexRegistry enforcing dimension agreement across the collection.
//
//	b := cpu.New()
//	a, _ := tn.Randn([]string{"i", "k"}, []int{2, 3}, tensor.Float64, b, nil)
//	c, _ := tn.Randn([]string{"k", "j"}, []int{3, 2}, tensor.Float64, b, nil)
//	m, _ := a.ContractWith(c, nil) // matrix product over k
//
// For multi-tensor contractions with planned orders, see package contract.
package tn

import (
	"math/rand"

	"github.com/sjdu10/quimb/internal/tensor"
	"github.com/sjdu10/quimb/internal/tn"
)

// Tensor is a dense array with one index name per axis.
type Tensor = tn.Tensor

// TensorNetwork is a collection of tensors bonded by shared index names.
type TensorNetwork = tn.TensorNetwork

// IndexRegistry tracks the dimension and holders of every index in a
// network.
type IndexRegistry = tn.IndexRegistry

// ShapeMismatchError reports two tensors disagreeing on an index's
// dimension.
type ShapeMismatchError = tn.ShapeMismatchError

// ConflictError reports an index rename that would conflate indices of
// different dimensions.
type ConflictError = tn.ConflictError

// LogicError reports misuse of the API rather than a data problem.
type LogicError = tn.LogicError

// New wraps a raw tensor with index names, one per axis.
func New(raw *tensor.RawTensor, inds []string, b tensor.Backend, tags ...string) (*Tensor, error) {
	return tn.New(raw, inds, b, tags...)
}

// Randn creates a labeled tensor with standard normal entries.
func Randn(inds []string, dims []int, dtype tensor.DataType, b tensor.Backend, rng *rand.Rand, tags ...string) (*Tensor, error) {
	return tn.Randn(inds, dims, dtype, b, rng, tags...)
}

// FromSlice creates a labeled tensor from a Go slice in row-major order.
func FromSlice[T tensor.DType](data []T, inds []string, dims []int, b tensor.Backend, tags ...string) (*Tensor, error) {
	return tn.FromSlice(data, inds, dims, b, tags...)
}

// NewNetwork builds a network from the given tensors, validating that
// shared indices agree on dimension.
func NewNetwork(ts ...*Tensor) (*TensorNetwork, error) {
	return tn.NewNetwork(ts...)
}

// NewIndexRegistry returns an empty registry.
func NewIndexRegistry() *IndexRegistry {
	return tn.NewIndexRegistry()
}

// RandInd generates a fresh index name with the given prefix, suitable for
// bonds created programmatically.
func RandInd(prefix string) string {
	return tn.RandInd(prefix)
}
