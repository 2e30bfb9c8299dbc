package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Zeros creates a zero-filled raw tensor.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	// Data is already zero-initialized by make()
	return raw
}

// Randn creates a raw tensor with values drawn from a standard normal
// distribution via the Box-Muller transform. Complex dtypes get independent
// normal real and imaginary parts scaled by 1/sqrt(2) so that E|z|^2 = 1.
//
// Uses math/rand (not crypto/rand) - appropriate for numerical purposes.
// A nil rng falls back to the shared global source.
func Randn(shape Shape, dtype DataType, device Device, rng *rand.Rand) *RawTensor {
	raw := Zeros(shape, dtype, device)
	normal := func() float64 {
		var u1, u2 float64
		if rng != nil {
			u1, u2 = rng.Float64(), rng.Float64()
		} else {
			u1, u2 = rand.Float64(), rand.Float64()
		}
		if u1 < 1e-300 {
			u1 = 1e-300
		}
		return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	}

	switch dtype {
	case Float32:
		data := raw.AsFloat32()
		for i := range data {
			data[i] = float32(normal())
		}
	case Float64:
		data := raw.AsFloat64()
		for i := range data {
			data[i] = normal()
		}
	case Complex64:
		data := raw.AsComplex64()
		s := float32(1 / math.Sqrt2)
		for i := range data {
			data[i] = complex(float32(normal())*s, float32(normal())*s)
		}
	case Complex128:
		data := raw.AsComplex128()
		s := 1 / math.Sqrt2
		for i := range data {
			data[i] = complex(normal()*s, normal()*s)
		}
	default:
		panic("randn: unsupported dtype " + dtype.String())
	}
	return raw
}

// FromSlice creates a raw tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	var dummy T
	dtype := inferDataType(dummy)

	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		copy(raw.AsFloat32(), any(data).([]float32))
	case Float64:
		copy(raw.AsFloat64(), any(data).([]float64))
	case Complex64:
		copy(raw.AsComplex64(), any(data).([]complex64))
	case Complex128:
		copy(raw.AsComplex128(), any(data).([]complex128))
	}
	return raw, nil
}
