// Package tensor provides the raw dense array layer underneath labeled
// tensors: shapes, data types, reference-counted buffers, and the Backend
// capability interface that numeric backends implement.
package tensor

// DType is a constraint for supported tensor data types.
type DType interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Complex64
	Complex128
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Complex64:
		return "complex64"
	case Complex128:
		return "complex128"
	default:
		return "unknown"
	}
}

// IsComplex reports whether the data type has an imaginary part.
func (dt DataType) IsComplex() bool {
	return dt == Complex64 || dt == Complex128
}

// width returns the per-component floating point width in bytes.
func (dt DataType) width() int {
	switch dt {
	case Float32, Complex64:
		return 4
	default:
		return 8
	}
}

// Promote returns the common data type for a binary operation on a and b:
// real combined with complex yields complex, and mismatched floating point
// widths yield the wider width. Contraction accumulates in this type.
func Promote(a, b DataType) DataType {
	cmplx := a.IsComplex() || b.IsComplex()
	wide := a.width() == 8 || b.width() == 8
	switch {
	case cmplx && wide:
		return Complex128
	case cmplx:
		return Complex64
	case wide:
		return Float64
	default:
		return Float32
	}
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	default:
		panic("unsupported type")
	}
}
