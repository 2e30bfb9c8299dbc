package tensor

// ContractSpec describes a generalized pairwise contraction in terms of
// integer axis labels. Axes of the two operands carrying the same label are
// aligned (and must agree on dimension); a label repeated within one operand
// selects its diagonal; labels absent from Output are summed over.
//
// This is the moral equivalent of a two-operand einsum: batch, outer-product,
// trace and hyper axes are all expressible with the same three slices.
type ContractSpec struct {
	A      []int // label per axis of the first operand
	B      []int // label per axis of the second operand
	Output []int // labels kept in the result, in order
}

// Backend defines the minimal capability set a numeric backend must provide
// to serve as tensor storage: element-wise arithmetic, shape introspection
// via RawTensor, a generalized two-operand contraction primitive, and
// conjugation. The contraction core never branches on backend identity.
//
// Backend methods panic on programmer error (mismatched shapes, unknown
// dtypes); callers are expected to validate at the labeled-tensor layer.
type Backend interface {
	// Element-wise binary operations. Operands must share shape; mixed
	// dtypes are promoted per Promote.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Scale multiplies every element by s. Scaling a real tensor by a
	// scalar with a nonzero imaginary part promotes it to complex.
	Scale(x *RawTensor, s complex128) *RawTensor

	// Conj returns the element-wise complex conjugate. For real dtypes it
	// is a copy.
	Conj(x *RawTensor) *RawTensor

	// Contract performs the generalized pairwise contraction described by
	// spec, accumulating in the promoted common dtype of the operands.
	Contract(a, b *RawTensor, spec ContractSpec) *RawTensor

	// Shape operations. Reshape requires an equal element count; Transpose
	// materializes the axes permutation.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor

	// Cast converts to a different data type. Complex to real drops the
	// imaginary part and is reserved for callers that know it is zero.
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
