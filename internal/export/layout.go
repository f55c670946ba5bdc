package export

import (
	"fmt"

	"github.com/boomerchi/dream-go/internal/tensor"
)

// OpKind selects the convolution variant a kernel belongs to. The two
// variants share the same byte-level transposition but declare their
// shape headers differently.
type OpKind int

// Supported convolution kinds.
const (
	OpConv2D OpKind = iota
	OpDepthwiseConv2D
)

// String returns a human-readable kind name.
func (k OpKind) String() string {
	switch k {
	case OpConv2D:
		return "Conv2D"
	case OpDepthwiseConv2D:
		return "DepthwiseConv2D"
	default:
		return "Unknown"
	}
}

// kernelPerm reorders a kernel from the trainer's storage order to the
// inference engine's:
//
//	trainer: [h, w, in, out]
//	engine:  [out, h, w, in]
var kernelPerm = []int{3, 0, 1, 2}

// InversePermutation returns the permutation that undoes perm.
func InversePermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for i, axis := range perm {
		inv[axis] = i
	}
	return inv
}

// ConvertKernel reorders a rank-4 convolution kernel from the trainer's
// [h, w, in, out] order to the engine's [out, h, w, in] order and
// returns the shape to declare on the emitted constant. Numeric values
// are never modified, only axis order and shape metadata.
//
// For a dense convolution the declared shape is the transposed tensor's
// natural shape. For a depthwise convolution the engine represents the
// operation as a grouped convolution with one output channel per input
// channel, so the declared shape is [in, h, w, 1], computed from the
// kernel's original dimensions rather than from the transposed buffer.
// The shape header therefore does not describe the byte layout
// one-to-one; the engine expects exactly this pairing.
func ConvertKernel(kernel *tensor.Tensor, kind OpKind) (*tensor.Tensor, tensor.Shape, error) {
	shape := kernel.Shape()
	if len(shape) != 4 {
		return nil, nil, &ShapeError{
			Param:   "kernel",
			Got:     shape,
			Details: fmt.Sprintf("%s kernel must have rank 4", kind),
		}
	}

	if kind == OpDepthwiseConv2D && shape[3] != 1 {
		return nil, nil, &ShapeError{
			Param:   "kernel",
			Got:     shape,
			Details: "depthwise kernel must have channel multiplier 1",
		}
	}

	reordered, err := kernel.Transpose(kernelPerm)
	if err != nil {
		return nil, nil, fmt.Errorf("convert %s kernel: %w", kind, err)
	}

	var declared tensor.Shape
	switch kind {
	case OpConv2D:
		declared = reordered.Shape().Clone()
	case OpDepthwiseConv2D:
		declared = tensor.Shape{shape[2], shape[0], shape[1], 1}
	default:
		return nil, nil, fmt.Errorf("unsupported op kind: %d", kind)
	}

	return reordered, declared, nil
}
