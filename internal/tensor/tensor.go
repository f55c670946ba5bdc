// Package tensor provides the immutable tensor value type moved through
// the export pipeline.
package tensor

import "fmt"

// Tensor is an immutable multi-dimensional float32 array.
//
// The data is stored flat in row-major order for the declared shape.
// Constructors copy their input, and every operation returns a new
// tensor, so a materialized tensor never changes after creation.
type Tensor struct {
	shape Shape
	data  []float32
}

// New creates a tensor from a shape and flat row-major data.
// The data slice is copied.
func New(shape Shape, data []float32) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	buf := make([]float32, len(data))
	copy(buf, data)

	return &Tensor{shape: shape.Clone(), data: buf}, nil
}

// Zeros creates a tensor of the given shape filled with zeros.
func Zeros(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// Full creates a tensor of the given shape with every element set to value.
func Full(shape Shape, value float32) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		t.data[i] = value
	}
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the flat row-major data.
//
// WARNING: the slice aliases the tensor's memory; callers must not
// modify it.
func (t *Tensor) Data() []float32 {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) float32 {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}

	offset := 0
	strides := t.shape.ComputeStrides()
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * strides[i]
	}

	return t.data[offset]
}

// Equal reports whether two tensors have the same shape and data.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i := range t.data {
		if t.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[float32]%v", t.shape)
}

// Transpose returns a new tensor with axes reordered by perm, so that
// axis i of the result is axis perm[i] of the receiver. Numeric values
// are copied unchanged; only the axis order and shape change.
func (t *Tensor) Transpose(perm []int) (*Tensor, error) {
	outShape, err := t.shape.Permute(perm)
	if err != nil {
		return nil, fmt.Errorf("transpose: %w", err)
	}

	srcStrides := t.shape.ComputeStrides()

	// Stride of output axis i in the source buffer.
	permStrides := make([]int, len(perm))
	for i, axis := range perm {
		permStrides[i] = srcStrides[axis]
	}

	out := make([]float32, len(t.data))
	index := make([]int, len(outShape))
	for i := range out {
		offset := 0
		for d, idx := range index {
			offset += idx * permStrides[d]
		}
		out[i] = t.data[offset]

		// Advance the row-major odometer over the output shape.
		for d := len(index) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < outShape[d] {
				break
			}
			index[d] = 0
		}
	}

	return &Tensor{shape: outShape, data: out}, nil
}
