// Package graph models the boundary to the training framework: opaque
// handles for framework objects, symbolic variables flowing between
// layers, and materializable parameter references.
//
// Handles stand in for framework object identity. The export pipeline
// never compares tensors by value; two references are "the same" exactly
// when they carry the same handle, which makes deduplication
// deterministic and independent of memory addresses.
package graph

import (
	"fmt"

	"github.com/boomerchi/dream-go/internal/tensor"
)

// Handle is an opaque identity key for a framework object.
type Handle uint64

// InvalidHandle is the zero handle. It never participates in
// deduplication; every intern of an InvalidHandle object is distinct.
const InvalidHandle Handle = 0

// Var is a symbolic tensor flowing between layers (a graph edge).
// It carries no data, only identity and debug metadata.
type Var struct {
	handle Handle
	name   string
	shape  tensor.Shape
}

// Handle returns the variable's identity key.
func (v *Var) Handle() Handle {
	return v.handle
}

// Name returns the variable's debug name.
func (v *Var) Name() string {
	return v.name
}

// Shape returns the variable's symbolic shape.
func (v *Var) Shape() tensor.Shape {
	return v.shape
}

// Channels returns the size of the variable's last dimension, the
// channel count under the NHWC convention.
func (v *Var) Channels() (int, error) {
	if len(v.shape) == 0 {
		return 0, fmt.Errorf("variable %q has no shape metadata", v.name)
	}
	return v.shape[len(v.shape)-1], nil
}

// Param is a materializable reference to a trained parameter held by the
// training framework. Eval is assumed to be an in-memory, synchronous
// call; the same Param always materializes to the same tensor.
type Param interface {
	// Handle returns the parameter's identity key.
	Handle() Handle

	// Shape returns the parameter's shape without materializing it.
	Shape() tensor.Shape

	// Eval materializes the parameter to a concrete tensor.
	Eval() (*tensor.Tensor, error)
}

// TensorParam is an in-memory Param backed by an already materialized
// tensor. The driver and tests use it to stand in for framework-native
// parameter objects.
type TensorParam struct {
	handle Handle
	value  *tensor.Tensor
}

// Handle returns the parameter's identity key.
func (p *TensorParam) Handle() Handle {
	return p.handle
}

// Shape returns the parameter's shape.
func (p *TensorParam) Shape() tensor.Shape {
	return p.value.Shape()
}

// Eval returns the backing tensor.
func (p *TensorParam) Eval() (*tensor.Tensor, error) {
	return p.value, nil
}

// Builder mints handles and constructs variables and parameters for one
// export session. Handles are sequential and unique within a builder.
type Builder struct {
	next Handle
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{next: InvalidHandle + 1}
}

func (b *Builder) mint() Handle {
	h := b.next
	b.next++
	return h
}

// Var creates a new symbolic variable with a fresh handle.
func (b *Builder) Var(name string, shape tensor.Shape) *Var {
	return &Var{
		handle: b.mint(),
		name:   name,
		shape:  shape.Clone(),
	}
}

// Param wraps a materialized tensor as a parameter with a fresh handle.
func (b *Builder) Param(value *tensor.Tensor) *TensorParam {
	return &TensorParam{
		handle: b.mint(),
		value:  value,
	}
}
