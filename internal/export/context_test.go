package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomerchi/dream-go/internal/graph"
	"github.com/boomerchi/dream-go/internal/tensor"
)

func TestInternVariableDedup(t *testing.T) {
	b := graph.NewBuilder()
	ctx := NewContext()

	v1 := b.Var("x", tensor.Shape{1, 19, 19, 32})
	v2 := b.Var("y", tensor.Shape{1, 19, 19, 32})

	id1, err := ctx.InternVariable(v1)
	require.NoError(t, err)
	assert.Equal(t, 0, id1)

	// Same handle resolves to the same ID, forever.
	again, err := ctx.InternVariable(v1)
	require.NoError(t, err)
	assert.Equal(t, id1, again)

	// Distinct handles get distinct IDs even with identical metadata.
	id2, err := ctx.InternVariable(v2)
	require.NoError(t, err)
	assert.Equal(t, 1, id2)
	assert.NotEqual(t, id1, id2)
}

func TestInternConstantDedupBySource(t *testing.T) {
	b := graph.NewBuilder()
	ctx := NewContext()

	value, err := tensor.New(tensor.Shape{2}, []float32{1, 2})
	require.NoError(t, err)
	p := b.Param(value)

	id1, err := ctx.InternConstant(p.Handle(), value, value.Shape())
	require.NoError(t, err)
	id2, err := ctx.InternConstant(p.Handle(), value, value.Shape())
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// A numerically equal tensor behind a different handle is a
	// different constant.
	other := b.Param(value)
	id3, err := ctx.InternConstant(other.Handle(), value, value.Shape())
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestInternConstantSynthesized(t *testing.T) {
	ctx := NewContext()

	zero, err := tensor.Zeros(tensor.Shape{4})
	require.NoError(t, err)

	// Tensors without a source identity never alias each other.
	id1, err := ctx.InternConstant(graph.InvalidHandle, zero, zero.Shape())
	require.NoError(t, err)
	id2, err := ctx.InternConstant(graph.InvalidHandle, zero, zero.Shape())
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestInternConstantDeclaredShapeConflict(t *testing.T) {
	b := graph.NewBuilder()
	ctx := NewContext()

	value, err := tensor.New(tensor.Shape{1, 4}, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	p := b.Param(value)

	_, err = ctx.InternConstant(p.Handle(), value, tensor.Shape{1, 4})
	require.NoError(t, err)

	_, err = ctx.InternConstant(p.Handle(), value, tensor.Shape{4, 1})
	var idErr *IdentityError
	require.ErrorAs(t, err, &idErr)
}

func TestFinalizeIdempotent(t *testing.T) {
	b := graph.NewBuilder()
	ctx := NewContext()

	_, err := ctx.InternVariable(b.Var("x", tensor.Shape{1}))
	require.NoError(t, err)
	require.NoError(t, ctx.AddLayer(Layer{Type: "Conv2D"}))

	doc1, err := ctx.Finalize()
	require.NoError(t, err)
	doc2, err := ctx.Finalize()
	require.NoError(t, err)
	assert.Same(t, doc1, doc2)

	assert.Len(t, doc1.Layers, 1)
	assert.Len(t, doc1.Variables, 1)
}

func TestMutationAfterFinalize(t *testing.T) {
	b := graph.NewBuilder()
	ctx := NewContext()

	_, err := ctx.Finalize()
	require.NoError(t, err)

	_, err = ctx.InternVariable(b.Var("x", tensor.Shape{1}))
	assert.ErrorIs(t, err, ErrFinalized)

	value, err := tensor.New(tensor.Shape{1}, []float32{1})
	require.NoError(t, err)
	_, err = ctx.InternConstant(b.Param(value).Handle(), value, value.Shape())
	assert.ErrorIs(t, err, ErrFinalized)

	assert.ErrorIs(t, ctx.AddLayer(Layer{Type: "Conv2D"}), ErrFinalized)
}
