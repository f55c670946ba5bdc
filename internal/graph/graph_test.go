package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomerchi/dream-go/internal/tensor"
)

func TestBuilderMintsDistinctHandles(t *testing.T) {
	b := NewBuilder()

	v1 := b.Var("x", tensor.Shape{1, 19, 19, 32})
	v2 := b.Var("y", tensor.Shape{1, 19, 19, 32})

	assert.NotEqual(t, InvalidHandle, v1.Handle())
	assert.NotEqual(t, InvalidHandle, v2.Handle())
	assert.NotEqual(t, v1.Handle(), v2.Handle())
}

func TestVarChannels(t *testing.T) {
	b := NewBuilder()

	v := b.Var("x", tensor.Shape{1, 19, 19, 32})
	c, err := v.Channels()
	require.NoError(t, err)
	assert.Equal(t, 32, c)

	scalar := b.Var("s", tensor.Shape{})
	_, err = scalar.Channels()
	assert.Error(t, err)
}

func TestTensorParamEval(t *testing.T) {
	b := NewBuilder()

	value, err := tensor.New(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	p := b.Param(value)
	assert.Equal(t, tensor.Shape{2, 2}, p.Shape())

	got, err := p.Eval()
	require.NoError(t, err)
	assert.True(t, got.Equal(value))
}
