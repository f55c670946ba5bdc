package export

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeFloat16Exact(t *testing.T) {
	// Small integers and binary fractions are exact in binary16.
	values := []float32{0, 1, -1, 0.5, -0.25, 2048, -1024}

	got := DecodeFloat16(EncodeFloat16(values))
	assert.Equal(t, values, got)
}

func TestEncodeFloat16Lossy(t *testing.T) {
	// binary16 has a 10-bit significand; the cast rounds.
	values := []float32{math.Pi, 1e-3, 123.456}

	got := DecodeFloat16(EncodeFloat16(values))
	for i, want := range values {
		assert.InEpsilon(t, want, got[i], 1e-3, "index %d", i)
	}
}

func TestEncodeFloat16LittleEndian(t *testing.T) {
	// 1.0 in binary16 is 0x3C00.
	raw := EncodeFloat16([]float32{1})
	assert.Equal(t, []byte{0x00, 0x3C}, raw)
}
