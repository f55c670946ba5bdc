package export

import (
	"encoding/binary"

	"github.com/x448/float16"
)

// EncodeFloat16 casts float32 values to little-endian IEEE 754 binary16
// bytes. The narrowing is lossy and uses round-to-nearest-even.
func EncodeFloat16(data []float32) []byte {
	out := make([]byte, 2*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
	}
	return out
}

// DecodeFloat16 widens little-endian binary16 bytes back to float32.
func DecodeFloat16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
	}
	return out
}
