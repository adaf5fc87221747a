// Package vec serializes vectors to the fixed-width little-endian buffers
// the engine stores and searches against.
package vec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType selects the element width of an encoded vector.
type DataType string

const (
	// Float32 encodes 4-byte IEEE-754 elements.
	Float32 DataType = "FLOAT32"
	// Float64 encodes 8-byte IEEE-754 elements.
	Float64 DataType = "FLOAT64"
)

// ElementSize returns the byte width of one element.
func (dt DataType) ElementSize() int {
	if dt == Float64 {
		return 8
	}
	return 4
}

// Encode serializes v into a little-endian buffer of the given datatype.
// Float64 widens each element; Decode is the exact inverse.
func Encode(v []float32, dt DataType) []byte {
	size := dt.ElementSize()
	buf := make([]byte, len(v)*size)
	for i, f := range v {
		if dt == Float64 {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(float64(f)))
		} else {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
	}
	return buf
}

// Decode parses a little-endian buffer back into a vector.
func Decode(buf []byte, dt DataType) ([]float32, error) {
	size := dt.ElementSize()
	if len(buf)%size != 0 {
		return nil, fmt.Errorf("buffer length %d is not a multiple of element size %d", len(buf), size)
	}
	v := make([]float32, len(buf)/size)
	for i := range v {
		if dt == Float64 {
			v[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:])))
		} else {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
	}
	return v, nil
}
