// Package vector holds the embedding blob codec and distance functions shared
// by the store and the vector index.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ElementSize is the byte width of one encoded vector element.
const ElementSize = 4

var (
	// ErrBlobLength reports a blob that does not hold whole float32 elements.
	ErrBlobLength = errors.New("vector: blob length is not a multiple of 4")
	// ErrNonFinite reports a NaN or infinite element, which no distance can rank.
	ErrNonFinite = errors.New("vector: non-finite element")
)

// Encode lays vec out as little-endian float32 values with no header. The
// element count is implied by the blob length.
func Encode(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, 0, len(vec)*ElementSize)
	for _, v := range vec {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

// Dim returns the number of elements in blob b.
func Dim(b []byte) (int, error) {
	if len(b)%ElementSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrBlobLength, len(b))
	}
	return len(b) / ElementSize, nil
}

// Decode reads a blob written by Encode. An empty blob decodes to nil.
func Decode(b []byte) ([]float32, error) {
	return DecodeDim(b, -1)
}

// DecodeDim is Decode that also requires the blob to hold exactly dim
// elements. A negative dim accepts any size.
func DecodeDim(b []byte, dim int) ([]float32, error) {
	n, err := Dim(b)
	if err != nil {
		return nil, err
	}
	if dim >= 0 && n != dim {
		return nil, fmt.Errorf("vector: blob holds %d elements, want %d", n, dim)
	}
	if n == 0 {
		return nil, nil
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*ElementSize:]))
	}
	return vec, nil
}

// CheckFinite rejects vectors holding NaN or infinite values.
func CheckFinite(vec []float32) error {
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w at %d", ErrNonFinite, i)
		}
	}
	return nil
}
