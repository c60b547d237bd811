package backend

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a vector to 4 bytes per component, little-endian
// IEEE 754. This is the storage and wire format shared by the durable
// drivers.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// Cosine returns the cosine similarity of two equal-length vectors in
// [-1, 1]. A zero vector yields 0.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RoundScore normalizes a similarity score to 4 decimal places, the
// precision reported to callers by every backend.
func RoundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}
