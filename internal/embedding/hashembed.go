package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder is a deterministic, model-free embedder: a stable byte to
// unit-vector projection. Same text always yields the same vector; distinct
// texts collide only with cryptographic-hash probability. It makes the
// knowledge vault testable with no model runtime present.
type HashEmbedder struct {
	dim int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder builds a HashEmbedder producing vectors of the given
// dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dim() int { return h.dim }

// Embed derives a dim-length float32 vector from repeated SHA-256 hashing
// of text, one 8-byte lane per component, then L2-normalizes the result so
// every output lies on the unit hypersphere (a prerequisite for cosine
// similarity scoring to behave as a pure dot product downstream).
func (h *HashEmbedder) Embed(text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	seed := sha256.Sum256([]byte(text))
	block := seed
	for i := 0; i < h.dim; i++ {
		lane := i % 4
		if lane == 0 && i > 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.LittleEndian.Uint64(block[lane*8 : lane*8+8])
		// Map the uint64 into [-1, 1) via its top bits, avoiding the bias
		// of a naive modulo.
		vec[i] = float32(int64(bits>>1))/float32(1<<62) - 1
	}
	normalize(vec)

	if err := validate(vec, h.dim); err != nil {
		return nil, err
	}
	return vec, nil
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		// Astronomically unlikely for SHA-256 output, but avoid a
		// divide-by-zero if it ever happens.
		vec[0] = 1
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
