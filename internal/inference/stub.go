package inference

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// StubCapability is a deterministic, model-free Capability: it never calls
// out to a real backend, deriving a stable pseudo-response and confidence
// from the prompt's hash. It exists so the consensus engine and agents are
// testable without a model runtime dependency, mirroring the role the
// Embedder's HashEmbedder plays for the Knowledge Vault.
type StubCapability struct {
	// ResponsePrefix, if set, is prepended to every generated response.
	ResponsePrefix string
}

var _ Capability = (*StubCapability)(nil)

func (s *StubCapability) Ready() bool { return true }

// Generate returns a deterministic response for a given prompt: the same
// prompt always yields the same text and confidence from a given instance.
func (s *StubCapability) Generate(ctx context.Context, prompt string, params Params) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	sum := sha256.Sum256([]byte(prompt))
	bits := binary.LittleEndian.Uint64(sum[:8])
	confidence := 0.5 + float64(bits%501)/1000.0 // [0.5, 1.0]

	text := fmt.Sprintf("%s[stub response to %d-byte prompt, seed=%x]", s.ResponsePrefix, len(prompt), sum[:4])
	return Result{Text: text, Confidence: confidence}, nil
}
