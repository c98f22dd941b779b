// Package inference provides the black-box model-runtime capability that
// agents call into: Generate(prompt, params) returning text plus the
// backend's confidence estimate. The model runtime itself lives outside
// this module; only the seam is defined here.
package inference

import (
	"context"
	"fmt"
)

// Params configures a single generation call.
type Params struct {
	Temperature float64
	MaxTokens   int
	// SystemPrompt, if set, is prepended as role context.
	SystemPrompt string
}

// Result is a single generation's output plus the backend's own confidence
// estimate, in [0,1].
type Result struct {
	Text       string
	Confidence float64
}

// Capability is the inference backend contract agents depend on. A
// Capability value must be safe for concurrent use — all three agents may
// share one backing capability handle, and an Engine may run several
// queries at once.
type Capability interface {
	Generate(ctx context.Context, prompt string, params Params) (Result, error)
	// Ready reports whether the backend is currently reachable. Agents
	// expose this through their own is_ready() capability query.
	Ready() bool
}

// UnavailableError indicates the backend could not be reached or is not
// configured. Distinguished from a generation failure so callers can
// surface a clearer error upward.
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("inference capability unavailable: %s", e.Reason)
}
