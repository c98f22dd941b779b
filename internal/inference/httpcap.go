package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPCapability generates text via a local model-runtime HTTP server: a
// single JSON POST, response body capped so a misbehaving backend cannot
// balloon memory.
type HTTPCapability struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

var _ Capability = (*HTTPCapability)(nil)

const maxResponseBytes = 10 * 1024 * 1024

// NewHTTPCapability builds an HTTPCapability against baseURL (expected to
// be a local model-runtime endpoint; redacted text only ever reaches this
// call, never the raw session text, per the privacy proxy's placement
// upstream of any escalation).
func NewHTTPCapability(baseURL, model string) *HTTPCapability {
	return &HTTPCapability{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		model:      model,
	}
}

func (c *HTTPCapability) Ready() bool {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response   string  `json:"response"`
	Confidence float64 `json:"confidence"`
}

// Generate posts prompt to the model runtime and returns its response. If
// the backend reports no confidence, 0.5 (neutral) is assumed rather than
// treating the field's absence as an error.
func (c *HTTPCapability) Generate(ctx context.Context, prompt string, params Params) (Result, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: params.SystemPrompt,
		Stream: false,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &UnavailableError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return Result{}, fmt.Errorf("model runtime returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode generate response: %w", err)
	}
	confidence := out.Confidence
	if confidence == 0 {
		confidence = 0.5
	}
	return Result{Text: out.Response, Confidence: confidence}, nil
}
