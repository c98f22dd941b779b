package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStubCapabilityIsDeterministic(t *testing.T) {
	s := &StubCapability{}
	a, err := s.Generate(context.Background(), "what should we build", Params{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := s.Generate(context.Background(), "what should we build", Params{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a.Text != b.Text || a.Confidence != b.Confidence {
		t.Fatalf("expected deterministic output for same prompt, got %+v vs %+v", a, b)
	}
}

func TestStubCapabilityConfidenceInRange(t *testing.T) {
	s := &StubCapability{}
	for _, p := range []string{"hi", "a longer prompt here", ""} {
		r, err := s.Generate(context.Background(), p, Params{})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if r.Confidence < 0.5 || r.Confidence > 1.0 {
			t.Fatalf("confidence out of range: %f", r.Confidence)
		}
	}
}

func TestStubCapabilityRespectsCancellation(t *testing.T) {
	s := &StubCapability{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Generate(ctx, "anything", Params{})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestStubCapabilityAlwaysReady(t *testing.T) {
	s := &StubCapability{}
	if !s.Ready() {
		t.Fatal("expected stub to always report ready")
	}
}

func TestHTTPCapabilityGenerateRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse{Response: "answer: " + req.Prompt, Confidence: 0.8})
	}))
	defer srv.Close()

	c := NewHTTPCapability(srv.URL, "test-model")
	res, err := c.Generate(context.Background(), "hello", Params{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "answer: hello" || res.Confidence != 0.8 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHTTPCapabilityDefaultsConfidenceWhenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	c := NewHTTPCapability(srv.URL, "test-model")
	res, err := c.Generate(context.Background(), "hello", Params{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Confidence != 0.5 {
		t.Fatalf("expected default confidence 0.5, got %f", res.Confidence)
	}
}

func TestHTTPCapabilityReadyFalseWhenUnreachable(t *testing.T) {
	c := NewHTTPCapability("http://127.0.0.1:1", "test-model")
	if c.Ready() {
		t.Fatal("expected Ready() to be false for an unreachable endpoint")
	}
}
