package embedding

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHashEmbedderIsDeterministic(t *testing.T) {
	e := NewHashEmbedder(32)
	a, err := e.Embed("the quick brown fox")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := e.Embed("the quick brown fox")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected dim 32, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical vectors for identical text at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashEmbedderDistinctTextsDiffer(t *testing.T) {
	e := NewHashEmbedder(32)
	a, _ := e.Embed("alpha")
	b, _ := e.Embed("beta")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected distinct texts to produce distinct vectors")
	}
}

func TestHashEmbedderProducesUnitVector(t *testing.T) {
	e := NewHashEmbedder(64)
	vec, err := e.Embed("normalize me")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-3 {
		t.Fatalf("expected unit vector, got norm %f", norm)
	}
}

func TestHashEmbedderDimMatchesConstructor(t *testing.T) {
	e := NewHashEmbedder(16)
	if e.Dim() != 16 {
		t.Fatalf("expected Dim()==16, got %d", e.Dim())
	}
}

func TestValidateRejectsDimensionMismatch(t *testing.T) {
	err := validate([]float32{1, 2, 3}, 4)
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if _, ok := err.(*DimensionMismatchError); !ok {
		t.Fatalf("expected *DimensionMismatchError, got %T", err)
	}
}

func TestValidateRejectsAllZeroVector(t *testing.T) {
	err := validate([]float32{0, 0, 0}, 3)
	if err == nil {
		t.Fatal("expected all-zero error")
	}
	if _, ok := err.(*AllZeroVectorError); !ok {
		t.Fatalf("expected *AllZeroVectorError, got %T", err)
	}
}

func TestNewHTTPEmbedderRejectsNonLocalhost(t *testing.T) {
	_, err := NewHTTPEmbedder("http://example.com:11434", "test-model", 8)
	if err == nil {
		t.Fatal("expected error for non-localhost base URL")
	}
}

func TestHTTPEmbedderEmbedRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3,0.4]}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(srv.URL, "test-model", 4)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	vec, err := e.Embed("hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected dim 4, got %d", len(vec))
	}
}

func TestHTTPEmbedderRetriesOn5xxThenFails(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(srv.URL, "test-model", 4)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	_, err = e.Embed("hello")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != httpEmbedMaxRetries {
		t.Fatalf("expected %d attempts, got %d", httpEmbedMaxRetries, attempts)
	}
}

func TestHTTPEmbedderDoesNotRetryOn4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(srv.URL, "test-model", 4)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	_, err = e.Embed("hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a 4xx, got %d", attempts)
	}
}
