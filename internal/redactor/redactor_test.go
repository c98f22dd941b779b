package redactor

import (
	"testing"

	"github.com/tripartite-ai/consensus-core/internal/config"
	"github.com/tripartite-ai/consensus-core/internal/tokenvault"
)

func newTestRedactor(t *testing.T) (*Redactor, *tokenvault.Vault) {
	t.Helper()
	v, err := tokenvault.OpenMemory()
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	cfg := config.Default().Redactor
	r, err := New(cfg, v)
	if err != nil {
		t.Fatalf("new redactor: %v", err)
	}
	return r, v
}

func TestRedactEmailAndAPIKeyScenario(t *testing.T) {
	r, _ := newTestRedactor(t)
	out, err := r.Redact("session-1", "Email me at alice@example.com about key sk-test_ABCDEFGH")
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	want := "Email me at [EMAIL_0001] about key [API_KEY_0001]"
	if out.Text != want {
		t.Fatalf("got %q want %q", out.Text, want)
	}
	if out.Stats["EMAIL"] != 1 || out.Stats["API_KEY"] != 1 {
		t.Fatalf("unexpected stats: %+v", out.Stats)
	}
}

func TestRoundTripRedactThenReinflate(t *testing.T) {
	r, _ := newTestRedactor(t)
	original := "Email me at alice@example.com about key sk-test_ABCDEFGH"
	out, err := r.Redact("session-1", original)
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	back, err := r.Reinflate("session-1", out.Text)
	if err != nil {
		t.Fatalf("reinflate: %v", err)
	}
	if back != original {
		t.Fatalf("round trip failed: got %q want %q", back, original)
	}
}

func TestReinflateLeavesUnknownTokensVerbatim(t *testing.T) {
	r, _ := newTestRedactor(t)
	text := "see [EMAIL_9999] for details"
	back, err := r.Reinflate("s1", text)
	if err != nil {
		t.Fatalf("reinflate: %v", err)
	}
	if back != text {
		t.Fatalf("expected unknown token left verbatim, got %q", back)
	}
}

func TestRedactInputTooLarge(t *testing.T) {
	r, _ := newTestRedactor(t)
	r.cfg.MaxInputBytes = 10
	_, err := r.Redact("s1", "this text is definitely longer than ten bytes")
	if err == nil {
		t.Fatal("expected InputTooLargeError")
	}
	if _, ok := err.(*InputTooLargeError); !ok {
		t.Fatalf("expected *InputTooLargeError, got %T", err)
	}
}

func TestRedactCreditCardInvalidLuhnUnchanged(t *testing.T) {
	r, _ := newTestRedactor(t)
	out, err := r.Redact("s1", "Card 4539 1488 0343 6468")
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	if out.Text != "Card 4539 1488 0343 6468" {
		t.Fatalf("expected unchanged text, got %q", out.Text)
	}
}

func TestRedactMixedContentRoundTrips(t *testing.T) {
	r, _ := newTestRedactor(t)
	original := "Contact alice@example.com or bob@example.com, nothing else here to redact."
	out, err := r.Redact("s1", original)
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	if out.Stats["EMAIL"] != 2 {
		t.Fatalf("expected 2 emails, got %+v", out.Stats)
	}
	back, err := r.Reinflate("s1", out.Text)
	if err != nil {
		t.Fatalf("reinflate: %v", err)
	}
	if back != original {
		t.Fatalf("round trip failed: got %q want %q", back, original)
	}
}

func TestStoreDeduplicatesWithinSession(t *testing.T) {
	r, _ := newTestRedactor(t)
	out, err := r.Redact("s1", "alice@example.com and again alice@example.com")
	if err != nil {
		t.Fatalf("redact: %v", err)
	}
	if out.Text != "[EMAIL_0001] and again [EMAIL_0001]" {
		t.Fatalf("expected dedup to reuse token, got %q", out.Text)
	}
}
