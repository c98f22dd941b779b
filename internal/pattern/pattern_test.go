package pattern

import (
	"errors"
	"testing"
	"time"
)

const testTimeout = 100 * time.Millisecond

func TestDetectAllEmailAndAPIKeyPriority(t *testing.T) {
	lib, err := BuildLibrary(AllEnabled())
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	text := "Email me at alice@example.com about key sk-test_ABCDEFGH"
	matches, err := lib.DetectAll(text, testTimeout)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
	if matches[0].Category != CategoryEmail {
		t.Errorf("expected first match to be email (lower start offset), got %s", matches[0].Category)
	}
	if matches[1].Category != CategoryAPIKey {
		t.Errorf("expected second match to be api key, got %s", matches[1].Category)
	}
}

func TestDetectAllCreditCardLuhnValid(t *testing.T) {
	lib, err := BuildLibrary(AllEnabled())
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	matches, err := lib.DetectAll("Card 4539 1488 0343 6467", testTimeout)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(matches) != 1 || matches[0].Category != CategoryCreditCard {
		t.Fatalf("expected one credit card match, got %+v", matches)
	}
}

func TestDetectAllCreditCardLuhnInvalidNotRedacted(t *testing.T) {
	lib, err := BuildLibrary(AllEnabled())
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	matches, err := lib.DetectAll("Card 4539 1488 0343 6468", testTimeout)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches for invalid luhn, got %+v", matches)
	}
}

func TestDetectAllSSNRejectsInvalidAreaCode(t *testing.T) {
	lib, err := BuildLibrary(AllEnabled())
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	for _, bad := range []string{"000-00-0000", "666-12-3456", "900-12-3456"} {
		matches, err := lib.DetectAll(bad, testTimeout)
		if err != nil {
			t.Fatalf("detect: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("expected %q to be rejected, got %+v", bad, matches)
		}
	}
	matches, err := lib.DetectAll("123-45-6789", testTimeout)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(matches) != 1 || matches[0].Category != CategorySSN {
		t.Fatalf("expected valid SSN to match, got %+v", matches)
	}
}

func TestDetectAllDisabledCategorySkipped(t *testing.T) {
	enabled := AllEnabled()
	enabled.Emails = false
	lib, err := BuildLibrary(enabled)
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	matches, err := lib.DetectAll("contact alice@example.com", testTimeout)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected email detection disabled, got %+v", matches)
	}
}

func TestDetectAllUnknownTextNeverRedacted(t *testing.T) {
	lib, err := BuildLibrary(AllEnabled())
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	matches, err := lib.DetectAll("the quick brown fox jumps over the lazy dog", testTimeout)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches on ordinary prose, got %+v", matches)
	}
}

func TestDetectAllIPv6(t *testing.T) {
	lib, err := BuildLibrary(AllEnabled())
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	cases := []struct {
		text string
		want string
	}{
		{"host at 2001:0db8:85a3:0000:0000:8a2e:0370:7334 is up", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"compressed 2001:db8::8a2e:370:7334 works", "2001:db8::8a2e:370:7334"},
		{"loopback ::1 responded", "::1"},
	}
	for _, c := range cases {
		matches, err := lib.DetectAll(c.text, testTimeout)
		if err != nil {
			t.Fatalf("detect %q: %v", c.text, err)
		}
		if len(matches) != 1 || matches[0].Category != CategoryIPv6 {
			t.Fatalf("expected one IPv6 match in %q, got %+v", c.text, matches)
		}
		if matches[0].MatchedText != c.want {
			t.Errorf("expected span %q, got %q", c.want, matches[0].MatchedText)
		}
	}
}

func TestDetectAllIPv6RejectsNonAddressColonRuns(t *testing.T) {
	lib, err := BuildLibrary(AllEnabled())
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	for _, text := range []string{"segment 1:2:3 of the route", "call std::vector::push_back here", "meet at 12:30:45 sharp"} {
		matches, err := lib.DetectAll(text, testTimeout)
		if err != nil {
			t.Fatalf("detect %q: %v", text, err)
		}
		for _, m := range matches {
			if m.Category == CategoryIPv6 {
				t.Errorf("expected no IPv6 match in %q, got %q", text, m.MatchedText)
			}
		}
	}
}

func TestNewPatternCompileError(t *testing.T) {
	_, err := New(CategoryEmail, 1, "(unclosed", nil)
	if err == nil {
		t.Fatal("expected compile error for malformed regex")
	}
	var compileErr *PatternCompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected *PatternCompileError, got %T", err)
	}
	if compileErr.Category != CategoryEmail {
		t.Errorf("expected category on compile error, got %s", compileErr.Category)
	}
}
