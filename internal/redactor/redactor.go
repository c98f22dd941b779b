// Package redactor applies the pattern library to text, consulting the
// token vault to substitute matched spans with stable tokens, and reverses
// the process on the way back out.
package redactor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tripartite-ai/consensus-core/internal/config"
	"github.com/tripartite-ai/consensus-core/internal/pattern"
	"github.com/tripartite-ai/consensus-core/internal/tokenvault"
)

// RedactionTimeoutError and PatternCompileError are re-exported from the
// pattern package so callers of this package never need to import pattern
// directly just to do an errors.As check.
type (
	RedactionTimeoutError = pattern.RedactionTimeoutError
	PatternCompileError   = pattern.PatternCompileError
)

// InputTooLargeError is returned when text exceeds MaxInputBytes.
type InputTooLargeError struct {
	Size int
	Max  int
}

func (e *InputTooLargeError) Error() string {
	return fmt.Sprintf("input too large: %d bytes exceeds max of %d", e.Size, e.Max)
}

// VaultError wraps a fatal token-vault failure. A VaultError is never
// retried — the caller must reject the query.
type VaultError struct {
	Err error
}

func (e *VaultError) Error() string { return fmt.Sprintf("vault error: %v", e.Err) }
func (e *VaultError) Unwrap() error { return e.Err }

// Vault is the subset of tokenvault.Vault the redactor needs. Declared here
// so callers can inject a fake in tests without depending on the concrete
// SQLite implementation.
type Vault interface {
	Store(sessionID, category, original string) (string, error)
	Retrieve(sessionID, token string) (string, bool, error)
}

var _ Vault = (*tokenvault.Vault)(nil)

// Redactor applies an immutable pattern library against input text,
// consulting a token vault for substitution. A Redactor is safe for
// concurrent use by multiple sessions: the pattern library is immutable and
// the vault serializes its own writes.
type Redactor struct {
	lib   *pattern.Library
	vault Vault
	cfg   config.RedactorConfig
}

// New builds a Redactor from config and a vault handle.
func New(cfg config.RedactorConfig, vault Vault) (*Redactor, error) {
	lib, err := pattern.BuildLibrary(enabledFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &Redactor{lib: lib, vault: vault, cfg: cfg}, nil
}

func enabledFromConfig(cfg config.RedactorConfig) pattern.Enabled {
	return pattern.Enabled{
		Emails:            cfg.RedactEmails,
		Phones:            cfg.RedactPhones,
		SSN:               cfg.RedactSSN,
		CreditCards:       cfg.RedactCreditCards,
		APIKeys:           cfg.RedactAPIKeys,
		GithubTokens:      cfg.RedactGithubTokens,
		AWSKeys:           cfg.RedactAWSKeys,
		PrivateKeys:       cfg.RedactPrivateKeys,
		JWTs:              cfg.RedactJWTs,
		IPv4:              cfg.RedactIPv4,
		IPv6:              cfg.RedactIPv6,
		URLs:              cfg.RedactURLs,
		FilePaths:         cfg.RedactFilePaths,
		ConnectionStrings: cfg.RedactConnectionStrings,
	}
}

// RedactedText is the output of Redact: the tokenized text plus per-category
// counts. Stats never contain the original plaintext.
type RedactedText struct {
	Text  string
	Stats map[string]int
}

// Redact substitutes every surviving pattern match in text with a vault
// token. Substitution happens over the immutable spans DetectAll returns in
// a single left-to-right pass, so earlier substitutions never shift the
// offsets of later ones.
func (r *Redactor) Redact(sessionID, text string) (RedactedText, error) {
	if len(text) > r.cfg.MaxInputBytes {
		return RedactedText{}, &InputTooLargeError{Size: len(text), Max: r.cfg.MaxInputBytes}
	}

	timeout := time.Duration(r.cfg.RegexTimeoutMs) * time.Millisecond
	matches, err := r.lib.DetectAll(text, timeout)
	if err != nil {
		return RedactedText{}, err // *pattern.RedactionTimeoutError
	}

	var b strings.Builder
	stats := make(map[string]int)
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		token, err := r.vault.Store(sessionID, string(m.Category), m.MatchedText)
		if err != nil {
			return RedactedText{}, &VaultError{Err: err}
		}
		b.WriteString(token)
		stats[string(m.Category)]++
		last = m.End
	}
	b.WriteString(text[last:])

	return RedactedText{Text: b.String(), Stats: stats}, nil
}

// tokenGrammar matches the wire-visible token shape: \[[A-Z_]+_\d{4,}\]
var tokenGrammar = regexp.MustCompile(`\[[A-Z_]+_\d{4,}\]`)

// Reinflate scans text for any substring matching the token grammar and
// substitutes the vault's resolved original, scoped to sessionID. Unknown
// tokens — the vault no longer has them, they were issued to a different
// session, or they were never issued by this vault — are left verbatim,
// not errored: a remote backend may legitimately echo a token this vault
// no longer holds, and what to do about that is the caller's policy.
func (r *Redactor) Reinflate(sessionID, text string) (string, error) {
	spans := tokenGrammar.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		start, end := span[0], span[1]
		b.WriteString(text[last:start])
		token := text[start:end]
		original, ok, err := r.vault.Retrieve(sessionID, token)
		if err != nil {
			return "", &VaultError{Err: err}
		}
		if ok {
			b.WriteString(original)
		} else {
			b.WriteString(token)
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
