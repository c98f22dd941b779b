// Package pattern implements the ordered, priority-ranked redaction rule
// table consumed by the redactor. Patterns are immutable after construction
// and are safe to share across goroutines without locking.
package pattern

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Category identifies the kind of sensitive value a pattern detects.
// Values are the uppercase, underscore-separated tokens that also appear in
// the wire-visible token grammar: [A-Z_]+.
type Category string

// Built-in categories, declared in priority order (high to low). Category
// order here also breaks priority ties.
const (
	CategoryAPIKey            Category = "API_KEY"
	CategoryGithubToken       Category = "GITHUB_TOKEN"
	CategoryAWSAccessKey      Category = "AWS_ACCESS_KEY"
	CategoryAWSSecret         Category = "AWS_SECRET"
	CategoryConnectionString  Category = "CONNECTION_STRING"
	CategoryPrivateKey        Category = "PRIVATE_KEY"
	CategoryJWT               Category = "JWT"
	CategoryBearerToken       Category = "BEARER_TOKEN"
	CategoryEmail             Category = "EMAIL"
	CategoryPhone             Category = "PHONE"
	CategoryIPv6              Category = "IPV6"
	CategoryIPv4              Category = "IPV4"
	CategoryURL               Category = "URL"
	CategoryFilePath          Category = "FILE_PATH"
	CategoryCreditCard        Category = "CREDIT_CARD"
	CategorySSN               Category = "SSN"
)

// categoryOrder gives each category a stable tie-break rank, matching the
// const declaration order above (lower index = higher priority on ties).
var categoryOrder = map[Category]int{
	CategoryAPIKey:           0,
	CategoryGithubToken:      1,
	CategoryAWSAccessKey:     2,
	CategoryAWSSecret:        3,
	CategoryConnectionString: 4,
	CategoryPrivateKey:       5,
	CategoryJWT:              6,
	CategoryBearerToken:      7,
	CategoryEmail:            8,
	CategoryPhone:            9,
	CategoryIPv6:             10,
	CategoryIPv4:             11,
	CategoryURL:              12,
	CategoryFilePath:         13,
	CategoryCreditCard:       14,
	CategorySSN:              15,
}

// Validator rejects matches that are structurally well-formed but fail a
// domain check (Luhn for credit cards, area-code rules for SSNs, ...).
type Validator func(matched string) bool

// Pattern is immutable after construction.
type Pattern struct {
	Category  Category
	Priority  int
	matcher   *regexp.Regexp
	validator Validator
	Enabled   bool
}

// Match is a single surviving detection.
type Match struct {
	Category    Category
	Start       int // byte offset, inclusive
	End         int // byte offset, exclusive
	MatchedText string
}

// PatternCompileError is returned by New when a matcher fails to compile.
type PatternCompileError struct {
	Category Category
	Err      error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("pattern compile failed for %s: %v", e.Category, e.Err)
}

func (e *PatternCompileError) Unwrap() error { return e.Err }

// New compiles a pattern from a regular expression. It returns
// *PatternCompileError if expr fails to compile.
func New(category Category, priority int, expr string, validator Validator) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, &PatternCompileError{Category: category, Err: err}
	}
	return Pattern{
		Category:  category,
		Priority:  priority,
		matcher:   re,
		validator: validator,
		Enabled:   true,
	}, nil
}

// RedactionTimeoutError is returned when a single pattern's match pass
// exceeds its deadline.
type RedactionTimeoutError struct {
	Category Category
}

func (e *RedactionTimeoutError) Error() string {
	return fmt.Sprintf("redaction timeout: pattern %s exceeded its deadline", e.Category)
}

// findAll runs the pattern's matcher with a per-pattern deadline. Go's
// regexp package is RE2-backed and therefore already immune to catastrophic
// backtracking; the deadline additionally bounds any one pattern (or a
// pathological input) monopolizing a redaction call.
func (p Pattern) findAll(ctx context.Context, text string) ([][]int, error) {
	type result struct {
		idx [][]int
	}
	done := make(chan result, 1)
	go func() {
		done <- result{idx: p.matcher.FindAllStringIndex(text, -1)}
	}()

	select {
	case r := <-done:
		return r.idx, nil
	case <-ctx.Done():
		return nil, &RedactionTimeoutError{Category: p.Category}
	}
}

// Library is an ordered, priority-ranked, immutable set of patterns.
type Library struct {
	patterns []Pattern
}

// NewLibrary sorts patterns by priority (descending) then category order,
// and returns an immutable Library ready for concurrent use.
func NewLibrary(patterns []Pattern) *Library {
	sorted := make([]Pattern, len(patterns))
	copy(sorted, patterns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return categoryOrder[sorted[i].Category] < categoryOrder[sorted[j].Category]
	})
	return &Library{patterns: sorted}
}

// DetectAll applies every enabled pattern to text in strict priority order.
// A higher-priority match consumes its byte span and suppresses any
// lower-priority match that overlaps it. Matches failing their validator are
// discarded before the consume/suppress step. perPatternTimeout bounds each
// individual pattern's match pass (the redactor's regex_timeout_ms).
//
// Returned matches are ordered by start offset, so the caller can
// substitute over immutable spans in a single left-to-right pass with no
// shifting-offset bookkeeping.
func (l *Library) DetectAll(text string, perPatternTimeout time.Duration) ([]Match, error) {
	type candidate struct {
		Match
		priority int
	}
	var candidates []candidate

	for _, p := range l.patterns {
		if !p.Enabled {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), perPatternTimeout)
		idx, err := p.findAll(ctx, text)
		cancel()
		if err != nil {
			return nil, err
		}
		for _, span := range idx {
			start, end := span[0], span[1]
			matched := text[start:end]
			if p.validator != nil && !p.validator(matched) {
				continue
			}
			candidates = append(candidates, candidate{
				Match:    Match{Category: p.Category, Start: start, End: end, MatchedText: matched},
				priority: p.Priority,
			})
		}
	}

	// Highest priority first, tie-broken by category order, so the
	// consume/suppress pass below always prefers the higher-ranked category
	// when spans overlap.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		oi, oj := categoryOrder[candidates[i].Category], categoryOrder[candidates[j].Category]
		if oi != oj {
			return oi < oj
		}
		return candidates[i].Start < candidates[j].Start
	})

	var accepted []Match
	overlaps := func(a, b Match) bool {
		return a.Start < b.End && b.Start < a.End
	}
	for _, c := range candidates {
		conflict := false
		for _, a := range accepted {
			if overlaps(a, c.Match) {
				conflict = true
				break
			}
		}
		if !conflict {
			accepted = append(accepted, c.Match)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted, nil
}
