// Package guard implements Ethos's safety scan: a fixed, immutable veto
// pattern table plus a prompt-injection detector, and the JSONL audit log
// the scans append to.
package guard

import (
	"context"
	"regexp"

	"github.com/mdombrov-33/go-promptguard/detector"
)

// Category identifies which veto class a hit belongs to. Every category
// always blocks regardless of configuration.
type Category string

const (
	CategoryDestructiveDeletion    Category = "destructive_deletion"
	CategoryCredentialExposure     Category = "credential_exposure"
	CategoryUntrustedExecution     Category = "untrusted_execution"
	CategorySystemFileModification Category = "system_file_modification"
	CategoryResourceLimitViolation Category = "resource_limit_violation"
	CategoryPromptInjection        Category = "prompt_injection"
)

// VetoPattern is one immutable entry in the veto table.
type VetoPattern struct {
	Category Category
	Pattern  *regexp.Regexp
	Reason   string
}

// vetoTable is built once at process start and never mutated or reloaded
// mid-query.
var vetoTable = buildVetoTable()

func buildVetoTable() []VetoPattern {
	return []VetoPattern{
		{
			Category: CategoryDestructiveDeletion,
			Pattern:  regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*f[a-z]*|-[a-z]*f[a-z]*r[a-z]*)\s+/([^\w.~-]|$)`),
			Reason:   "generated content includes a recursive unrestricted deletion command",
		},
		{
			Category: CategoryDestructiveDeletion,
			Pattern:  regexp.MustCompile(`(?i)\bdel\s+/[sq]\s+/[sq]\s+[a-z]:\\`),
			Reason:   "generated content includes a recursive unrestricted deletion command",
		},
		{
			Category: CategoryCredentialExposure,
			Pattern:  regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|token)\s*[:=]\s*["']?[A-Za-z0-9_\-/+]{12,}`),
			Reason:   "generated content exposes what appears to be a live credential",
		},
		{
			Category: CategoryUntrustedExecution,
			Pattern:  regexp.MustCompile(`(?i)\b(curl|wget)\b[^|\n]*\|\s*(sudo\s+)?(bash|sh|zsh)\b`),
			Reason:   "generated content pipes a fetched untrusted URL directly into a shell",
		},
		{
			Category: CategorySystemFileModification,
			Pattern:  regexp.MustCompile(`(?i)(>>?|\btee)\s+/(etc|boot|sys|usr/lib|var/lib)/`),
			Reason:   "generated content modifies a system file outside allowed paths",
		},
	}
}

// VetoTable returns the immutable, process-wide veto pattern list. Callers
// must not mutate the returned slice's underlying patterns.
func VetoTable() []VetoPattern {
	return vetoTable
}

// promptGuard flags role injection, prompt leak, instruction override, and
// obfuscation in generated content before it is surfaced as a solution.
// Pattern and statistical detectors only, no LLM judge — detection stays
// sub-millisecond.
var promptGuard = detector.New(
	detector.WithThreshold(0.6),
	detector.WithAllDetectors(),
	detector.WithMaxInputLength(4000),
)

// Hit is a single veto-table or injection-detector match.
type Hit struct {
	Category Category
	Reason   string
}

// Scan runs text through the veto pattern table and the prompt-injection
// detector, returning the first hit found, in pattern-table order with the
// injection detector checked last. A nil return means no veto condition
// triggered.
func Scan(text string) *Hit {
	for _, p := range vetoTable {
		if p.Pattern.MatchString(text) {
			return &Hit{Category: p.Category, Reason: p.Reason}
		}
	}
	if len(text) > 0 {
		result := promptGuard.Detect(context.Background(), text)
		if !result.Safe {
			return &Hit{Category: CategoryPromptInjection, Reason: "generated content matched a prompt-injection signature"}
		}
	}
	return nil
}
