package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tripartite-ai/consensus-core/internal/inference"
)

// domainKeywords maps a surface keyword to the domain it unambiguously
// signals, checked in declaration order so classification is stable across
// runs. Keywords match whole words only — "go" must not fire inside
// "category". A query matching none of these is classified "general" and
// counts as ambiguous for the confidence bonus below.
var domainKeywords = []struct {
	keyword string
	domain  string
}{
	{"golang", "software_engineering"},
	{"go", "software_engineering"},
	{"python", "software_engineering"},
	{"kubernetes", "infrastructure"},
	{"docker", "infrastructure"},
	{"sql", "data_engineering"},
	{"database", "data_engineering"},
	{"react", "frontend_engineering"},
	{"finance", "finance"},
	{"tax", "finance"},
	{"legal", "legal"},
	{"contract", "legal"},
	{"medical", "medical"},
	{"diagnosis", "medical"},
}

// generationVerbs signals the query is asking for something to be produced
// rather than explained, which raises the bar for how well-constrained the
// request needs to be.
var generationVerbs = []string{"write", "generate", "create", "build", "implement", "draft"}

// urgencyKeywords signals the caller wants an expedited answer.
var urgencyKeywords = []string{"urgent", "asap", "immediately", "emergency", "right now"}

// expertKeywords signals a query phrased in terms a beginner wouldn't reach
// for; beginnerKeywords is the converse. Anything matching neither is
// classified intermediate.
var expertKeywords = []string{"goroutine", "mutex", "big-o", "kernel", "amortized", "idempotent"}
var beginnerKeywords = []string{"new to", "just starting", "explain like", "i'm a beginner", "never used"}

func classifyPersona(query string) Persona {
	lower := strings.ToLower(query)
	for _, kw := range beginnerKeywords {
		if strings.Contains(lower, kw) {
			return PersonaBeginner
		}
	}
	for _, kw := range expertKeywords {
		if strings.Contains(lower, kw) {
			return PersonaExpert
		}
	}
	return PersonaIntermediate
}

func classifyUrgency(query string) string {
	lower := strings.ToLower(query)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			return "high"
		}
	}
	return "normal"
}

// deriveConstraints turns surface signals in the query into the manifest's
// initial constraint list. Further constraints may be appended by later
// agents via the manifest, never replaced.
func deriveConstraints(query string) []Constraint {
	var constraints []Constraint
	if requestsGeneration(query) {
		constraints = append(constraints, Constraint{
			Kind:        "generation_request",
			Text:        "response must produce new content, not just an explanation",
			SourceAgent: RolePathos,
			Severity:    1,
		})
	}
	return constraints
}

// Pathos reads the raw query and establishes intent, persona, domain, and
// urgency on the manifest, then scores its own confidence in that reading.
// Pathos never vetoes — its Vote is always Approve or Revise.
type Pathos struct {
	name  string
	cap   inference.Capability
	ready atomic.Bool
}

var _ Agent = (*Pathos)(nil)

// NewPathos wires a Pathos agent to an inference capability. The agent is
// marked ready once constructed; callers may flip readiness off for
// draining/shutdown via SetReady.
func NewPathos(name string, capability inference.Capability) *Pathos {
	p := &Pathos{name: name, cap: capability}
	p.ready.Store(true)
	return p
}

func (p *Pathos) Role() Role   { return RolePathos }
func (p *Pathos) Name() string { return p.name }
func (p *Pathos) IsReady() bool {
	return p.ready.Load() && p.cap.Ready()
}

// SetReady flips the agent's readiness flag, e.g. during drain.
func (p *Pathos) SetReady(ready bool) { p.ready.Store(ready) }

func classifyDomain(query string) (domain string, unambiguous bool) {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		words[strings.Trim(w, ".,;:!?\"'()")] = true
	}
	for _, e := range domainKeywords {
		if words[e.keyword] {
			return e.domain, true
		}
	}
	return "general", false
}

func requestsGeneration(query string) bool {
	lower := strings.ToLower(query)
	for _, v := range generationVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

func (p *Pathos) Process(ctx context.Context, input Input) (Output, error) {
	query := input.Manifest.QueryText
	tokens := strings.Fields(query)

	confidence := 1.0
	var reasons []string

	if len(tokens) < 5 {
		confidence -= 0.15
		reasons = append(reasons, "query is too short to establish intent with high confidence")
	}

	domain, unambiguous := classifyDomain(query)

	if requestsGeneration(query) && len(input.Manifest.Constraints) == 0 {
		confidence -= 0.10
		reasons = append(reasons, "generation request carries no explicit constraints")
	}

	if unambiguous {
		confidence += 0.05
		reasons = append(reasons, fmt.Sprintf("domain classified unambiguously as %s", domain))
	}

	confidence = clamp01(confidence)

	prompt := fmt.Sprintf("Classify the user's intent in one short phrase for this query: %q", query)
	result, err := p.cap.Generate(ctx, prompt, inference.Params{Temperature: 0.2, MaxTokens: 64})
	intent := "answer_question"
	if err == nil && strings.TrimSpace(result.Text) != "" {
		intent = strings.TrimSpace(result.Text)
	}

	reasoning := "no adjustments applied"
	if len(reasons) > 0 {
		reasoning = strings.Join(reasons, "; ")
	}

	vote := Vote{Kind: VoteApprove}
	if input.Manifest.Feedback != "" || confidence < 0.9 {
		vote = Vote{Kind: VoteRevise, Feedback: reasoning}
	}

	return Output{
		ResponseText: intent,
		Confidence:   confidence,
		Reasoning:    reasoning,
		Vote:         vote,
		Domain:       domain,
		Persona:      classifyPersona(query),
		Urgency:      classifyUrgency(query),
		Constraints:  deriveConstraints(query),
	}, nil
}
