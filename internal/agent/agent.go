// Package agent implements the Pathos/Logos/Ethos agent contract: a single
// Process(input) call polymorphic over three role behaviors sharing one
// interface, communicating through a per-query manifest.
package agent

import "context"

// Role identifies which of the three behaviors an Agent implements.
type Role string

const (
	RolePathos Role = "pathos"
	RoleLogos  Role = "logos"
	RoleEthos  Role = "ethos"
)

// Persona classifies the manifest's inferred audience sophistication.
type Persona string

const (
	PersonaBeginner     Persona = "beginner"
	PersonaIntermediate Persona = "intermediate"
	PersonaExpert       Persona = "expert"
)

// VoteKind is the three-way decision an agent's output carries.
type VoteKind string

const (
	VoteApprove VoteKind = "approve"
	VoteRevise  VoteKind = "revise"
	VoteVeto    VoteKind = "veto"
)

// Vote carries the decision plus any feedback/reason text attached to it.
// Only Ethos may ever produce VoteVeto.
type Vote struct {
	Kind     VoteKind
	Feedback string // set when Kind == VoteRevise
	Reason   string // set when Kind == VoteVeto
}

// Constraint is one entry in the manifest's ordered constraint list.
type Constraint struct {
	Kind        string
	Text        string
	SourceAgent Role
	Severity    int
}

// Source is a retrieved or cited reference, carried in the manifest and
// echoed back (in part) in an agent's ContributedSources.
type Source struct {
	Path      string
	SpanStart int
	SpanEnd   int
	ChunkID   int64
	Relevance float64
}

// Manifest is the mutable agent-to-agent record passed between agents
// within one query. SessionID never changes once set; Round is
// monotonically non-decreasing.
type Manifest struct {
	SessionID   string
	QueryID     string
	QueryText   string
	Round       int
	Intent      string
	Persona     Persona
	Urgency     string
	Domain      string
	Constraints []Constraint
	Sources     []Source
	ContextMap  map[string]any
	Feedback    string
}

// Output is what an agent produces each round. Domain, Persona, Urgency,
// and Constraints are populated by Pathos only; other agents leave them
// zero-valued and the engine does not touch the manifest with them.
type Output struct {
	ResponseText       string
	Confidence         float64
	Reasoning          string
	Vote               Vote
	ContributedSources []Source
	Domain             string
	Persona            Persona
	Urgency            string
	Constraints        []Constraint
}

// Input is what Process receives: the manifest as of this round, the round
// number, and the outputs already produced by other agents this round.
type Input struct {
	Manifest     Manifest
	Round        int
	PriorOutputs map[Role]Output

	// Prefetch carries Ethos's Phase-B pre-computed safety/feasibility
	// findings, set by the engine ahead of Phase C. Nil when Ethos.Process
	// is invoked standalone (e.g. in tests), in which case it computes the
	// same checks inline.
	Prefetch *EthosPrefetch
}

// Agent is the single contract all three roles implement. An Agent value
// must be a cheap clone: immutable config plus a shared, thread-safe
// inference capability handle — safe to invoke from multiple concurrent
// queries.
type Agent interface {
	Process(ctx context.Context, input Input) (Output, error)
	IsReady() bool
	Role() Role
	Name() string
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
