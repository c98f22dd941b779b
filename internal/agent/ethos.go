package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tripartite-ai/consensus-core/internal/guard"
	"github.com/tripartite-ai/consensus-core/internal/inference"
)

// Ethos is the only agent permitted to veto. It runs three checks in
// order — a veto-table scan, a resource-feasibility check, and a
// factual-consistency check of cited sources — against the candidate
// response produced by Logos this round.
type Ethos struct {
	name    string
	cap     inference.Capability
	dataDir string
	ready   atomic.Bool
}

var _ Agent = (*Ethos)(nil)

// NewEthos wires an Ethos agent to an inference capability used for the
// factual-consistency check, and the data directory its audit log lives
// under.
func NewEthos(name string, capability inference.Capability, dataDir string) *Ethos {
	e := &Ethos{name: name, cap: capability, dataDir: dataDir}
	e.ready.Store(true)
	return e
}

func (e *Ethos) Role() Role    { return RoleEthos }
func (e *Ethos) Name() string  { return e.name }
func (e *Ethos) IsReady() bool { return e.ready.Load() && e.cap.Ready() }

// SetReady flips the agent's readiness flag, e.g. during drain.
func (e *Ethos) SetReady(ready bool) { e.ready.Store(ready) }

func (e *Ethos) candidateText(input Input) string {
	if logosOut, ok := input.PriorOutputs[RoleLogos]; ok {
		return logosOut.ResponseText
	}
	return ""
}

// EthosPrefetch holds the portion of Ethos's verification that depends
// only on the tokenized query and context_map, never on Logos' candidate
// response: the safety-table scan of the query text, and the resource-
// feasibility check. The engine computes this during Phase B, concurrently
// with Logos, and hands it to Process for Phase C to reuse rather than
// re-running those two checks from scratch.
type EthosPrefetch struct {
	QueryHit       *guard.Hit
	FeasibilityHit *guard.Hit
}

// ComputeEthosPrefetch runs the query-only checks. It has no dependency on
// a particular Ethos instance — both fields are pure functions of the
// manifest — so the engine can call it from a goroutine that doesn't hold
// an Ethos handle at all.
func ComputeEthosPrefetch(manifest Manifest) EthosPrefetch {
	return EthosPrefetch{
		QueryHit:       guard.Scan(manifest.QueryText),
		FeasibilityHit: checkFeasibility(manifest),
	}
}

func (e *Ethos) Process(ctx context.Context, input Input) (Output, error) {
	candidate := e.candidateText(input)
	manifest := input.Manifest

	prefetch := input.Prefetch
	if prefetch == nil {
		computed := ComputeEthosPrefetch(manifest)
		prefetch = &computed
	}

	if prefetch.QueryHit != nil {
		e.audit(manifest, true, prefetch.QueryHit)
		return Output{
			Confidence: 0,
			Reasoning:  prefetch.QueryHit.Reason,
			Vote:       Vote{Kind: VoteVeto, Reason: prefetch.QueryHit.Reason},
		}, nil
	}

	// The candidate response only exists once Logos finishes, so its scan
	// can never be part of the Phase-B prefetch — it runs here, in Phase C.
	if hit := guard.Scan(candidate); hit != nil {
		e.audit(manifest, true, hit)
		return Output{
			Confidence: 0,
			Reasoning:  hit.Reason,
			Vote:       Vote{Kind: VoteVeto, Reason: hit.Reason},
		}, nil
	}

	if prefetch.FeasibilityHit != nil {
		e.audit(manifest, true, prefetch.FeasibilityHit)
		return Output{
			Confidence: 0,
			Reasoning:  prefetch.FeasibilityHit.Reason,
			Vote:       Vote{Kind: VoteVeto, Reason: prefetch.FeasibilityHit.Reason},
		}, nil
	}

	consistencyIssue, confidence, err := e.checkFactualConsistency(ctx, candidate, manifest)
	if err != nil {
		return Output{}, fmt.Errorf("ethos: factual consistency check: %w", err)
	}

	e.audit(manifest, false, nil)

	if consistencyIssue != "" {
		return Output{
			Confidence: confidence,
			Reasoning:  consistencyIssue,
			Vote:       Vote{Kind: VoteRevise, Feedback: consistencyIssue},
		}, nil
	}

	return Output{
		Confidence: confidence,
		Reasoning:  "no safety, feasibility, or consistency issues found",
		Vote:       Vote{Kind: VoteApprove},
	}, nil
}

// checkFeasibility turns the manifest's context_map "claims" entry into
// numeric claims and its "limits" entry into resource limits (both must be
// map[string]float64, otherwise no check runs), then defers to
// guard.CheckFeasibility.
// A free function, not a method: it only reads manifest, so Phase B's
// prefetch can call it without holding an Ethos handle.
func checkFeasibility(manifest Manifest) *guard.Hit {
	limitsRaw, ok := manifest.ContextMap["limits"]
	if !ok {
		return nil
	}
	limitMap, ok := limitsRaw.(map[string]float64)
	if !ok {
		return nil
	}
	claimsRaw, ok := manifest.ContextMap["claims"]
	if !ok {
		return nil
	}
	claimMap, ok := claimsRaw.(map[string]float64)
	if !ok {
		return nil
	}

	limits := make([]guard.Limit, 0, len(limitMap))
	for name, value := range limitMap {
		limits = append(limits, guard.Limit{Name: name, Value: value})
	}
	claims := make([]guard.Claim, 0, len(claimMap))
	for name, value := range claimMap {
		claims = append(claims, guard.Claim{Name: name, Value: value})
	}

	return guard.CheckFeasibility(claims, limits)
}

// checkFactualConsistency asks the inference capability whether the
// candidate response's claims are supported by the manifest's sources. It
// returns a non-empty issue description when it finds an unsupported
// claim, plus the confidence to report either way.
func (e *Ethos) checkFactualConsistency(ctx context.Context, candidate string, manifest Manifest) (string, float64, error) {
	if candidate == "" {
		return "", 0.5, nil
	}

	var sb strings.Builder
	for _, s := range manifest.Sources {
		sb.WriteString(s.Path)
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(
		"Verify whether this response's claims are supported by the cited sources. "+
			"Respond with the single word CONSISTENT if every claim is supported, "+
			"or a short sentence naming the first unsupported claim otherwise.\n\nResponse:\n%s\n\nCited sources:\n%s",
		candidate, sb.String(),
	)

	result, err := e.cap.Generate(ctx, prompt, inference.Params{Temperature: 0, MaxTokens: 128})
	if err != nil {
		return "", 0, err
	}

	// Exact-word comparison: "INCONSISTENT" contains the substring
	// "CONSISTENT", so anything looser than this misreads a failure as a
	// pass.
	verdict := strings.TrimSpace(result.Text)
	if strings.EqualFold(strings.Trim(verdict, ".!\"' "), "CONSISTENT") {
		return "", clamp01(result.Confidence), nil
	}
	return fmt.Sprintf("factual consistency check flagged: %s", verdict), clamp01(result.Confidence * 0.5), nil
}

func (e *Ethos) audit(manifest Manifest, vetoed bool, hit *guard.Hit) {
	if e.dataDir == "" {
		return
	}
	entry := guard.AuditEntry{
		SessionID: manifest.SessionID,
		QueryID:   manifest.QueryID,
		Round:     manifest.Round,
		Vetoed:    vetoed,
	}
	if hit != nil {
		entry.Category = string(hit.Category)
		entry.Reason = hit.Reason
	}
	_ = guard.AppendAudit(e.dataDir, entry)
}
