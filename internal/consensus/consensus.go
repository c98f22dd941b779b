// Package consensus runs the per-round Pathos/Logos/Ethos deliberation
// protocol over a query manifest, aggregating weighted confidence until
// agreement, veto, or escalation.
package consensus

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tripartite-ai/consensus-core/internal/agent"
	"github.com/tripartite-ai/consensus-core/internal/config"
)

// Outcome is the tagged result the engine surfaces to the caller.
type Outcome string

const (
	OutcomeAgreed    Outcome = "agreed"
	OutcomeVetoed    Outcome = "vetoed"
	OutcomeEscalated Outcome = "escalated"
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the consensus engine's final answer for one query.
type Result struct {
	Outcome            Outcome
	Response           string
	Reason             string
	FinalConfidence    float64
	PerAgentConfidence map[agent.Role]float64
	Rounds             int
}

// Engine orchestrates the three-agent deliberation loop for one query at a
// time; the Engine value itself holds only immutable config and cheap
// agent-clone handles, so a single Engine is safe to invoke for many
// concurrent queries.
type Engine struct {
	pathos agent.Agent
	logos  agent.Agent
	ethos  agent.Agent
	cfg    config.ConsensusConfig
}

// New builds an Engine from the three role agents and consensus
// configuration. The agents are expected to already be cheap-clone handles
// per the Agent contract.
func New(pathos, logos, ethos agent.Agent, cfg config.ConsensusConfig) *Engine {
	return &Engine{pathos: pathos, logos: logos, ethos: ethos, cfg: cfg}
}

// agentErrorStreak tracks consecutive same-agent errors across rounds for
// the two-in-a-row escalation rule.
type agentErrorStreak struct {
	role  agent.Role
	count int
}

func (s *agentErrorStreak) record(role agent.Role, errored bool) bool {
	if !errored {
		if s.role == role {
			s.count = 0
		}
		return false
	}
	if s.role == role {
		s.count++
	} else {
		s.role = role
		s.count = 1
	}
	return s.count >= 2
}

// Run executes the deliberation loop for one query, starting from an
// initial manifest (session_id, query_text, and any caller-supplied
// context_map already populated).
func (e *Engine) Run(ctx context.Context, manifest agent.Manifest) Result {
	var pathosStreak, logosStreak, ethosStreak agentErrorStreak

	for round := 1; round <= e.cfg.MaxRounds; round++ {
		manifest.Round = round

		pathosOut, err := e.runPhaseA(ctx, manifest)
		if ctx.Err() != nil {
			return cancelled(ctx, round)
		}
		if escalate := pathosStreak.record(agent.RolePathos, err != nil); escalate {
			return escalated(fmt.Sprintf("agent %s persistent failure", agent.RolePathos), round, nil)
		}
		if err != nil {
			pathosOut = failureOutput(err)
		}
		applyPathosOutput(&manifest, pathosOut)

		logosOut, ethosPrefetch, logosErr := e.runPhaseB(ctx, manifest, round)
		if ctx.Err() != nil {
			return cancelled(ctx, round)
		}
		if escalate := logosStreak.record(agent.RoleLogos, logosErr != nil); escalate {
			return escalated(fmt.Sprintf("agent %s persistent failure", agent.RoleLogos), round, nil)
		}
		if logosErr != nil {
			logosOut = failureOutput(logosErr)
		}

		ethosOut, ethosErr := e.runPhaseC(ctx, manifest, round, logosOut, ethosPrefetch)
		if ctx.Err() != nil {
			return cancelled(ctx, round)
		}
		if escalate := ethosStreak.record(agent.RoleEthos, ethosErr != nil); escalate {
			return escalated(fmt.Sprintf("agent %s persistent failure", agent.RoleEthos), round, nil)
		}
		if ethosErr != nil {
			ethosOut = failureOutput(ethosErr)
		}

		outputs := map[agent.Role]agent.Output{
			agent.RolePathos: pathosOut,
			agent.RoleLogos:  logosOut,
			agent.RoleEthos:  ethosOut,
		}

		if ethosOut.Vote.Kind == agent.VoteVeto {
			return Result{
				Outcome: OutcomeVetoed,
				Reason:  ethosOut.Vote.Reason,
				Rounds:  round,
			}
		}

		aggregate := e.aggregate(outputs)
		perAgent := confidenceMap(outputs)

		if aggregate >= e.cfg.Threshold && !anyRevise(outputs) {
			return Result{
				Outcome:            OutcomeAgreed,
				Response:           logosOut.ResponseText,
				FinalConfidence:    aggregate,
				PerAgentConfidence: perAgent,
				Rounds:             round,
			}
		}

		manifest.Feedback = lowestConfidenceFeedback(outputs)

		if round == e.cfg.MaxRounds {
			return Result{
				Outcome:            OutcomeEscalated,
				Reason:             "max rounds exhausted without agreement",
				FinalConfidence:    aggregate,
				PerAgentConfidence: perAgent,
				Rounds:             round,
			}
		}
	}

	// Unreachable: MaxRounds is validated to be >= 1 and the loop above
	// always returns by its last iteration.
	return Result{Outcome: OutcomeEscalated, Reason: "no rounds configured"}
}

func (e *Engine) runPhaseA(ctx context.Context, manifest agent.Manifest) (agent.Output, error) {
	deadline := time.Duration(e.cfg.PhaseDeadlines.PathosMs) * time.Millisecond
	phaseCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	return e.pathos.Process(phaseCtx, agent.Input{Manifest: manifest, Round: manifest.Round})
}

// runPhaseB runs Logos and the Ethos prefetch concurrently; neither reads
// the other's result. The prefetch is the safety-table scan of the query
// text plus the feasibility check — both pure functions of manifest,
// computed here so Phase C doesn't redo them.
func (e *Engine) runPhaseB(ctx context.Context, manifest agent.Manifest, round int) (agent.Output, agent.EthosPrefetch, error) {
	logosDeadline := time.Duration(e.cfg.PhaseDeadlines.LogosMs) * time.Millisecond
	phaseCtx, cancel := context.WithTimeout(ctx, logosDeadline)
	defer cancel()

	g, gCtx := errgroup.WithContext(phaseCtx)

	var logosOut agent.Output
	var prefetch agent.EthosPrefetch

	g.Go(func() error {
		var err error
		logosOut, err = e.logos.Process(gCtx, agent.Input{Manifest: manifest, Round: round})
		return err
	})

	g.Go(func() error {
		prefetch = agent.ComputeEthosPrefetch(manifest)
		return nil
	})

	err := g.Wait()
	return logosOut, prefetch, err
}

func (e *Engine) runPhaseC(ctx context.Context, manifest agent.Manifest, round int, logosOut agent.Output, prefetch agent.EthosPrefetch) (agent.Output, error) {
	deadline := time.Duration(e.cfg.PhaseDeadlines.EthosMs) * time.Millisecond
	phaseCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	return e.ethos.Process(phaseCtx, agent.Input{
		Manifest:     manifest,
		Round:        round,
		PriorOutputs: map[agent.Role]agent.Output{agent.RoleLogos: logosOut},
		Prefetch:     &prefetch,
	})
}

func (e *Engine) aggregate(outputs map[agent.Role]agent.Output) float64 {
	w := e.cfg.Weights
	return w.Pathos*outputs[agent.RolePathos].Confidence +
		w.Logos*outputs[agent.RoleLogos].Confidence +
		w.Ethos*outputs[agent.RoleEthos].Confidence
}

func anyRevise(outputs map[agent.Role]agent.Output) bool {
	for _, o := range outputs {
		if o.Vote.Kind == agent.VoteRevise {
			return true
		}
	}
	return false
}

func confidenceMap(outputs map[agent.Role]agent.Output) map[agent.Role]float64 {
	m := make(map[agent.Role]float64, len(outputs))
	for role, o := range outputs {
		m[role] = o.Confidence
	}
	return m
}

// lowestConfidenceFeedback picks the feedback text of whichever agent
// reported the lowest confidence this round, to inject into the next
// round's manifest.
func lowestConfidenceFeedback(outputs map[agent.Role]agent.Output) string {
	var lowestRole agent.Role
	lowestConfidence := 2.0 // above the valid [0,1] range so the first entry always wins
	for role, o := range outputs {
		if o.Confidence < lowestConfidence {
			lowestConfidence = o.Confidence
			lowestRole = role
		}
	}
	out := outputs[lowestRole]
	if out.Vote.Feedback != "" {
		return out.Vote.Feedback
	}
	return out.Reasoning
}

// applyPathosOutput amends the manifest with Pathos's read of the query:
// intent, domain, persona, urgency, constraints. Constraints are appended,
// never replaced, so later rounds accumulate rather than discard earlier
// findings.
func applyPathosOutput(manifest *agent.Manifest, out agent.Output) {
	if out.ResponseText != "" {
		manifest.Intent = out.ResponseText
	}
	if out.Domain != "" {
		manifest.Domain = out.Domain
	}
	if out.Persona != "" {
		manifest.Persona = out.Persona
	}
	if out.Urgency != "" {
		manifest.Urgency = out.Urgency
	}
	for _, c := range out.Constraints {
		if !hasConstraint(manifest.Constraints, c) {
			manifest.Constraints = append(manifest.Constraints, c)
		}
	}
}

// hasConstraint reports whether an equivalent constraint is already
// present, so re-deriving the same constraint on a later round (Pathos
// runs every round) doesn't duplicate it.
func hasConstraint(existing []agent.Constraint, c agent.Constraint) bool {
	for _, e := range existing {
		if e.Kind == c.Kind && e.Text == c.Text && e.SourceAgent == c.SourceAgent {
			return true
		}
	}
	return false
}

func failureOutput(err error) agent.Output {
	return agent.Output{
		Confidence: 0,
		Reasoning:  err.Error(),
		Vote:       agent.Vote{Kind: agent.VoteRevise, Feedback: err.Error()},
	}
}

// cancelled surfaces parent-context cancellation (or its deadline) as its
// own outcome, distinct from veto and escalation — the caller decides
// whether to retry. Per-phase deadlines never reach here: they expire on a
// derived context and are treated as agent failure instead.
func cancelled(ctx context.Context, round int) Result {
	return Result{
		Outcome: OutcomeCancelled,
		Reason:  ctx.Err().Error(),
		Rounds:  round,
	}
}

func escalated(reason string, round int, perAgent map[agent.Role]float64) Result {
	return Result{
		Outcome:            OutcomeEscalated,
		Reason:             reason,
		Rounds:             round,
		PerAgentConfidence: perAgent,
	}
}
