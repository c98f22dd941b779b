// Package council wires the redactor, consensus engine, and re-inflation
// step together into the single entry point a caller (CLI, MCP server)
// uses to run one query end to end: redact plaintext in, run the
// Pathos/Logos/Ethos deliberation, re-inflate tokens out.
package council

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tripartite-ai/consensus-core/internal/agent"
	"github.com/tripartite-ai/consensus-core/internal/config"
	"github.com/tripartite-ai/consensus-core/internal/consensus"
	"github.com/tripartite-ai/consensus-core/internal/redactor"
)

// Response is what a caller receives back from Ask: either a re-inflated
// answer, or a reason the query could not be answered.
type Response struct {
	Outcome            consensus.Outcome
	Answer             string
	Reason             string
	FinalConfidence    float64
	PerAgentConfidence map[agent.Role]float64
	Rounds             int
	RedactionStats     map[string]int
}

// Council is the facade: a Redactor for privacy, an Engine for
// deliberation. A Council is safe for concurrent Ask calls — the redactor
// and engine are themselves safe for concurrent use.
type Council struct {
	redactor *redactor.Redactor
	engine   *consensus.Engine
}

// New builds a Council from an already-constructed redactor and engine.
func New(r *redactor.Redactor, engine *consensus.Engine) *Council {
	return &Council{redactor: r, engine: engine}
}

// Ask runs one query through the full pipeline: redact, deliberate,
// re-inflate. sessionID scopes both the token vault lookups and the
// manifest's session identity, which never changes across rounds.
func (c *Council) Ask(ctx context.Context, sessionID, queryText string, contextMap map[string]any) (Response, error) {
	redacted, err := c.redactor.Redact(sessionID, queryText)
	if err != nil {
		return Response{}, fmt.Errorf("council: redact query: %w", err)
	}

	manifest := agent.Manifest{
		SessionID:  sessionID,
		QueryID:    uuid.NewString(),
		QueryText:  redacted.Text,
		Round:      1,
		Persona:    agent.PersonaIntermediate,
		ContextMap: contextMap,
	}

	result := c.engine.Run(ctx, manifest)

	resp := Response{
		Outcome:            result.Outcome,
		Reason:             result.Reason,
		FinalConfidence:    result.FinalConfidence,
		PerAgentConfidence: result.PerAgentConfidence,
		Rounds:             result.Rounds,
		RedactionStats:     redacted.Stats,
	}

	if result.Outcome != consensus.OutcomeAgreed {
		return resp, nil
	}

	answer, err := c.redactor.Reinflate(sessionID, result.Response)
	if err != nil {
		return Response{}, fmt.Errorf("council: reinflate response: %w", err)
	}
	resp.Answer = answer
	return resp, nil
}

// BuildEngine is a convenience constructor assembling an Engine from role
// agents and consensus configuration, so callers (CLI, MCP server) don't
// need to import internal/consensus directly just to call New.
func BuildEngine(pathos, logos, ethos agent.Agent, cfg config.ConsensusConfig) *consensus.Engine {
	return consensus.New(pathos, logos, ethos, cfg)
}
