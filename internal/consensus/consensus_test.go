package consensus

import (
	"context"
	"errors"
	"testing"

	"github.com/tripartite-ai/consensus-core/internal/agent"
	"github.com/tripartite-ai/consensus-core/internal/config"
)

// fakeAgent is a scripted Agent double: each call to Process pops the next
// scripted (output, error) pair, repeating the last entry once exhausted.
type fakeAgent struct {
	role   agent.Role
	name   string
	script []scriptedCall
	calls  int
}

type scriptedCall struct {
	out agent.Output
	err error
}

func (f *fakeAgent) Role() agent.Role { return f.role }
func (f *fakeAgent) Name() string     { return f.name }
func (f *fakeAgent) IsReady() bool    { return true }

func (f *fakeAgent) Process(ctx context.Context, input agent.Input) (agent.Output, error) {
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++
	call := f.script[idx]
	return call.out, call.err
}

func approve(confidence float64) scriptedCall {
	return scriptedCall{out: agent.Output{Confidence: confidence, Vote: agent.Vote{Kind: agent.VoteApprove}}}
}

func revise(confidence float64, feedback string) scriptedCall {
	return scriptedCall{out: agent.Output{Confidence: confidence, Vote: agent.Vote{Kind: agent.VoteRevise, Feedback: feedback}}}
}

func veto(reason string) scriptedCall {
	return scriptedCall{out: agent.Output{Confidence: 0, Vote: agent.Vote{Kind: agent.VoteVeto, Reason: reason}}}
}

func testConsensusConfig() config.ConsensusConfig {
	return config.ConsensusConfig{
		Threshold: 0.85,
		MaxRounds: 3,
		Weights:   config.Weights{Pathos: 0.25, Logos: 0.45, Ethos: 0.30},
		PhaseDeadlines: config.PhaseDeadlines{
			PathosMs: 2000,
			LogosMs:  10000,
			EthosMs:  3000,
		},
	}
}

func TestEngineAgreesWhenAggregateClearsThresholdFirstRound(t *testing.T) {
	pathos := &fakeAgent{role: agent.RolePathos, script: []scriptedCall{approve(0.95)}}
	logos := &fakeAgent{role: agent.RoleLogos, script: []scriptedCall{{out: agent.Output{Confidence: 0.95, ResponseText: "the answer", Vote: agent.Vote{Kind: agent.VoteApprove}}}}}
	ethos := &fakeAgent{role: agent.RoleEthos, script: []scriptedCall{approve(0.95)}}

	engine := New(pathos, logos, ethos, testConsensusConfig())
	result := engine.Run(context.Background(), agent.Manifest{SessionID: "s1", QueryText: "what is the capital of France"})

	if result.Outcome != OutcomeAgreed {
		t.Fatalf("expected Agreed, got %s (reason=%s)", result.Outcome, result.Reason)
	}
	if result.Response != "the answer" {
		t.Fatalf("expected response to be Logos' output, got %q", result.Response)
	}
	if result.Rounds != 1 {
		t.Fatalf("expected agreement in round 1, got round %d", result.Rounds)
	}
}

func TestEngineVetoTerminatesImmediately(t *testing.T) {
	pathos := &fakeAgent{role: agent.RolePathos, script: []scriptedCall{approve(0.9)}}
	logos := &fakeAgent{role: agent.RoleLogos, script: []scriptedCall{{out: agent.Output{Confidence: 0.9, ResponseText: "rm -rf /"}}}}
	ethos := &fakeAgent{role: agent.RoleEthos, script: []scriptedCall{veto("recursive unrestricted deletion")}}

	engine := New(pathos, logos, ethos, testConsensusConfig())
	result := engine.Run(context.Background(), agent.Manifest{SessionID: "s1", QueryText: "clean my disk"})

	if result.Outcome != OutcomeVetoed {
		t.Fatalf("expected Vetoed, got %s", result.Outcome)
	}
	if result.Reason != "recursive unrestricted deletion" {
		t.Fatalf("expected veto reason to be surfaced verbatim, got %q", result.Reason)
	}
	if result.Response != "" {
		t.Fatal("a vetoed outcome must not expose response content")
	}
}

func TestEngineLoopsOnReviseThenAgrees(t *testing.T) {
	pathos := &fakeAgent{role: agent.RolePathos, script: []scriptedCall{approve(0.9), approve(0.9)}}
	logos := &fakeAgent{role: agent.RoleLogos, script: []scriptedCall{
		revise(0.5, "needs more detail"),
		{out: agent.Output{Confidence: 0.95, ResponseText: "refined answer", Vote: agent.Vote{Kind: agent.VoteApprove}}},
	}}
	ethos := &fakeAgent{role: agent.RoleEthos, script: []scriptedCall{approve(0.9), approve(0.9)}}

	engine := New(pathos, logos, ethos, testConsensusConfig())
	result := engine.Run(context.Background(), agent.Manifest{SessionID: "s1", QueryText: "explain goroutines in depth please"})

	if result.Outcome != OutcomeAgreed {
		t.Fatalf("expected eventual agreement, got %s (reason=%s)", result.Outcome, result.Reason)
	}
	if result.Rounds != 2 {
		t.Fatalf("expected agreement in round 2, got round %d", result.Rounds)
	}
}

func TestEngineEscalatesAfterMaxRounds(t *testing.T) {
	cfg := testConsensusConfig()
	cfg.MaxRounds = 2

	pathos := &fakeAgent{role: agent.RolePathos, script: []scriptedCall{approve(0.9)}}
	logos := &fakeAgent{role: agent.RoleLogos, script: []scriptedCall{revise(0.4, "still thin")}}
	ethos := &fakeAgent{role: agent.RoleEthos, script: []scriptedCall{approve(0.9)}}

	engine := New(pathos, logos, ethos, cfg)
	result := engine.Run(context.Background(), agent.Manifest{SessionID: "s1", QueryText: "write a detailed migration plan"})

	if result.Outcome != OutcomeEscalated {
		t.Fatalf("expected Escalated after max rounds, got %s", result.Outcome)
	}
	if result.Rounds != 2 {
		t.Fatalf("expected escalation to report round 2, got round %d", result.Rounds)
	}
}

func TestEngineEscalatesOnPersistentAgentFailure(t *testing.T) {
	cfg := testConsensusConfig()
	cfg.MaxRounds = 3

	pathos := &fakeAgent{role: agent.RolePathos, script: []scriptedCall{approve(0.9)}}
	logos := &fakeAgent{role: agent.RoleLogos, script: []scriptedCall{
		{err: errors.New("backend unreachable")},
		{err: errors.New("backend unreachable")},
	}}
	ethos := &fakeAgent{role: agent.RoleEthos, script: []scriptedCall{approve(0.9)}}

	engine := New(pathos, logos, ethos, cfg)
	result := engine.Run(context.Background(), agent.Manifest{SessionID: "s1", QueryText: "summarize this document for me"})

	if result.Outcome != OutcomeEscalated {
		t.Fatalf("expected Escalated after two consecutive Logos failures, got %s", result.Outcome)
	}
}

func TestEngineCancelledContextSurfacesCancelledOutcome(t *testing.T) {
	pathos := &fakeAgent{role: agent.RolePathos, script: []scriptedCall{approve(0.9)}}
	logos := &fakeAgent{role: agent.RoleLogos, script: []scriptedCall{approve(0.9)}}
	ethos := &fakeAgent{role: agent.RoleEthos, script: []scriptedCall{approve(0.9)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := New(pathos, logos, ethos, testConsensusConfig())
	result := engine.Run(ctx, agent.Manifest{SessionID: "s1", QueryText: "anything"})

	if result.Outcome != OutcomeCancelled {
		t.Fatalf("expected Cancelled for a cancelled parent context, got %s", result.Outcome)
	}
	if result.Response != "" {
		t.Fatal("a cancelled query must not carry response content")
	}
}

func TestEngineSingleAgentErrorIsTreatedAsReviseNotEscalation(t *testing.T) {
	cfg := testConsensusConfig()
	cfg.MaxRounds = 2

	pathos := &fakeAgent{role: agent.RolePathos, script: []scriptedCall{approve(0.9)}}
	logos := &fakeAgent{role: agent.RoleLogos, script: []scriptedCall{
		{err: errors.New("transient timeout")},
		{out: agent.Output{Confidence: 0.95, ResponseText: "recovered answer", Vote: agent.Vote{Kind: agent.VoteApprove}}},
	}}
	ethos := &fakeAgent{role: agent.RoleEthos, script: []scriptedCall{approve(0.9), approve(0.9)}}

	engine := New(pathos, logos, ethos, cfg)
	result := engine.Run(context.Background(), agent.Manifest{SessionID: "s1", QueryText: "describe the system architecture"})

	if result.Outcome != OutcomeAgreed {
		t.Fatalf("expected recovery to Agreed after a single transient failure, got %s (reason=%s)", result.Outcome, result.Reason)
	}
}
