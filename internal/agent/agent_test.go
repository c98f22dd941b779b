package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/tripartite-ai/consensus-core/internal/config"
	"github.com/tripartite-ai/consensus-core/internal/embedding"
	"github.com/tripartite-ai/consensus-core/internal/inference"
	"github.com/tripartite-ai/consensus-core/internal/knowledge"
)

func TestPathosShortQueryPenalizesConfidence(t *testing.T) {
	p := NewPathos("pathos-1", &inference.StubCapability{})
	out, err := p.Process(context.Background(), Input{Manifest: Manifest{SessionID: "s1", QueryText: "hi", Round: 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Confidence > 0.85 {
		t.Fatalf("expected confidence <= 0.85 for short query, got %f", out.Confidence)
	}
	if out.Vote.Kind != VoteRevise && out.Vote.Kind != VoteApprove {
		t.Fatalf("pathos must never veto, got %v", out.Vote.Kind)
	}
}

func TestPathosNeverVetoes(t *testing.T) {
	p := NewPathos("pathos-1", &inference.StubCapability{})
	out, err := p.Process(context.Background(), Input{Manifest: Manifest{SessionID: "s1", QueryText: "write me a detailed deployment script for this service", Round: 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Vote.Kind == VoteVeto {
		t.Fatal("pathos must never veto")
	}
}

func TestPathosGenerationWithoutConstraintsPenalized(t *testing.T) {
	p := NewPathos("pathos-1", &inference.StubCapability{})
	long := "write a complete backup and restore script for our database"
	out, err := p.Process(context.Background(), Input{Manifest: Manifest{SessionID: "s1", QueryText: long, Round: 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Confidence >= 1.0 {
		t.Fatalf("expected generation-without-constraints penalty to apply, got %f", out.Confidence)
	}
}

func TestPathosUnambiguousDomainBonus(t *testing.T) {
	p := NewPathos("pathos-1", &inference.StubCapability{})
	out, err := p.Process(context.Background(), Input{Manifest: Manifest{SessionID: "s1", QueryText: "explain how goroutines schedule onto OS threads in golang", Round: 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Confidence <= 0 {
		t.Fatalf("expected a positive confidence, got %f", out.Confidence)
	}
	if !strings.Contains(out.Reasoning, "domain classified unambiguously as software_engineering") {
		t.Fatalf("expected the unambiguous-domain bonus to be applied, got reasoning %q", out.Reasoning)
	}
}

func TestPathosConfidenceIsClamped(t *testing.T) {
	p := NewPathos("pathos-1", &inference.StubCapability{})
	out, err := p.Process(context.Background(), Input{Manifest: Manifest{SessionID: "s1", QueryText: "hi", Round: 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		t.Fatalf("confidence must be clamped to [0,1], got %f", out.Confidence)
	}
}

func openTestVaultForAgent(t *testing.T) *knowledge.Vault {
	t.Helper()
	embedder := embedding.NewHashEmbedder(16)
	vaultCfg := config.VaultConfig{EmbeddingDim: 16, MaxScan: 1000, OverFetch: 4}
	v, err := knowledge.OpenMemory(vaultCfg, config.ChunkConfig{Strategy: "paragraph", MinChunkFloor: 50, ParagraphOverlap: 10}, embedder)
	if err != nil {
		t.Fatalf("open memory vault: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestLogosRetrievesAndSynthesizes(t *testing.T) {
	v := openTestVaultForAgent(t)
	if _, err := v.AddDocument("notes.md", "Goroutines are lightweight threads managed by the Go runtime scheduler.", "docs"); err != nil {
		t.Fatalf("add document: %v", err)
	}
	embedder := embedding.NewHashEmbedder(16)
	l := NewLogos("logos-1", &inference.StubCapability{}, embedder, v)

	out, err := l.Process(context.Background(), Input{Manifest: Manifest{
		SessionID: "s1",
		QueryText: "How does the Go runtime schedule goroutines?",
		Round:     1,
	}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Vote.Kind == VoteVeto {
		t.Fatal("logos must never veto")
	}
	if len(out.ContributedSources) == 0 {
		t.Fatal("expected logos to contribute at least one source from the vault")
	}
}

func TestLogosEmptyVaultStillProducesOutput(t *testing.T) {
	v := openTestVaultForAgent(t)
	embedder := embedding.NewHashEmbedder(16)
	l := NewLogos("logos-1", &inference.StubCapability{}, embedder, v)

	out, err := l.Process(context.Background(), Input{Manifest: Manifest{SessionID: "s1", QueryText: "anything at all", Round: 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(out.ContributedSources) != 0 {
		t.Fatalf("expected no sources from an empty vault, got %d", len(out.ContributedSources))
	}
}

func TestEthosVetoesOnDestructiveDeletion(t *testing.T) {
	e := NewEthos("ethos-1", &inference.StubCapability{}, t.TempDir())
	out, err := e.Process(context.Background(), Input{
		Manifest: Manifest{SessionID: "s1", Round: 1},
		PriorOutputs: map[Role]Output{
			RoleLogos: {ResponseText: "run `rm -rf /` to clean everything up"},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Vote.Kind != VoteVeto {
		t.Fatalf("expected veto, got %v", out.Vote.Kind)
	}
}

func TestEthosVetoesOnFeasibilityViolation(t *testing.T) {
	e := NewEthos("ethos-1", &inference.StubCapability{}, t.TempDir())
	out, err := e.Process(context.Background(), Input{
		Manifest: Manifest{
			SessionID: "s1",
			Round:     1,
			ContextMap: map[string]any{
				"limits": map[string]float64{"memory_gb": 16},
				"claims": map[string]float64{"memory_gb": 64},
			},
		},
		PriorOutputs: map[Role]Output{RoleLogos: {ResponseText: "this will need 64GB of memory"}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Vote.Kind != VoteVeto {
		t.Fatalf("expected veto for exceeded resource limit, got %v", out.Vote.Kind)
	}
}

func TestEthosApprovesOrdinaryResponse(t *testing.T) {
	e := NewEthos("ethos-1", &inference.StubCapability{}, t.TempDir())
	out, err := e.Process(context.Background(), Input{
		Manifest:     Manifest{SessionID: "s1", Round: 1},
		PriorOutputs: map[Role]Output{RoleLogos: {ResponseText: "goroutines are scheduled cooperatively by the Go runtime"}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Vote.Kind == VoteVeto {
		t.Fatalf("expected no veto for an ordinary response, got reason %q", out.Vote.Reason)
	}
}

func TestEthosHandlesEmptyCandidate(t *testing.T) {
	e := NewEthos("ethos-1", &inference.StubCapability{}, t.TempDir())
	out, err := e.Process(context.Background(), Input{Manifest: Manifest{SessionID: "s1", Round: 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Vote.Kind == VoteVeto {
		t.Fatal("an empty candidate should not be vetoed")
	}
}
