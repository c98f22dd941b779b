package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tripartite-ai/consensus-core/internal/embedding"
	"github.com/tripartite-ai/consensus-core/internal/inference"
	"github.com/tripartite-ai/consensus-core/internal/knowledge"
)

// defaultTopK is how many chunks Logos retrieves per query when the
// manifest's context_map doesn't override it.
const defaultTopK = 5

// Logos retrieves supporting context from the knowledge vault and
// synthesizes a reasoned response, blending generation confidence with
// retrieval quality. Logos never vetoes.
type Logos struct {
	name     string
	cap      inference.Capability
	embedder embedding.Embedder
	vault    *knowledge.Vault
	ready    atomic.Bool
}

var _ Agent = (*Logos)(nil)

// NewLogos wires a Logos agent to an inference capability, an embedder for
// forming retrieval queries, and the knowledge vault to search.
func NewLogos(name string, capability inference.Capability, embedder embedding.Embedder, vault *knowledge.Vault) *Logos {
	l := &Logos{name: name, cap: capability, embedder: embedder, vault: vault}
	l.ready.Store(true)
	return l
}

func (l *Logos) Role() Role    { return RoleLogos }
func (l *Logos) Name() string  { return l.name }
func (l *Logos) IsReady() bool { return l.ready.Load() && l.cap.Ready() }

// SetReady flips the agent's readiness flag, e.g. during drain.
func (l *Logos) SetReady(ready bool) { l.ready.Store(ready) }

func topKFromContext(contextMap map[string]any) int {
	if v, ok := contextMap["top_k"]; ok {
		if n, ok := v.(int); ok && n > 0 {
			return n
		}
	}
	return defaultTopK
}

func (l *Logos) Process(ctx context.Context, input Input) (Output, error) {
	manifest := input.Manifest

	queryText := manifest.QueryText
	if manifest.Feedback != "" {
		queryText = manifest.QueryText + " " + manifest.Feedback
	}

	queryVec, err := l.embedder.Embed(queryText)
	if err != nil {
		return Output{}, fmt.Errorf("logos: embed retrieval query: %w", err)
	}

	topK := topKFromContext(manifest.ContextMap)
	results, err := l.vault.Search(queryVec, topK, nil)
	if err != nil {
		return Output{}, fmt.Errorf("logos: search vault: %w", err)
	}

	var sb strings.Builder
	var sources []Source
	var retrievalQuality float64
	for _, r := range results {
		sb.WriteString(r.Chunk.Content)
		sb.WriteString("\n\n")
		sources = append(sources, Source{
			Path:      r.DocPath,
			SpanStart: r.Chunk.StartOffset,
			SpanEnd:   r.Chunk.EndOffset,
			ChunkID:   r.Chunk.ID,
			Relevance: r.Score,
		})
		retrievalQuality += r.Score
	}
	if len(results) > 0 {
		retrievalQuality /= float64(len(results))
	}

	prompt := buildSynthesisPrompt(manifest, sb.String())
	genResult, err := l.cap.Generate(ctx, prompt, inference.Params{Temperature: 0.4, MaxTokens: 1024})
	if err != nil {
		return Output{}, fmt.Errorf("logos: generate: %w", err)
	}

	// Blend generator confidence with retrieval quality: a confident
	// generation grounded on nothing is penalized, a weak generation
	// grounded on excellent sources is lifted.
	confidence := clamp01(0.7*genResult.Confidence + 0.3*retrievalQuality)

	reasoning := fmt.Sprintf("synthesized from %d retrieved chunk(s), avg relevance %.2f", len(results), retrievalQuality)

	vote := Vote{Kind: VoteApprove}
	if confidence < 0.85 {
		vote = Vote{Kind: VoteRevise, Feedback: "retrieved context was thin or generation confidence was low"}
	}

	return Output{
		ResponseText:       genResult.Text,
		Confidence:         confidence,
		Reasoning:          reasoning,
		Vote:               vote,
		ContributedSources: sources,
	}, nil
}

func buildSynthesisPrompt(manifest Manifest, context string) string {
	var sb strings.Builder
	sb.WriteString("Intent: ")
	sb.WriteString(manifest.Intent)
	sb.WriteString("\nQuery: ")
	sb.WriteString(manifest.QueryText)
	if manifest.Feedback != "" {
		sb.WriteString("\nRevision feedback from prior round: ")
		sb.WriteString(manifest.Feedback)
	}
	if context != "" {
		sb.WriteString("\nRelevant context:\n")
		sb.WriteString(context)
	}
	sb.WriteString("\nRespond directly and cite the context where it supports the answer.")
	return sb.String()
}
