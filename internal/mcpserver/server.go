// Package mcpserver exposes the consensus core over MCP: council_ask,
// vault_search, and redact_text tools, served over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tripartite-ai/consensus-core/internal/council"
	"github.com/tripartite-ai/consensus-core/internal/embedding"
	"github.com/tripartite-ai/consensus-core/internal/knowledge"
	"github.com/tripartite-ai/consensus-core/internal/redactor"
)

// Version is set by the caller (cmd/tripartite) before calling Serve.
var Version = "dev"

const maxQueryLen = 10_000

// Server holds the handles every tool handler needs. Built once by the
// caller (cmd/tripartite's "mcp serve" command) and never mutated after
// Serve is called — the redactor, vault, and council are all themselves
// safe for concurrent tool invocations.
type Server struct {
	Council  *council.Council
	Redactor *redactor.Redactor
	Vault    *knowledge.Vault
	Embedder embedding.Embedder
}

// Serve starts the MCP server on stdio and blocks until ctx is cancelled or
// the transport closes.
func (s *Server) Serve(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tripartite",
		Version: Version,
	}, nil)

	s.registerTools(server)

	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools(server *mcp.Server) {
	readOnly := &mcp.ToolAnnotations{ReadOnlyHint: true}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "redact_text",
		Description: "Redact sensitive substrings (emails, API keys, credit cards, etc.) from text before it leaves the local machine. Use this before handing text to any cloud-bound step.\n\nArgs:\n  session_id: opaque session identifier scoping the token vault\n  text: plaintext to redact\n\nReturns the tokenized text plus a per-category count of what was redacted. Never returns the original plaintext in its stats.",
		Annotations: readOnly,
	}, s.handleRedactText)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vault_search",
		Description: "Search the local knowledge vault for chunks relevant to a query. Use this to ground an answer in the user's own indexed documents.\n\nArgs:\n  query: natural language search query\n  top_k: number of results (default 5)\n  doc_type: optional filter (code, markdown, text, other)\n\nReturns a ranked list of chunks with their source path and composite score.",
		Annotations: readOnly,
	}, s.handleVaultSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "council_ask",
		Description: "Run a query through the full tripartite consensus pipeline: redact, deliberate (Pathos/Logos/Ethos), re-inflate. Use this for the actual answer-producing path rather than calling redact_text/vault_search directly.\n\nArgs:\n  session_id: opaque session identifier\n  query: the user's question, in plaintext\n\nReturns the outcome (agreed/vetoed/escalated) and, on agreement, the re-inflated answer.",
	}, s.handleCouncilAsk)
}

type redactInput struct {
	SessionID string `json:"session_id" jsonschema:"Opaque session identifier scoping the token vault"`
	Text      string `json:"text" jsonschema:"Plaintext to redact"`
}

type redactOutput struct {
	Text  string         `json:"text"`
	Stats map[string]int `json:"stats"`
}

func (s *Server) handleRedactText(ctx context.Context, req *mcp.CallToolRequest, input redactInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return textResult("Error: session_id is required."), nil, nil
	}
	if len(input.Text) > maxQueryLen {
		return textResult(fmt.Sprintf("Error: text too long (max %d characters for this tool; use the library directly for bulk redaction).", maxQueryLen)), nil, nil
	}
	redacted, err := s.Redactor.Redact(input.SessionID, input.Text)
	if err != nil {
		return textResult(fmt.Sprintf("Redaction failed: %v", err)), nil, nil
	}
	out := redactOutput{Text: redacted.Text, Stats: redacted.Stats}
	data, _ := json.MarshalIndent(out, "", "  ")
	return textResult(string(data)), out, nil
}

type vaultSearchInput struct {
	Query   string `json:"query" jsonschema:"Natural language search query"`
	TopK    int    `json:"top_k,omitempty" jsonschema:"Number of results (default 5)"`
	DocType string `json:"doc_type,omitempty" jsonschema:"Filter by document type (code, markdown, text, other)"`
}

type vaultSearchResult struct {
	Path    string  `json:"path"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (s *Server) handleVaultSearch(ctx context.Context, req *mcp.CallToolRequest, input vaultSearchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return textResult("Error: query is required."), nil, nil
	}
	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	vec, err := s.Embedder.Embed(input.Query)
	if err != nil {
		return textResult(fmt.Sprintf("Embedding failed: %v", err)), nil, nil
	}

	var filter *knowledge.Filter
	if input.DocType != "" {
		filter = &knowledge.Filter{DocType: input.DocType}
	}

	scored, err := s.Vault.Search(vec, topK, filter)
	if err != nil {
		return textResult(fmt.Sprintf("Search failed: %v", err)), nil, nil
	}

	results := make([]vaultSearchResult, 0, len(scored))
	for _, sc := range scored {
		results = append(results, vaultSearchResult{
			Path:    sc.DocPath,
			Content: sc.Chunk.Content,
			Score:   sc.Score,
		})
	}
	data, _ := json.MarshalIndent(results, "", "  ")
	return textResult(string(data)), results, nil
}

type councilAskInput struct {
	SessionID string `json:"session_id" jsonschema:"Opaque session identifier"`
	Query     string `json:"query" jsonschema:"The user's question, in plaintext"`
}

type councilAskOutput struct {
	Outcome        string         `json:"outcome"`
	Answer         string         `json:"answer,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Rounds         int            `json:"rounds"`
	RedactionStats map[string]int `json:"redaction_stats"`
}

func (s *Server) handleCouncilAsk(ctx context.Context, req *mcp.CallToolRequest, input councilAskInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return textResult("Error: session_id is required."), nil, nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return textResult("Error: query is required."), nil, nil
	}

	resp, err := s.Council.Ask(ctx, input.SessionID, input.Query, nil)
	if err != nil {
		return textResult(fmt.Sprintf("Council query failed: %v", err)), nil, nil
	}

	out := councilAskOutput{
		Outcome:        string(resp.Outcome),
		Answer:         resp.Answer,
		Reason:         resp.Reason,
		Rounds:         resp.Rounds,
		RedactionStats: resp.RedactionStats,
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return textResult(string(data)), out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
