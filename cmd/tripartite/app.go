package main

import (
	"fmt"
	"os"

	"github.com/tripartite-ai/consensus-core/internal/agent"
	"github.com/tripartite-ai/consensus-core/internal/config"
	"github.com/tripartite-ai/consensus-core/internal/council"
	"github.com/tripartite-ai/consensus-core/internal/embedding"
	"github.com/tripartite-ai/consensus-core/internal/inference"
	"github.com/tripartite-ai/consensus-core/internal/knowledge"
	"github.com/tripartite-ai/consensus-core/internal/redactor"
	"github.com/tripartite-ai/consensus-core/internal/tokenvault"
)

// configPath resolves the TOML config file to load: $TRIPARTITE_CONFIG, or
// the conventional ".tripartite/config.toml" relative to the working
// directory if it exists, or no file at all (built-in defaults apply).
func configPath() string {
	if v := os.Getenv("TRIPARTITE_CONFIG"); v != "" {
		return v
	}
	const defaultPath = ".tripartite/config.toml"
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}
	return ""
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openTokenVault opens the token vault at a path derived from the
// knowledge vault path, keeping the two SQLite files side by side under
// the same data directory (e.g. vault.db and vault.db.tokens.db).
func openTokenVault(cfg config.Config) (*tokenvault.Vault, error) {
	path := cfg.Vault.Path + ".tokens.db"
	if cfg.Vault.Path == ":memory:" {
		path = ":memory:"
	}
	v, err := tokenvault.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token vault: %w", err)
	}
	return v, nil
}

func buildRedactor(cfg config.Config) (*redactor.Redactor, *tokenvault.Vault, error) {
	tv, err := openTokenVault(cfg)
	if err != nil {
		return nil, nil, err
	}
	r, err := redactor.New(cfg.Redactor, tv)
	if err != nil {
		tv.Close()
		return nil, nil, fmt.Errorf("build redactor: %w", err)
	}
	return r, tv, nil
}

// buildEmbedder wires the default embedder, the deterministic hash-based
// stand-in, unless $TRIPARTITE_EMBED_URL points at a local embedding
// server.
func buildEmbedder(cfg config.Config) (embedding.Embedder, error) {
	if url := os.Getenv("TRIPARTITE_EMBED_URL"); url != "" {
		model := os.Getenv("TRIPARTITE_EMBED_MODEL")
		return embedding.NewHTTPEmbedder(url, model, cfg.Vault.EmbeddingDim)
	}
	return embedding.NewHashEmbedder(cfg.Vault.EmbeddingDim), nil
}

func buildKnowledgeVault(cfg config.Config) (*knowledge.Vault, embedding.Embedder, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build embedder: %w", err)
	}
	v, err := knowledge.Open(cfg.Vault.Path, cfg.Vault, cfg.Chunk, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("open knowledge vault: %w", err)
	}
	return v, embedder, nil
}

// buildInferenceCapability wires the generation backend: the deterministic
// stub by default, unless $TRIPARTITE_INFERENCE_URL points at a local
// model server.
func buildInferenceCapability() inference.Capability {
	if url := os.Getenv("TRIPARTITE_INFERENCE_URL"); url != "" {
		model := os.Getenv("TRIPARTITE_INFERENCE_MODEL")
		return inference.NewHTTPCapability(url, model)
	}
	return &inference.StubCapability{}
}

// app bundles every handle a subcommand needs; its Close method releases
// them in reverse-acquisition order. Callers must defer Close.
type app struct {
	cfg      config.Config
	redactor *redactor.Redactor
	tokens   *tokenvault.Vault
	vault    *knowledge.Vault
	embedder embedding.Embedder
	cap      inference.Capability
	council  *council.Council
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	r, tv, err := buildRedactor(cfg)
	if err != nil {
		return nil, err
	}

	kv, embedder, err := buildKnowledgeVault(cfg)
	if err != nil {
		tv.Close()
		return nil, err
	}

	capability := buildInferenceCapability()

	pathos := agent.NewPathos("pathos-1", capability)
	logos := agent.NewLogos("logos-1", capability, embedder, kv)
	ethos := agent.NewEthos("ethos-1", capability, cfg.Vault.Path+".audit")

	engine := council.BuildEngine(pathos, logos, ethos, cfg.Consensus)
	c := council.New(r, engine)

	return &app{
		cfg:      cfg,
		redactor: r,
		tokens:   tv,
		vault:    kv,
		embedder: embedder,
		cap:      capability,
		council:  c,
	}, nil
}

func (a *app) Close() {
	if a.vault != nil {
		a.vault.Close()
	}
	if a.tokens != nil {
		a.tokens.Close()
	}
}
