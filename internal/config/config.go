// Package config provides configuration for the tripartite consensus core.
// Loads from: env vars > .tripartite/config.toml > built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all core configuration, loaded from TOML + env.
type Config struct {
	Redactor  RedactorConfig  `toml:"redactor"`
	Consensus ConsensusConfig `toml:"consensus"`
	Vault     VaultConfig     `toml:"vault"`
	Chunk     ChunkConfig     `toml:"chunk"`
	Logos     LogosConfig     `toml:"logos"`
	Ethos     EthosConfig     `toml:"ethos"`
}

// RedactorConfig controls which pattern families the redactor applies and
// its resource limits.
type RedactorConfig struct {
	RedactEmails            bool `toml:"redact_emails"`
	RedactPhones            bool `toml:"redact_phones"`
	RedactSSN               bool `toml:"redact_ssn"`
	RedactCreditCards       bool `toml:"redact_credit_cards"`
	RedactAPIKeys           bool `toml:"redact_api_keys"`
	RedactGithubTokens      bool `toml:"redact_github_tokens"`
	RedactAWSKeys           bool `toml:"redact_aws_keys"`
	RedactPrivateKeys       bool `toml:"redact_private_keys"`
	RedactJWTs              bool `toml:"redact_jwts"`
	RedactIPv4              bool `toml:"redact_ipv4"`
	RedactIPv6              bool `toml:"redact_ipv6"`
	RedactURLs              bool `toml:"redact_urls"`
	RedactFilePaths         bool `toml:"redact_file_paths"`
	RedactConnectionStrings bool `toml:"redact_connection_strings"`
	MaxInputBytes           int  `toml:"max_input_bytes"`
	RegexTimeoutMs          int  `toml:"regex_timeout_ms"`
}

// ConsensusConfig controls the deliberation engine.
type ConsensusConfig struct {
	Threshold      float64        `toml:"threshold"`
	MaxRounds      int            `toml:"max_rounds"`
	Weights        Weights        `toml:"weights"`
	PhaseDeadlines PhaseDeadlines `toml:"phase_deadlines"`
}

// Weights are the per-agent contribution weights to the aggregate confidence.
// Must sum to 1.0.
type Weights struct {
	Pathos float64 `toml:"pathos"`
	Logos  float64 `toml:"logos"`
	Ethos  float64 `toml:"ethos"`
}

// PhaseDeadlines bounds how long each phase may run, in milliseconds.
type PhaseDeadlines struct {
	PathosMs int `toml:"pathos_ms"`
	LogosMs  int `toml:"logos_ms"`
	EthosMs  int `toml:"ethos_ms"`
}

// VaultConfig controls the Knowledge Vault.
type VaultConfig struct {
	Path         string `toml:"path"`
	EmbeddingDim int    `toml:"embedding_dim"`
	MaxScan      int    `toml:"max_scan"`
	OverFetch    int    `toml:"over_fetch"`
}

// ChunkConfig controls how documents are split before embedding.
type ChunkConfig struct {
	// Strategy is one of "paragraph", "sentence", "fixed".
	Strategy string `toml:"strategy"`
	// MinChunkFloor: documents no longer than this (in bytes) are emitted
	// as a single chunk rather than split further, regardless of strategy.
	MinChunkFloor int `toml:"min_chunk_floor"`
	// ParagraphOverlap is the character overlap between adjacent paragraph chunks.
	ParagraphOverlap int `toml:"paragraph_overlap"`
	// FixedSize and FixedOverlap apply only to the "fixed" strategy, both
	// measured in whitespace-delimited tokens (token-approximate, not a
	// real tokenizer).
	FixedSize    int `toml:"fixed_size"`
	FixedOverlap int `toml:"fixed_overlap"`
}

// LogosConfig controls the reasoning+RAG agent.
type LogosConfig struct {
	TopK                   int `toml:"top_k"`
	RetrievalQueryTermsMax int `toml:"retrieval_query_terms_max"`
}

// EthosConfig controls the verification agent.
type EthosConfig struct {
	// VetoPatternsPath, if set, is read once at load time only. Empty uses
	// the built-in veto table. Veto patterns are never reloaded mid-query.
	VetoPatternsPath string `toml:"veto_patterns_path"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Redactor: RedactorConfig{
			RedactEmails:            true,
			RedactPhones:            true,
			RedactSSN:               true,
			RedactCreditCards:       true,
			RedactAPIKeys:           true,
			RedactGithubTokens:      true,
			RedactAWSKeys:           true,
			RedactPrivateKeys:       true,
			RedactJWTs:              true,
			RedactIPv4:              true,
			RedactIPv6:              true,
			RedactURLs:              true,
			RedactFilePaths:         true,
			RedactConnectionStrings: true,
			MaxInputBytes:           500_000,
			RegexTimeoutMs:          100,
		},
		Consensus: ConsensusConfig{
			Threshold: 0.85,
			MaxRounds: 3,
			Weights:   Weights{Pathos: 0.25, Logos: 0.45, Ethos: 0.30},
			PhaseDeadlines: PhaseDeadlines{
				PathosMs: 2000,
				LogosMs:  10000,
				EthosMs:  3000,
			},
		},
		Vault: VaultConfig{
			Path:         "tripartite.db",
			EmbeddingDim: 256,
			MaxScan:      100_000,
			OverFetch:    3,
		},
		Chunk: ChunkConfig{
			Strategy:         "paragraph",
			MinChunkFloor:    200,
			ParagraphOverlap: 50,
			FixedSize:        200,
			FixedOverlap:     20,
		},
		Logos: LogosConfig{
			TopK:                   5,
			RetrievalQueryTermsMax: 12,
		},
		Ethos: EthosConfig{},
	}
}

// Load reads config.toml at path (if it exists), applies environment
// variable overrides, and validates the result. Missing files are not an
// error — the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides lets a handful of hot-path settings be overridden
// without a config file, for container/CI deployment.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TRIPARTITE_VAULT_PATH")); v != "" {
		cfg.Vault.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("TRIPARTITE_THRESHOLD")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Consensus.Threshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRIPARTITE_MAX_ROUNDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Consensus.MaxRounds = n
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside the consensus engine or vault.
func (c Config) Validate() error {
	sum := c.Consensus.Weights.Pathos + c.Consensus.Weights.Logos + c.Consensus.Weights.Ethos
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("consensus weights must sum to 1.0, got %.4f", sum)
	}
	if c.Consensus.MaxRounds < 1 {
		return fmt.Errorf("consensus.max_rounds must be >= 1, got %d", c.Consensus.MaxRounds)
	}
	if c.Redactor.MaxInputBytes <= 0 {
		return fmt.Errorf("redactor.max_input_bytes must be > 0, got %d", c.Redactor.MaxInputBytes)
	}
	if c.Redactor.RegexTimeoutMs <= 0 {
		return fmt.Errorf("redactor.regex_timeout_ms must be > 0, got %d", c.Redactor.RegexTimeoutMs)
	}
	if c.Vault.EmbeddingDim <= 0 {
		return fmt.Errorf("vault.embedding_dim must be > 0, got %d", c.Vault.EmbeddingDim)
	}
	if c.Vault.OverFetch < 1 {
		return fmt.Errorf("vault.over_fetch must be >= 1, got %d", c.Vault.OverFetch)
	}
	switch c.Chunk.Strategy {
	case "paragraph", "sentence", "fixed":
	default:
		return fmt.Errorf("chunk.strategy must be paragraph, sentence, or fixed, got %q", c.Chunk.Strategy)
	}
	if c.Chunk.MinChunkFloor < 0 {
		return fmt.Errorf("chunk.min_chunk_floor must be >= 0, got %d", c.Chunk.MinChunkFloor)
	}
	if c.Chunk.FixedSize <= 0 {
		return fmt.Errorf("chunk.fixed_size must be > 0, got %d", c.Chunk.FixedSize)
	}
	return nil
}
