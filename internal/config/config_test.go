package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := Default()
	cfg.Consensus.Weights.Pathos = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}
}

func TestValidateRejectsZeroMaxRounds(t *testing.T) {
	cfg := Default()
	cfg.Consensus.MaxRounds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_rounds < 1")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.Consensus.Threshold != Default().Consensus.Threshold {
		t.Fatal("expected default threshold")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRIPARTITE_THRESHOLD", "0.5")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Consensus.Threshold != 0.5 {
		t.Fatalf("expected env override to apply, got %v", cfg.Consensus.Threshold)
	}
}
