package config

import (
	"testing"
)

func validBase() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validBase()

	if cfg.Retrieval.QueryK != 6 {
		t.Errorf("query_k default = %d, want 6", cfg.Retrieval.QueryK)
	}
	if cfg.Retrieval.SourceLimit != 3 {
		t.Errorf("source_limit default = %d, want 3", cfg.Retrieval.SourceLimit)
	}
	if cfg.Ingest.BatchSize != 250 {
		t.Errorf("batch_size default = %d, want 250", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.FetchRetries != 3 {
		t.Errorf("fetch_retries default = %d, want 3", cfg.Ingest.FetchRetries)
	}
	if cfg.Index.KeyPrefix != "lectern:" {
		t.Errorf("key_prefix default = %q", cfg.Index.KeyPrefix)
	}
	if cfg.Index.WindowOverlap >= cfg.Index.WindowSize {
		t.Error("default window overlap must be smaller than window size")
	}
	if cfg.LLM.MaxTokens != 256 {
		t.Errorf("llm.max_tokens default = %d, want 256", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("llm.temperature default = %g, want 0", cfg.LLM.Temperature)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validBase()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validBase()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_SourceLimitExceedsQueryK(t *testing.T) {
	cfg := validBase()
	cfg.Retrieval.QueryK = 3
	cfg.Retrieval.SourceLimit = 5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when source_limit > query_k")
	}
}

func TestValidate_MinScoreRange(t *testing.T) {
	cfg := validBase()
	cfg.Retrieval.MinScore = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min_score outside [0,1]")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LECTERN_TEST_KEY", "sk-12345")

	in := []byte("api_key: ${LECTERN_TEST_KEY}\nmodel: ${LECTERN_TEST_MODEL:-gpt-4o}")
	out := string(expandEnvVars(in))

	want := "api_key: sk-12345\nmodel: gpt-4o"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
