package lectern

import (
	"context"
	"errors"
	"testing"

	"github.com/tessellate-io/lectern/internal/domain"
)

func TestNew_NoAddress(t *testing.T) {
	_, err := New(WithOpenAI("sk-test", ""))
	if err == nil {
		t.Fatal("expected error when no address provided")
	}
}

func TestNew_NoCredentials(t *testing.T) {
	_, err := New(WithRedis([]string{"localhost:6379"}, ""))
	if err == nil {
		t.Fatal("expected error when no OpenAI key and no custom transports")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &clientConfig{}
	cfg.applyDefaults()

	if cfg.embeddingModel == "" || cfg.embeddingDims <= 0 {
		t.Errorf("embedding defaults not applied: %q/%d", cfg.embeddingModel, cfg.embeddingDims)
	}
	if cfg.queryK != 6 || cfg.sourceLimit != 3 {
		t.Errorf("retrieval defaults: queryK=%d sourceLimit=%d", cfg.queryK, cfg.sourceLimit)
	}
	if cfg.keyPrefix != "lectern:" {
		t.Errorf("key prefix default: %q", cfg.keyPrefix)
	}
	if cfg.logger == nil {
		t.Error("logger default not applied")
	}
}

func TestOptions_Override(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithRedis([]string{"redis-1:6379"}, "pw"),
		WithOpenAI("sk-test", "https://proxy.local/v1"),
		WithEmbeddingModel("text-embedding-3-large", 3072),
		WithCompletionModel("gpt-4.1", 512),
		WithRetrieval(10, 5, 0.5),
		WithKeyPrefix("corpus:"),
	} {
		o(cfg)
	}
	cfg.applyDefaults()

	if cfg.addrs[0] != "redis-1:6379" || cfg.password != "pw" {
		t.Errorf("redis option: %v/%q", cfg.addrs, cfg.password)
	}
	if cfg.embeddingDims != 3072 {
		t.Errorf("embedding dims: %d", cfg.embeddingDims)
	}
	if cfg.llmModel != "gpt-4.1" || cfg.maxTokens != 512 {
		t.Errorf("llm option: %q/%d", cfg.llmModel, cfg.maxTokens)
	}
	if cfg.queryK != 10 || cfg.sourceLimit != 5 || cfg.minScore != 0.5 {
		t.Errorf("retrieval option: %d/%d/%g", cfg.queryK, cfg.sourceLimit, cfg.minScore)
	}
	if cfg.keyPrefix != "corpus:" {
		t.Errorf("key prefix: %q", cfg.keyPrefix)
	}
}

type stubAnswerer struct {
	ans domain.Answer
	err error
}

func (s *stubAnswerer) Answer(_ context.Context, _, _ string) (domain.Answer, error) {
	return s.ans, s.err
}

func TestClientAnswer(t *testing.T) {
	c := &Client{answers: &stubAnswerer{ans: domain.Answer{
		Text:    "Gradient accumulation.",
		Sources: []string{"https://example.com/doc#batching"},
	}}}

	got, err := c.Answer(context.Background(), "how do I fit larger batches?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "Gradient accumulation." {
		t.Errorf("text: %q", got.Text)
	}
	if len(got.Sources) != 1 {
		t.Errorf("sources: %v", got.Sources)
	}
}

func TestClientAnswer_Error(t *testing.T) {
	c := &Client{answers: &stubAnswerer{err: domain.ErrIndexUnavailable}}

	if _, err := c.Answer(context.Background(), "anything"); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}
