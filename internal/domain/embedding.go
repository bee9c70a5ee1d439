package domain

import "context"

// EmbeddingResult holds a vector and the token usage of the call that
// produced it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text. The same embedder construction must be used at
// index build time and query time; mixing models corrupts retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Completer invokes a language model on a fully rendered prompt and returns
// the raw reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// HealthChecker is implemented by transports that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
