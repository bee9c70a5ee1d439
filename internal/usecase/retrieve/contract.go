package retrieve

import (
	"context"

	"github.com/tessellate-io/lectern/internal/domain"
)

// Embedder turns a question into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index runs KNN search over the published vector index generation.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error)
}
