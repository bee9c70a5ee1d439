package reindex

import (
	"context"

	"github.com/tessellate-io/lectern/internal/domain"
)

// ChunkSource provides the stored corpus.
type ChunkSource interface {
	GetAll(ctx context.Context, includeExcluded bool) ([]domain.Chunk, error)
}

// Embedder turns window text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index is the generation lifecycle of the vector index.
type Index interface {
	WriteEntries(ctx context.Context, generation string, entries []domain.IndexEntry) error
	CreateGeneration(ctx context.Context, generation string) error
	Publish(ctx context.Context, generation string) (previous string, err error)
	DropGeneration(ctx context.Context, generation string) error
}
