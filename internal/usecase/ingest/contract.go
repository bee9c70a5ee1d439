package ingest

import (
	"context"

	"github.com/tessellate-io/lectern/internal/domain"
	"github.com/tessellate-io/lectern/internal/etl"
)

// ChunkStore persists normalized chunks.
type ChunkStore interface {
	PutMany(ctx context.Context, chunks []domain.Chunk) error
}

// MarkdownSource normalizes one markdown lecture page.
type MarkdownSource interface {
	Normalize(ctx context.Context, corpus *etl.MarkdownCorpus, lec etl.Lecture) ([]etl.RawChunk, error)
}

// PaperSource normalizes one academic PDF.
type PaperSource interface {
	Normalize(ctx context.Context, paper etl.PaperInfo) ([]etl.RawChunk, error)
}

// VideoSource normalizes one video transcript.
type VideoSource interface {
	Normalize(ctx context.Context, video etl.VideoInfo) ([]etl.RawChunk, error)
}
