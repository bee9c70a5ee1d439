// Package etl normalizes heterogeneous source documents (markdown lecture
// pages, academic PDFs, video transcripts) into provenance-tagged chunks
// ready for the document store.
package etl

import (
	"fmt"

	"github.com/tessellate-io/lectern/internal/domain"
)

// Kind names a source document type.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindPDF      Kind = "pdf"
	KindVideo    Kind = "video"
)

// RawChunk is a normalizer's output before enrichment: text, partial
// metadata, and the endmatter verdict of the originating normalizer.
type RawChunk struct {
	Text      string
	Metadata  map[string]string
	Endmatter bool
}

// Enrich converts raw chunks into validated domain chunks: the fingerprint
// is computed from the text and the exclusion flag is set iff the normalizer
// flagged the chunk as endmatter. Pure and deterministic; identical text
// always yields an identical fingerprint regardless of source type.
func Enrich(raws []RawChunk) ([]domain.Chunk, error) {
	chunks := make([]domain.Chunk, 0, len(raws))
	for i, raw := range raws {
		c, err := domain.NewChunk(raw.Text, raw.Metadata)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		if raw.Endmatter {
			c = c.WithExclude(true)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
