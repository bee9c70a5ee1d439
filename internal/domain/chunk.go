package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Metadata keys shared across source types.
const (
	MetaSource       = "source"
	MetaTitle        = "title"
	MetaHeading      = "heading"
	MetaChapterTitle = "chapter-title"
	MetaFullTitle    = "full-title"
	MetaPage         = "page"
	MetaArxivID      = "arxiv_id"
	MetaDate         = "date"
)

// Chunk is the atomic retrievable unit: a bounded span of source text with
// provenance metadata. Its fingerprint is the stable identity used for
// idempotent upserts into the document store and the vector index.
type Chunk struct {
	text        string
	metadata    map[string]string
	fingerprint string
	exclude     bool
}

// NewChunk validates and creates a Chunk. Text must be non-empty and
// metadata must carry a source entry; the fingerprint is computed eagerly so
// a constructed Chunk is always addressable.
func NewChunk(text string, metadata map[string]string) (Chunk, error) {
	if text == "" {
		return Chunk{}, fmt.Errorf("%w: text is required", ErrInvalidChunk)
	}
	if metadata[MetaSource] == "" {
		return Chunk{}, fmt.Errorf("%w: metadata.source is required", ErrInvalidChunk)
	}

	return Chunk{
		text:        text,
		metadata:    cloneStringMap(metadata),
		fingerprint: Fingerprint(text),
	}, nil
}

// ReconstructChunk creates a Chunk without validation (storage hydration).
func ReconstructChunk(text string, metadata map[string]string, fingerprint string, exclude bool) Chunk {
	return Chunk{text: text, metadata: metadata, fingerprint: fingerprint, exclude: exclude}
}

// Fingerprint returns the hex SHA-256 digest of text. Identical text always
// yields an identical fingerprint regardless of source type.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Metadata returns the provenance metadata.
func (c *Chunk) Metadata() map[string]string { return c.metadata }

// Fingerprint returns the content hash identity.
func (c *Chunk) Fingerprint() string { return c.fingerprint }

// Exclude reports whether the chunk is omitted from retrieval.
func (c *Chunk) Exclude() bool { return c.exclude }

// Source returns the source URI from metadata.
func (c *Chunk) Source() string { return c.metadata[MetaSource] }

// Title returns the document title from metadata, if any.
func (c *Chunk) Title() string { return c.metadata[MetaTitle] }

// WithExclude returns a copy with the exclusion flag set.
func (c *Chunk) WithExclude(exclude bool) Chunk {
	out := *c
	out.exclude = exclude
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
