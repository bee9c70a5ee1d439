// Package chunk persists normalized chunks as JSON documents keyed by
// content fingerprint, which makes corpus-wide deduplication a plain
// idempotent upsert.
package chunk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tessellate-io/lectern/internal/db"
	"github.com/tessellate-io/lectern/internal/domain"
)

const defaultBatchSize = 250

// store is the database surface this repository needs.
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repository stores chunks under <prefix>chunk:<fingerprint>.
type Repository struct {
	store     store
	keyPrefix string
	batchSize int
}

// New creates a chunk repository. batchSize bounds the number of documents
// written per pipelined round trip.
func New(s store, keyPrefix string, batchSize int) *Repository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Repository{store: s, keyPrefix: keyPrefix, batchSize: batchSize}
}

type chunkDoc struct {
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata"`
	Fingerprint string            `json:"fingerprint"`
	Exclude     bool              `json:"exclude"`
}

// PutMany upserts chunks in batches. Chunks with identical text share a
// fingerprint and therefore a key, so re-ingesting a document or ingesting
// duplicated text across documents never creates a second copy.
func (r *Repository) PutMany(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += r.batchSize {
		end := start + r.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		items := make([]db.JSONSetItem, 0, end-start)
		for _, c := range chunks[start:end] {
			data, err := json.Marshal(chunkDoc{
				Text:        c.Text(),
				Metadata:    c.Metadata(),
				Fingerprint: c.Fingerprint(),
				Exclude:     c.Exclude(),
			})
			if err != nil {
				return fmt.Errorf("marshal chunk %s: %w", c.Fingerprint(), err)
			}
			items = append(items, db.JSONSetItem{Key: r.key(c.Fingerprint()), Path: "$", Data: data})
		}

		if err := r.store.JSONSetMulti(ctx, items); err != nil {
			return fmt.Errorf("put chunk batch: %w", err)
		}
	}
	return nil
}

// Get fetches a single chunk by fingerprint.
func (r *Repository) Get(ctx context.Context, fingerprint string) (domain.Chunk, error) {
	data, err := r.store.JSONGet(ctx, r.key(fingerprint))
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("get chunk %s: %w", fingerprint, err)
	}
	return decodeChunk(data)
}

// GetAll returns every stored chunk. When includeExcluded is false,
// endmatter chunks are filtered out.
func (r *Repository) GetAll(ctx context.Context, includeExcluded bool) ([]domain.Chunk, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"chunk:*")
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	docs, err := r.store.JSONGetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(docs))
	for i, data := range docs {
		if data == nil {
			continue
		}
		c, err := decodeChunk(data)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", keys[i], err)
		}
		if !includeExcluded && c.Exclude() {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (r *Repository) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"chunk:*")
	if err != nil {
		return 0, fmt.Errorf("scan chunks: %w", err)
	}
	return len(keys), nil
}

// Drop removes every stored chunk.
func (r *Repository) Drop(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"chunk:*")
	if err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("drop chunks: %w", err)
	}
	return nil
}

func (r *Repository) key(fingerprint string) string {
	return r.keyPrefix + "chunk:" + fingerprint
}

// decodeChunk parses a stored chunk document. JSONPath queries wrap the
// root object in a one-element array; both shapes are accepted.
func decodeChunk(data []byte) (domain.Chunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return domain.Chunk{}, fmt.Errorf("unmarshal chunk array: %w", err)
		}
		if len(arr) == 0 {
			return domain.Chunk{}, fmt.Errorf("unmarshal chunk: empty result")
		}
		trimmed = arr[0]
	}

	var doc chunkDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return domain.Chunk{}, fmt.Errorf("unmarshal chunk: %w", err)
	}
	return domain.ReconstructChunk(doc.Text, doc.Metadata, doc.Fingerprint, doc.Exclude), nil
}
