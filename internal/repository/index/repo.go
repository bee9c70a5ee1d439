// Package index manages the vector search index as immutable generations.
// A rebuild writes a fresh generation of vector hashes, creates an FT index
// over them, and atomically publishes the generation pointer. Readers always
// query the published generation, so a crash mid-rebuild leaves the previous
// generation intact and queryable.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tessellate-io/lectern/internal/db"
	"github.com/tessellate-io/lectern/internal/domain"
)

// Hash field names. __content and vector are indexed; the rest travel along
// for result reconstruction.
const (
	fieldContent     = "__content"
	fieldVector      = "vector"
	fieldMetadata    = "metadata"
	fieldFingerprint = "fingerprint"
)

const defaultBatchSize = 250

// store is the database surface this repository needs.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	DelMulti(ctx context.Context, keys []string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// Options tunes index construction.
type Options struct {
	KeyPrefix   string
	Dim         int
	HNSWM       int
	EFConstruct int
	BatchSize   int
}

// Repository stores vector hashes under <prefix>vec:<generation>:<fp>:<n>
// and the published generation under <prefix>index:current.
type Repository struct {
	store store
	opts  Options
}

// New creates an index repository.
func New(s store, opts Options) *Repository {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Repository{store: s, opts: opts}
}

// NewGeneration returns a fresh generation id. Millisecond timestamps order
// generations and keep keys readable.
func NewGeneration() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// WriteEntries writes vector hashes for a generation in pipelined batches.
func (r *Repository) WriteEntries(ctx context.Context, generation string, entries []domain.IndexEntry) error {
	for start := 0; start < len(entries); start += r.opts.BatchSize {
		end := start + r.opts.BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		items := make([]db.HashSetItem, 0, end-start)
		for _, e := range entries[start:end] {
			meta, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata %s: %w", e.Fingerprint, err)
			}
			items = append(items, db.HashSetItem{
				Key: r.entryKey(generation, e.Fingerprint, e.Window),
				Fields: map[string]string{
					fieldContent:     e.Text,
					fieldVector:      db.VectorToBytes(e.Vector),
					fieldMetadata:    string(meta),
					fieldFingerprint: e.Fingerprint,
				},
			})
		}

		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("write index entries: %w", err)
		}
	}
	return nil
}

// CreateGeneration creates the FT index over a generation's hash prefix.
func (r *Repository) CreateGeneration(ctx context.Context, generation string) error {
	def := &db.IndexDefinition{
		Name:     r.indexName(generation),
		Prefixes: []string{r.vecPrefix(generation)},
		Fields: []db.IndexField{
			{Name: fieldContent, Type: db.IndexFieldText},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.opts.Dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.opts.HNSWM,
				VectorEFConstruct: r.opts.EFConstruct,
			},
		},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// Publish points readers at a generation and returns the one it replaced
// (empty when none was published).
func (r *Repository) Publish(ctx context.Context, generation string) (string, error) {
	previous, err := r.currentGeneration(ctx)
	if err != nil && !errors.Is(err, domain.ErrIndexUnavailable) {
		return "", err
	}

	if err := r.store.Set(ctx, r.pointerKey(), []byte(generation)); err != nil {
		return "", fmt.Errorf("publish generation %s: %w", generation, err)
	}
	return previous, nil
}

// DropGeneration removes a generation's FT index and vector hashes. Safe to
// call for generations that were never fully built.
func (r *Repository) DropGeneration(ctx context.Context, generation string) error {
	if generation == "" {
		return nil
	}

	if err := r.store.DropIndex(ctx, r.indexName(generation)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.indexName(generation), err)
	}

	keys, err := r.store.Scan(ctx, r.vecPrefix(generation)+"*")
	if err != nil {
		return fmt.Errorf("scan generation %s: %w", generation, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete generation %s: %w", generation, err)
	}
	return nil
}

// DropAll removes every generation and the published pointer.
func (r *Repository) DropAll(ctx context.Context) error {
	current, err := r.currentGeneration(ctx)
	if err != nil && !errors.Is(err, domain.ErrIndexUnavailable) {
		return err
	}
	if current != "" {
		if err := r.store.DropIndex(ctx, r.indexName(current)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", r.indexName(current), err)
		}
	}

	keys, err := r.store.Scan(ctx, r.opts.KeyPrefix+"vec:*")
	if err != nil {
		return fmt.Errorf("scan vectors: %w", err)
	}
	keys = append(keys, r.pointerKey())
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("drop vectors: %w", err)
	}
	return nil
}

// Search runs a KNN query against the published generation and reconstructs
// the matched chunks. Returns domain.ErrIndexUnavailable when no generation
// has been published yet.
func (r *Repository) Search(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	generation, err := r.currentGeneration(ctx)
	if err != nil {
		return nil, err
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(generation),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldContent, fieldMetadata, fieldFingerprint, "__vector_score"},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("generation %s: %w", generation, domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, len(res.Entries))
	for _, entry := range res.Entries {
		text := entry.Fields[fieldContent]
		if text == "" {
			continue
		}

		var meta map[string]string
		if raw := entry.Fields[fieldMetadata]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &meta); err != nil {
				return nil, fmt.Errorf("unmarshal metadata %s: %w", entry.Key, err)
			}
		}

		chunk := domain.ReconstructChunk(text, meta, entry.Fields[fieldFingerprint], false)
		results = append(results, domain.RetrievalResult{Chunk: chunk, Score: entry.Score})
	}
	return results, nil
}

// Size returns the number of indexed entries in the published generation.
func (r *Repository) Size(ctx context.Context) (int, error) {
	generation, err := r.currentGeneration(ctx)
	if err != nil {
		return 0, err
	}

	n, err := r.store.SearchCount(ctx, r.indexName(generation))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, fmt.Errorf("generation %s: %w", generation, domain.ErrIndexUnavailable)
		}
		return 0, fmt.Errorf("index size: %w", err)
	}
	return n, nil
}

func (r *Repository) currentGeneration(ctx context.Context) (string, error) {
	raw, err := r.store.Get(ctx, r.pointerKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrIndexUnavailable
		}
		return "", fmt.Errorf("read generation pointer: %w", err)
	}
	if len(raw) == 0 {
		return "", domain.ErrIndexUnavailable
	}
	return string(raw), nil
}

func (r *Repository) pointerKey() string {
	return r.opts.KeyPrefix + "index:current"
}

func (r *Repository) indexName(generation string) string {
	return r.opts.KeyPrefix + "index:" + generation
}

func (r *Repository) vecPrefix(generation string) string {
	return r.opts.KeyPrefix + "vec:" + generation + ":"
}

func (r *Repository) entryKey(generation, fingerprint string, window int) string {
	return fmt.Sprintf("%s%s:%d", r.vecPrefix(generation), fingerprint, window)
}
