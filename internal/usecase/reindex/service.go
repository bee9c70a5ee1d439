// Package reindex rebuilds the vector index from the stored corpus. Each
// rebuild produces a fresh generation and swaps the published pointer only
// after the new generation is complete, so readers never see a partial index
// and a crash mid-rebuild leaves the previous one queryable.
package reindex

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
	"github.com/tessellate-io/lectern/internal/metrics"
)

// Config tunes the rebuild.
type Config struct {
	// WindowSize is the target window length in characters.
	WindowSize int
	// WindowOverlap is how many characters adjacent windows share.
	WindowOverlap int
	// Workers bounds concurrent embedding calls.
	Workers int
}

// Stats summarizes one rebuild.
type Stats struct {
	Chunks     int
	Entries    int
	Generation string
}

// Service orchestrates rebuilds.
type Service struct {
	chunks   ChunkSource
	embedder Embedder
	index    Index
	newGen   func() string
	cfg      Config
	logger   *zap.Logger
}

// New creates a reindex service. newGen produces fresh generation ids.
func New(chunks ChunkSource, embedder Embedder, index Index, newGen func() string, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{
		chunks:   chunks,
		embedder: embedder,
		index:    index,
		newGen:   newGen,
		cfg:      cfg,
		logger:   logger,
	}
}

// Rebuild builds and publishes a new index generation, then drops the one it
// replaced. Endmatter chunks never enter the index.
func (s *Service) Rebuild(ctx context.Context) (Stats, error) {
	chunks, err := s.chunks.GetAll(ctx, false)
	if err != nil {
		return Stats{}, fmt.Errorf("load corpus: %w", err)
	}

	entries, err := s.embedWindows(ctx, chunks)
	if err != nil {
		return Stats{}, err
	}

	generation := s.newGen()
	s.logger.Info("building index generation",
		zap.String("generation", generation),
		zap.Int("chunks", len(chunks)),
		zap.Int("entries", len(entries)),
	)

	if err := s.index.WriteEntries(ctx, generation, entries); err != nil {
		return Stats{}, fmt.Errorf("write generation %s: %w", generation, err)
	}
	if err := s.index.CreateGeneration(ctx, generation); err != nil {
		return Stats{}, fmt.Errorf("create generation %s: %w", generation, err)
	}

	previous, err := s.index.Publish(ctx, generation)
	if err != nil {
		return Stats{}, fmt.Errorf("publish generation %s: %w", generation, err)
	}

	if previous != "" && previous != generation {
		if err := s.index.DropGeneration(ctx, previous); err != nil {
			// The new generation is live; stale keys are an operational
			// cleanup, not a rebuild failure.
			s.logger.Warn("Failed to drop previous generation",
				zap.String("generation", previous), zap.Error(err))
		}
	}

	metrics.IndexEntriesTotal.Set(float64(len(entries)))

	return Stats{Chunks: len(chunks), Entries: len(entries), Generation: generation}, nil
}

// embedWindows windows every chunk and embeds the windows with a bounded
// worker pool, preserving input order.
func (s *Service) embedWindows(ctx context.Context, chunks []domain.Chunk) ([]domain.IndexEntry, error) {
	var pending []domain.IndexEntry
	for i := range chunks {
		c := &chunks[i]
		for w, text := range splitWindows(c.Text(), s.cfg.WindowSize, s.cfg.WindowOverlap) {
			pending = append(pending, domain.IndexEntry{
				Fingerprint: c.Fingerprint(),
				Window:      w,
				Text:        text,
				Metadata:    c.Metadata(),
			})
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				emb, err := s.embedder.Embed(ctx, pending[i].Text)
				if err != nil {
					fail(fmt.Errorf("embed window %s:%d: %w", pending[i].Fingerprint, pending[i].Window, err))
					return
				}
				pending[i].Vector = emb.Embedding
			}
		}()
	}

	for i := range pending {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

// splitWindows cuts text into spans of at most size characters where
// adjacent spans share overlap characters. Text at most size long yields a
// single window.
func splitWindows(text string, size, overlap int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var windows []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end >= len(text) {
			windows = append(windows, text[start:])
			break
		}
		windows = append(windows, text[start:end])
	}
	return windows
}
