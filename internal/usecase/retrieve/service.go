// Package retrieve selects the chunks most similar to a question.
package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
)

// Config tunes retrieval.
type Config struct {
	// QueryK is how many neighbours to fetch from the index.
	QueryK int
	// SourceLimit caps how many of them survive postprocessing.
	SourceLimit int
	// MinScore is the similarity floor; results below it are discarded.
	MinScore float64
}

// Service embeds a question and postprocesses the KNN results: sort by
// decreasing similarity, drop everything below the floor, cap the survivors.
type Service struct {
	embedder Embedder
	index    Index
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(embedder Embedder, index Index, cfg Config, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, index: index, cfg: cfg, logger: logger}
}

// Retrieve returns the best-matching chunks for a question in decreasing
// similarity order. An empty result with a nil error means nothing cleared
// the similarity floor; the caller decides what that means.
func (s *Service) Retrieve(ctx context.Context, question string) ([]domain.RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := s.index.Search(ctx, emb.Embedding, s.cfg.QueryK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	kept := results[:0]
	for _, r := range results {
		if r.Score < s.cfg.MinScore {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > s.cfg.SourceLimit {
		kept = kept[:s.cfg.SourceLimit]
	}

	s.logger.Debug("retrieval complete",
		zap.Int("candidates", len(results)),
		zap.Int("kept", len(kept)),
	)

	return kept, nil
}
