// Package ingest runs the corpus ETL: a worker pool normalizes the manifest's
// source documents into chunks, failures are collected per document, and the
// surviving chunks are written to the document store in one batched pass.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
	"github.com/tessellate-io/lectern/internal/etl"
	"github.com/tessellate-io/lectern/internal/metrics"
)

// Config tunes ingestion.
type Config struct {
	// Workers bounds concurrent document fetches.
	Workers int
}

// Failure records one document that could not be ingested.
type Failure struct {
	Kind etl.Kind
	Ref  string
	Err  error
}

// Stats summarizes one ingestion run. A run with failures still succeeds;
// the failed documents are simply absent from the corpus.
type Stats struct {
	Documents int
	Chunks    int
	Failures  []Failure
}

// job normalizes one source document.
type job struct {
	kind etl.Kind
	ref  string
	run  func(ctx context.Context) ([]etl.RawChunk, error)
}

// Service orchestrates ingestion runs.
type Service struct {
	store    ChunkStore
	markdown MarkdownSource
	papers   PaperSource
	videos   VideoSource
	cfg      Config
	logger   *zap.Logger
}

// New creates an ingest service.
func New(store ChunkStore, markdown MarkdownSource, papers PaperSource, videos VideoSource, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{
		store:    store,
		markdown: markdown,
		papers:   papers,
		videos:   videos,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run ingests every document the manifest names. One failing document never
// aborts the run; its failure is recorded and the rest proceed.
func (s *Service) Run(ctx context.Context, m *etl.Manifest) (Stats, error) {
	jobs := s.buildJobs(m)

	var (
		mu       sync.Mutex
		chunks   []domain.Chunk
		failures []Failure
	)

	jobCh := make(chan job)
	var wg sync.WaitGroup

	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				s.runJob(ctx, j, &mu, &chunks, &failures)
			}
		}()
	}

	for _, j := range jobs {
		select {
		case jobCh <- j:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	if err := s.store.PutMany(ctx, chunks); err != nil {
		return Stats{}, fmt.Errorf("store chunks: %w", err)
	}

	s.logger.Info("ingestion complete",
		zap.Int("documents", len(jobs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("failed", len(failures)),
	)

	return Stats{Documents: len(jobs), Chunks: len(chunks), Failures: failures}, nil
}

func (s *Service) runJob(ctx context.Context, j job, mu *sync.Mutex, chunks *[]domain.Chunk, failures *[]Failure) {
	raws, err := j.run(ctx)
	if err == nil {
		var enriched []domain.Chunk
		enriched, err = etl.Enrich(raws)
		if err == nil {
			metrics.IngestDocumentsTotal.WithLabelValues(string(j.kind), "ok").Inc()
			metrics.IngestChunksTotal.WithLabelValues(string(j.kind)).Add(float64(len(enriched)))

			mu.Lock()
			*chunks = append(*chunks, enriched...)
			mu.Unlock()
			return
		}
	}

	metrics.IngestDocumentsTotal.WithLabelValues(string(j.kind), "failed").Inc()
	s.logger.Warn("Failed to ingest document",
		zap.String("kind", string(j.kind)),
		zap.String("ref", j.ref),
		zap.Error(err),
	)

	mu.Lock()
	*failures = append(*failures, Failure{Kind: j.kind, Ref: j.ref, Err: err})
	mu.Unlock()
}

func (s *Service) buildJobs(m *etl.Manifest) []job {
	var jobs []job

	if m.Markdown != nil {
		corpus := m.Markdown
		for _, lec := range corpus.Lectures {
			lec := lec
			jobs = append(jobs, job{
				kind: etl.KindMarkdown,
				ref:  lec.Slug,
				run: func(ctx context.Context) ([]etl.RawChunk, error) {
					return s.markdown.Normalize(ctx, corpus, lec)
				},
			})
		}
	}

	for _, paper := range m.Papers {
		paper := paper
		jobs = append(jobs, job{
			kind: etl.KindPDF,
			ref:  paper.URL,
			run: func(ctx context.Context) ([]etl.RawChunk, error) {
				return s.papers.Normalize(ctx, paper)
			},
		})
	}

	for _, video := range m.Videos {
		video := video
		jobs = append(jobs, job{
			kind: etl.KindVideo,
			ref:  video.ID,
			run: func(ctx context.Context) ([]etl.RawChunk, error) {
				return s.videos.Normalize(ctx, video)
			},
		})
	}

	return jobs
}
