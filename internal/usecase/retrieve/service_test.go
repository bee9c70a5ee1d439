package retrieve

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

type mockIndex struct {
	results []domain.RetrievalResult
	err     error
	gotK    int
}

func (m *mockIndex) Search(_ context.Context, _ []float32, k int) ([]domain.RetrievalResult, error) {
	m.gotK = k
	return m.results, m.err
}

func resultOf(t *testing.T, text string, score float64) domain.RetrievalResult {
	t.Helper()
	c, err := domain.NewChunk(text, map[string]string{domain.MetaSource: "https://s/" + text})
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	return domain.RetrievalResult{Chunk: c, Score: score}
}

func newService(emb *mockEmbedder, idx *mockIndex) *Service {
	return New(emb, idx, Config{QueryK: 6, SourceLimit: 3, MinScore: 0.6}, zap.NewNop())
}

func TestRetrieve_SortsAndCaps(t *testing.T) {
	idx := &mockIndex{results: []domain.RetrievalResult{
		resultOf(t, "c", 0.7),
		resultOf(t, "a", 0.95),
		resultOf(t, "d", 0.65),
		resultOf(t, "b", 0.9),
		resultOf(t, "e", 0.62),
	}}
	svc := newService(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, idx)

	got, err := svc.Retrieve(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.gotK != 6 {
		t.Errorf("k: got %d", idx.gotK)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if got[i].Chunk.Text() != want {
			t.Errorf("result %d: got %q, want %q", i, got[i].Chunk.Text(), want)
		}
	}
}

func TestRetrieve_FiltersBelowFloor(t *testing.T) {
	idx := &mockIndex{results: []domain.RetrievalResult{
		resultOf(t, "good", 0.8),
		resultOf(t, "weak", 0.3),
	}}
	svc := newService(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, idx)

	got, err := svc.Retrieve(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.Text() != "good" {
		t.Fatalf("expected only the good result, got %+v", got)
	}
}

func TestRetrieve_EmptyResultIsNotAnError(t *testing.T) {
	idx := &mockIndex{results: []domain.RetrievalResult{resultOf(t, "weak", 0.1)}}
	svc := newService(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, idx)

	got, err := svc.Retrieve(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestRetrieve_EmptyQuestion(t *testing.T) {
	svc := newService(&mockEmbedder{}, &mockIndex{})

	_, err := svc.Retrieve(context.Background(), "   ")
	if !errors.Is(err, domain.ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestRetrieve_EmbedderError(t *testing.T) {
	svc := newService(&mockEmbedder{err: domain.ErrEmbeddingProvider}, &mockIndex{})

	_, err := svc.Retrieve(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestRetrieve_IndexUnavailable(t *testing.T) {
	svc := newService(
		&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}},
		&mockIndex{err: domain.ErrIndexUnavailable},
	)

	_, err := svc.Retrieve(context.Background(), "q")
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}
