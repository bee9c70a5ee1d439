package ingest

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
	"github.com/tessellate-io/lectern/internal/etl"
	"github.com/tessellate-io/lectern/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type mockStore struct {
	mu     sync.Mutex
	chunks []domain.Chunk
	err    error
}

func (m *mockStore) PutMany(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	return m.err
}

type mockMarkdown struct {
	err error
}

func (m *mockMarkdown) Normalize(_ context.Context, _ *etl.MarkdownCorpus, lec etl.Lecture) ([]etl.RawChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []etl.RawChunk{{
		Text:     "lecture " + lec.Slug,
		Metadata: map[string]string{domain.MetaSource: "https://md/" + lec.Slug},
	}}, nil
}

type mockPapers struct {
	err error
}

func (m *mockPapers) Normalize(_ context.Context, paper etl.PaperInfo) ([]etl.RawChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []etl.RawChunk{
		{Text: "page of " + paper.URL, Metadata: map[string]string{domain.MetaSource: paper.URL}},
		{Text: "refs of " + paper.URL, Metadata: map[string]string{domain.MetaSource: paper.URL}, Endmatter: true},
	}, nil
}

type mockVideos struct {
	err error
}

func (m *mockVideos) Normalize(_ context.Context, video etl.VideoInfo) ([]etl.RawChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []etl.RawChunk{{
		Text:     "transcript " + video.ID,
		Metadata: map[string]string{domain.MetaSource: "https://v/" + video.ID},
	}}, nil
}

func testManifest() *etl.Manifest {
	return &etl.Manifest{
		Markdown: &etl.MarkdownCorpus{
			WebsiteURLBase:  "https://site",
			MarkdownURLBase: "https://md",
			Lectures:        []etl.Lecture{{Title: "L1", Slug: "l1"}, {Title: "L2", Slug: "l2"}},
		},
		Papers: []etl.PaperInfo{{URL: "https://arxiv.org/pdf/1.pdf"}},
		Videos: []etl.VideoInfo{{ID: "v1", Title: "V"}},
	}
}

func TestRun_AllKinds(t *testing.T) {
	store := &mockStore{}
	svc := New(store, &mockMarkdown{}, &mockPapers{}, &mockVideos{}, Config{Workers: 3}, zap.NewNop())

	stats, err := svc.Run(context.Background(), testManifest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Documents != 4 {
		t.Errorf("documents: got %d", stats.Documents)
	}
	// 2 lectures + 2 pdf pages + 1 transcript
	if stats.Chunks != 5 {
		t.Errorf("chunks: got %d", stats.Chunks)
	}
	if len(stats.Failures) != 0 {
		t.Errorf("failures: %+v", stats.Failures)
	}
	if len(store.chunks) != 5 {
		t.Errorf("stored chunks: got %d", len(store.chunks))
	}
}

func TestRun_EndmatterFlagSurvives(t *testing.T) {
	store := &mockStore{}
	svc := New(store, &mockMarkdown{}, &mockPapers{}, &mockVideos{}, Config{Workers: 1}, zap.NewNop())

	manifest := &etl.Manifest{Papers: []etl.PaperInfo{{URL: "https://p/1.pdf"}}}
	if _, err := svc.Run(context.Background(), manifest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var excluded int
	for _, c := range store.chunks {
		if c.Exclude() {
			excluded++
		}
	}
	if excluded != 1 {
		t.Errorf("expected 1 excluded chunk, got %d", excluded)
	}
}

func TestRun_FailuresDoNotAbort(t *testing.T) {
	store := &mockStore{}
	svc := New(store, &mockMarkdown{}, &mockPapers{err: domain.ErrSourceFetch}, &mockVideos{}, Config{Workers: 2}, zap.NewNop())

	stats, err := svc.Run(context.Background(), testManifest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stats.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", stats.Failures)
	}
	f := stats.Failures[0]
	if f.Kind != etl.KindPDF || !errors.Is(f.Err, domain.ErrSourceFetch) {
		t.Errorf("failure: %+v", f)
	}

	// markdown and video chunks still land
	if stats.Chunks != 3 {
		t.Errorf("chunks: got %d", stats.Chunks)
	}
}

func TestRun_StoreError(t *testing.T) {
	store := &mockStore{err: errors.New("db down")}
	svc := New(store, &mockMarkdown{}, &mockPapers{}, &mockVideos{}, Config{Workers: 1}, zap.NewNop())

	if _, err := svc.Run(context.Background(), testManifest()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := New(&mockStore{}, &mockMarkdown{}, &mockPapers{}, &mockVideos{}, Config{Workers: 1}, zap.NewNop())
	if _, err := svc.Run(ctx, testManifest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
