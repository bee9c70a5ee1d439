package etl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tessellate-io/lectern/internal/domain"
)

type fakeTranscripts struct {
	segments []Segment
	err      error
}

func (f *fakeTranscripts) Transcript(context.Context, string) ([]Segment, error) {
	return f.segments, f.err
}

type fakeChapters struct {
	chapters []Chapter
	err      error
}

func (f *fakeChapters) Chapters(context.Context, string) ([]Chapter, error) {
	return f.chapters, f.err
}

func TestAssignChapters(t *testing.T) {
	chapters := []Chapter{
		{Time: 0, Title: "Intro"},
		{Time: 60, Title: "Main"},
		{Time: 300, Title: "Outro"},
	}
	segments := []Segment{
		{Start: 0, Text: "hello"},
		{Start: 59.9, Text: "almost"},
		{Start: 60, Text: "boundary"},
		{Start: 150, Text: "middle"},
		{Start: 300, Text: "wrap"},
		{Start: 5000, Text: "way past"},
	}

	texts := assignChapters(chapters, segments)

	want := []string{"hello almost", "boundary middle", "wrap way past"}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("chapter %d: got %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestVideoNormalizer_Normalize(t *testing.T) {
	norm := NewVideoNormalizer(
		&fakeTranscripts{segments: []Segment{
			{Start: 0, Text: "part one"},
			{Start: 120, Text: "part two"},
		}},
		&fakeChapters{chapters: []Chapter{
			{Time: 0, Title: "Opening"},
			{Time: 100, Title: "Closing"},
		}},
		"https://www.youtube.com/watch?v=",
	)

	raws, err := norm.Normalize(context.Background(), VideoInfo{ID: "abc123", Title: "Lecture 9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(raws))
	}

	first := raws[0]
	if first.Text != "part one" {
		t.Errorf("text: got %q", first.Text)
	}
	if got := first.Metadata[domain.MetaSource]; got != "https://www.youtube.com/watch?v=abc123&t=0s" {
		t.Errorf("source: got %q", got)
	}
	if got := first.Metadata[domain.MetaFullTitle]; got != "Lecture 9 - Opening" {
		t.Errorf("full title: got %q", got)
	}

	if got := raws[1].Metadata[domain.MetaSource]; got != "https://www.youtube.com/watch?v=abc123&t=100s" {
		t.Errorf("second source: got %q", got)
	}
	if got := raws[1].Metadata[domain.MetaChapterTitle]; got != "Closing" {
		t.Errorf("chapter title: got %q", got)
	}
}

func TestVideoNormalizer_NoTranscript(t *testing.T) {
	norm := NewVideoNormalizer(&fakeTranscripts{}, &fakeChapters{}, "https://w/?v=")

	raws, err := norm.Normalize(context.Background(), VideoInfo{ID: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raws != nil {
		t.Errorf("expected no chunks, got %d", len(raws))
	}
}

func TestVideoNormalizer_NoChapters(t *testing.T) {
	norm := NewVideoNormalizer(
		&fakeTranscripts{segments: []Segment{{Start: 10, Text: "all of it"}}},
		&fakeChapters{err: domain.ErrNoChapters},
		"https://www.youtube.com/watch?v=",
	)

	raws, err := norm.Normalize(context.Background(), VideoInfo{ID: "v1", Title: "Talk"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(raws))
	}
	if got := raws[0].Metadata[domain.MetaChapterTitle]; got != "Full Video" {
		t.Errorf("chapter title: got %q", got)
	}
	if got := raws[0].Metadata[domain.MetaSource]; got != "https://www.youtube.com/watch?v=v1&t=0s" {
		t.Errorf("source: got %q", got)
	}
}

func TestVideoNormalizer_ChapterError(t *testing.T) {
	norm := NewVideoNormalizer(
		&fakeTranscripts{segments: []Segment{{Text: "x"}}},
		&fakeChapters{err: errors.New("boom")},
		"https://w/?v=",
	)

	if _, err := norm.Normalize(context.Background(), VideoInfo{ID: "v"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestVideoNormalizer_NoChapterClient_BuffersSegments(t *testing.T) {
	long := strings.Repeat("a", 745)
	norm := NewVideoNormalizer(
		&fakeTranscripts{segments: []Segment{
			{Start: 0, Text: long},
			{Start: 30, Text: "overflow"},
			{Start: 60, Text: "second chunk"},
		}},
		nil,
		"https://w/?v=",
	)

	raws, err := norm.Normalize(context.Background(), VideoInfo{ID: "v1", Title: "T"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(raws) != 2 {
		t.Fatalf("chunks: got %d, want 2", len(raws))
	}
	if raws[0].Text != long+" overflow" {
		t.Errorf("first chunk text: %q...", raws[0].Text[:20])
	}
	if raws[1].Text != "second chunk" {
		t.Errorf("second chunk text: %q", raws[1].Text)
	}
	// second buffer starts at the 60s segment
	if got := raws[1].Metadata[domain.MetaSource]; got != "https://w/?v=v1&t=60s" {
		t.Errorf("second chunk source: %q", got)
	}
	if got := raws[0].Metadata[domain.MetaSource]; got != "https://w/?v=v1&t=0s" {
		t.Errorf("first chunk source: %q", got)
	}
}
