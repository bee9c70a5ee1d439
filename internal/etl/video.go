package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tessellate-io/lectern/internal/domain"
)

// fallbackChapterTitle covers videos published without chapter markers.
const fallbackChapterTitle = "Full Video"

// segmentBufferTarget sizes transcript chunks when no chapter API is
// configured at all, in characters.
const segmentBufferTarget = 750

// Segment is one transcript caption with its timing.
type Segment struct {
	Start    float64
	Duration float64
	Text     string
}

// Chapter is one chapter marker: where it starts and what it is called.
type Chapter struct {
	Time  float64
	Title string
}

// TranscriptClient retrieves the caption track of a video. An empty slice
// with a nil error means the video has no transcript.
type TranscriptClient interface {
	Transcript(ctx context.Context, videoID string) ([]Segment, error)
}

// ChapterClient retrieves the chapter markers of a video. It returns
// domain.ErrNoChapters when the video has none.
type ChapterClient interface {
	Chapters(ctx context.Context, videoID string) ([]Chapter, error)
}

// VideoNormalizer turns one video transcript into chunks, one per chapter.
type VideoNormalizer struct {
	transcripts  TranscriptClient
	chapters     ChapterClient
	watchURLBase string
}

// NewVideoNormalizer creates a video normalizer. watchURLBase is the player
// URL prefix the video id is appended to when building chunk sources.
// chapters may be nil when no chapter API is available; transcripts are then
// split into fixed-size buffers instead of chapters.
func NewVideoNormalizer(transcripts TranscriptClient, chapters ChapterClient, watchURLBase string) *VideoNormalizer {
	return &VideoNormalizer{
		transcripts:  transcripts,
		chapters:     chapters,
		watchURLBase: watchURLBase,
	}
}

// Normalize fetches the transcript and chapters of a video and merges the
// caption segments of each chapter into one chunk. Videos without a
// transcript yield no chunks; videos without chapters become a single
// whole-video chapter. The chunk source deep-links to the chapter start.
func (n *VideoNormalizer) Normalize(ctx context.Context, video VideoInfo) ([]RawChunk, error) {
	segments, err := n.transcripts.Transcript(ctx, video.ID)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", video.ID, err)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	if n.chapters == nil {
		return n.bufferChunks(video, segments), nil
	}

	chapters, err := n.chapters.Chapters(ctx, video.ID)
	switch {
	case errors.Is(err, domain.ErrNoChapters):
		chapters = []Chapter{{Time: 0, Title: fallbackChapterTitle}}
	case err != nil:
		return nil, fmt.Errorf("video %s: %w", video.ID, err)
	case len(chapters) == 0:
		chapters = []Chapter{{Time: 0, Title: fallbackChapterTitle}}
	}

	texts := assignChapters(chapters, segments)

	raws := make([]RawChunk, 0, len(chapters))
	for i, chapter := range chapters {
		text := strings.TrimSpace(texts[i])
		if text == "" {
			continue
		}

		source := fmt.Sprintf("%s%s&t=%ds", n.watchURLBase, video.ID, int(chapter.Time))
		raws = append(raws, RawChunk{
			Text: text,
			Metadata: map[string]string{
				domain.MetaSource:       source,
				domain.MetaTitle:        video.Title,
				domain.MetaChapterTitle: chapter.Title,
				domain.MetaFullTitle:    fmt.Sprintf("%s - %s", video.Title, chapter.Title),
			},
		})
	}

	return raws, nil
}

// bufferChunks merges consecutive transcript segments into chunks of roughly
// segmentBufferTarget characters. Each chunk's source deep-links to its first
// segment's start time.
func (n *VideoNormalizer) bufferChunks(video VideoInfo, segments []Segment) []RawChunk {
	var (
		raws  []RawChunk
		buf   strings.Builder
		start float64
	)

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text == "" {
			return
		}
		source := fmt.Sprintf("%s%s&t=%ds", n.watchURLBase, video.ID, int(start))
		raws = append(raws, RawChunk{
			Text: text,
			Metadata: map[string]string{
				domain.MetaSource:    source,
				domain.MetaTitle:     video.Title,
				domain.MetaFullTitle: video.Title,
			},
		})
	}

	for _, seg := range segments {
		if buf.Len() == 0 {
			start = seg.Start
		} else {
			buf.WriteString(" ")
		}
		buf.WriteString(seg.Text)

		if buf.Len() >= segmentBufferTarget {
			flush()
			buf.Reset()
		}
	}
	flush()

	return raws
}

// assignChapters joins the text of every segment starting within a chapter's
// time range. Chapter i covers [chapters[i].Time, chapters[i+1].Time); the
// last chapter is unbounded.
func assignChapters(chapters []Chapter, segments []Segment) []string {
	texts := make([]string, len(chapters))
	for i, chapter := range chapters {
		end := -1.0
		if i < len(chapters)-1 {
			end = chapters[i+1].Time
		}

		var parts []string
		for _, seg := range segments {
			if seg.Start < chapter.Time {
				continue
			}
			if end >= 0 && seg.Start >= end {
				continue
			}
			parts = append(parts, seg.Text)
		}
		texts[i] = strings.Join(parts, " ")
	}
	return texts
}
