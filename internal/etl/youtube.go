package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tessellate-io/lectern/internal/domain"
)

const defaultFetchRetries = 3

// YouTubeTranscriptClient fetches caption tracks from the public timedtext
// endpoint in json3 format.
type YouTubeTranscriptClient struct {
	client  *http.Client
	retries uint64
}

// NewYouTubeTranscriptClient creates a transcript client. retries bounds the
// number of retry attempts after the first failure.
func NewYouTubeTranscriptClient(timeout time.Duration, retries int) *YouTubeTranscriptClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = defaultFetchRetries
	}
	return &YouTubeTranscriptClient{
		client:  &http.Client{Timeout: timeout},
		retries: uint64(retries),
	}
}

type timedTextResponse struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Transcript downloads the English caption track of a video. A video with no
// captions yields an empty slice and no error.
func (c *YouTubeTranscriptClient) Transcript(ctx context.Context, videoID string) ([]Segment, error) {
	endpoint := fmt.Sprintf(
		"https://www.youtube.com/api/timedtext?v=%s&lang=en&fmt=json3",
		url.QueryEscape(videoID),
	)

	body, err := getWithRetry(ctx, c.client, endpoint, c.retries)
	if err != nil {
		return nil, fmt.Errorf("transcript %s: %w", videoID, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var resp timedTextResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse transcript %s: %w", domain.ErrSourceFetch, videoID, err)
	}

	var segments []Segment
	for _, ev := range resp.Events {
		text := ""
		for _, s := range ev.Segs {
			text += s.UTF8
		}
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start:    float64(ev.StartMs) / 1000,
			Duration: float64(ev.DurationMs) / 1000,
			Text:     text,
		})
	}
	return segments, nil
}

// LemnosChapterClient fetches chapter markers from a lemnoslife-compatible
// operational API.
type LemnosChapterClient struct {
	client  *http.Client
	baseURL string
	retries uint64
}

// NewLemnosChapterClient creates a chapter client against baseURL.
func NewLemnosChapterClient(baseURL string, timeout time.Duration, retries int) *LemnosChapterClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = defaultFetchRetries
	}
	return &LemnosChapterClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retries: uint64(retries),
	}
}

type chapterResponse struct {
	Items []struct {
		Chapters struct {
			Chapters []struct {
				Time  float64 `json:"time"`
				Title string  `json:"title"`
			} `json:"chapters"`
		} `json:"chapters"`
	} `json:"items"`
}

// Chapters retrieves the chapter list of a video. Videos without chapters
// return domain.ErrNoChapters.
func (c *LemnosChapterClient) Chapters(ctx context.Context, videoID string) ([]Chapter, error) {
	endpoint := fmt.Sprintf("%s/videos?id=%s&part=chapters", c.baseURL, url.QueryEscape(videoID))

	body, err := getWithRetry(ctx, c.client, endpoint, c.retries)
	if err != nil {
		return nil, fmt.Errorf("chapters %s: %w", videoID, err)
	}

	var resp chapterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse chapters %s: %w", domain.ErrSourceFetch, videoID, err)
	}

	if len(resp.Items) == 0 || len(resp.Items[0].Chapters.Chapters) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, domain.ErrNoChapters)
	}

	chapters := make([]Chapter, 0, len(resp.Items[0].Chapters.Chapters))
	for _, ch := range resp.Items[0].Chapters.Chapters {
		chapters = append(chapters, Chapter{Time: ch.Time, Title: ch.Title})
	}
	return chapters, nil
}

// getWithRetry performs a GET with exponential backoff. Transport failures
// and 5xx responses are retried; other non-2xx responses fail immediately.
func getWithRetry(ctx context.Context, client *http.Client, endpoint string, retries uint64) ([]byte, error) {
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: build request: %w", domain.ErrSourceFetch, err))
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: get %s: %w", domain.ErrSourceFetch, endpoint, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: get %s: status %d", domain.ErrSourceFetch, endpoint, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("%w: get %s: status %d", domain.ErrSourceFetch, endpoint, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", domain.ErrSourceFetch, endpoint, err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}
