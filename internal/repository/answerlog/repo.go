// Package answerlog appends answered questions to a capped stream for
// offline inspection and evaluation runs.
package answerlog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tessellate-io/lectern/internal/domain"
)

// store is the database surface this repository needs.
type store interface {
	XAdd(ctx context.Context, stream string, maxLen int64, fields map[string]string) error
}

// Repository appends answer records to a stream trimmed to maxLen entries.
type Repository struct {
	store  store
	stream string
	maxLen int64
}

// New creates an answer log repository.
func New(s store, stream string, maxLen int64) *Repository {
	return &Repository{store: s, stream: stream, maxLen: maxLen}
}

// Append writes a record to the stream.
func (r *Repository) Append(ctx context.Context, rec domain.AnswerRecord) error {
	scores := make([]string, len(rec.Scores))
	for i, s := range rec.Scores {
		scores[i] = strconv.FormatFloat(s, 'f', 4, 64)
	}

	fields := map[string]string{
		"id":         rec.ID,
		"question":   rec.Question,
		"answer":     rec.Answer,
		"sources":    strings.Join(rec.Sources, ","),
		"scores":     strings.Join(scores, ","),
		"created_at": rec.CreatedAt.UTC().Format(time.RFC3339),
	}

	if err := r.store.XAdd(ctx, r.stream, r.maxLen, fields); err != nil {
		return fmt.Errorf("append answer record: %w", err)
	}
	return nil
}
