// Package answer synthesizes sourced answers: retrieve chunks, stuff them
// into the prompt, invoke the model, and split the reply into answer text
// and cited sources.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
	"github.com/tessellate-io/lectern/internal/metrics"
	"github.com/tessellate-io/lectern/internal/prompt"
)

const sourcesMarker = "SOURCES:"

// Service runs the full question-answering chain.
type Service struct {
	retriever Retriever
	completer Completer
	sink      RecordSink
	logger    *zap.Logger
}

// New creates an answer service. sink may be nil to disable answer logging.
func New(retriever Retriever, completer Completer, sink RecordSink, logger *zap.Logger) *Service {
	return &Service{retriever: retriever, completer: completer, sink: sink, logger: logger}
}

// Answer answers a question. requestID is an optional client-provided
// correlation id; a fresh one is generated when absent. Retrieval coming
// back empty is not an error: the model is still invoked and the prompt
// instructs it to reply that no relevant sources were found.
func (s *Service) Answer(ctx context.Context, question, requestID string) (domain.Answer, error) {
	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("error").Inc()
		return domain.Answer{}, fmt.Errorf("retrieve sources: %w", err)
	}

	chunks := make([]domain.Chunk, len(results))
	scores := make([]float64, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
		scores[i] = r.Score
	}

	raw, err := s.completer.Complete(ctx, prompt.Render(question, chunks))
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("error").Inc()
		return domain.Answer{}, fmt.Errorf("complete: %w", err)
	}

	ans := parseCompletion(raw)

	if len(ans.Sources) > 0 {
		metrics.AnswersTotal.WithLabelValues("sourced").Inc()
	} else {
		metrics.AnswersTotal.WithLabelValues("no_sources").Inc()
	}

	s.record(ctx, question, requestID, ans, scores)

	return ans, nil
}

// record appends the interaction to the answer log, best-effort.
func (s *Service) record(ctx context.Context, question, requestID string, ans domain.Answer, scores []float64) {
	if s.sink == nil {
		return
	}

	id := requestID
	if id == "" {
		id = uuid.NewString()
	}

	rec := domain.AnswerRecord{
		ID:        id,
		Question:  question,
		Answer:    ans.Text,
		Sources:   ans.Sources,
		Scores:    scores,
		CreatedAt: time.Now(),
	}
	if err := s.sink.Append(ctx, rec); err != nil {
		s.logger.Warn("Failed to append answer record", zap.String("id", id), zap.Error(err))
	}
}

// parseCompletion extracts cited sources from the model output. The
// "SOURCES:" suffix stays part of the answer text; the list is additionally
// split out for callers that track citations. The prompt ends with
// "FINAL ANSWER:" so the reply is usually the bare continuation, but models
// sometimes echo the cue; both shapes parse.
func parseCompletion(raw string) domain.Answer {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "FINAL ANSWER:")
	text = strings.TrimSpace(text)

	var sources []string
	if i := strings.LastIndex(text, sourcesMarker); i >= 0 {
		tail := text[i+len(sourcesMarker):]

		for _, s := range strings.Split(tail, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sources = append(sources, s)
			}
		}
	}

	return domain.Answer{Text: text, Sources: sources}
}
