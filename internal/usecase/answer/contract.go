package answer

import (
	"context"

	"github.com/tessellate-io/lectern/internal/domain"
)

// Retriever selects the chunks most similar to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.RetrievalResult, error)
}

// Completer invokes the language model with a rendered prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RecordSink receives answered interactions. Failures are logged and
// swallowed; answering never depends on the sink.
type RecordSink interface {
	Append(ctx context.Context, rec domain.AnswerRecord) error
}
