package domain

import "time"

// Answer is the synthesized reply for one question.
// Sources are the URIs cited by the model in its SOURCES suffix; they are
// reported as-is and not validated against the retrieved set.
type Answer struct {
	Text    string
	Sources []string
}

// AnswerRecord captures one full question/answer interaction for the
// external experiment log. Emitted best-effort; never retained by the core.
type AnswerRecord struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources,omitempty"`
	Scores    []float64 `json:"scores,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
