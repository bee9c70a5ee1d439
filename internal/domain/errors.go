package domain

import "errors"

var (
	// ErrInvalidChunk signals a chunk that fails construction validation.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrSourceFetch signals that a single source document failed to
	// download or parse. Ingestion skips the document and continues.
	ErrSourceFetch = errors.New("source fetch failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrIndexUnavailable signals that no published vector index exists
	// or the index is unreadable. Fatal for the query, never retried here.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrModelInvocation signals a failed or malformed language model call.
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrNoChapters signals that no chapter data exists for a video; the
	// normalizer substitutes a single whole-video chapter.
	ErrNoChapters = errors.New("no chapter data available")
	// ErrEmptyQuestion signals a blank question on the query entrypoint.
	ErrEmptyQuestion = errors.New("question is required")
)
