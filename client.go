// Package lectern embeds the question-answering pipeline as a library:
// connect to a database holding a published vector index and ask questions
// without running the HTTP server.
package lectern

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbRedis "github.com/tessellate-io/lectern/internal/db/redis"
	"github.com/tessellate-io/lectern/internal/domain"
	"github.com/tessellate-io/lectern/internal/metrics"
	"github.com/tessellate-io/lectern/internal/repository/embcache"
	indexrepo "github.com/tessellate-io/lectern/internal/repository/index"
	openaiTransport "github.com/tessellate-io/lectern/internal/transport/openai"
	answeruc "github.com/tessellate-io/lectern/internal/usecase/answer"
	retrieveuc "github.com/tessellate-io/lectern/internal/usecase/retrieve"
)

const defaultReadinessTimeout = 10 * time.Second

// Answer is a model reply with the sources it cites.
type Answer struct {
	Text    string
	Sources []string
}

// Internal interface for substitution in tests.
type answerer interface {
	Answer(ctx context.Context, question, requestID string) (domain.Answer, error)
}

// Client is the embedded entry point.
type Client struct {
	store   *dbRedis.Store
	answers answerer
}

// New creates a Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	cfg.applyDefaults()

	if len(cfg.addrs) == 0 {
		return nil, errors.New("lectern: database address required (use WithRedis)")
	}
	if cfg.openAIKey == "" && (cfg.embedder == nil || cfg.completer == nil) {
		return nil, errors.New("lectern: OpenAI key required (use WithOpenAI, or supply WithEmbedder and WithCompleter)")
	}

	metrics.Register()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
		DB:       cfg.db,
	})
	if err != nil {
		return nil, fmt.Errorf("lectern: create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("lectern: database not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func wireClient(store *dbRedis.Store, cfg *clientConfig) *Client {
	embedder := cfg.embedder
	if embedder == nil {
		base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.embeddingDims,
			Logger:     cfg.logger,
		})
		embedder = embcache.New(base, store, cfg.keyPrefix, metrics.EmbeddingCacheTotal, cfg.logger)
	}

	completer := cfg.completer
	if completer == nil {
		completer = openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
			APIKey:    cfg.openAIKey,
			BaseURL:   cfg.openAIBaseURL,
			Model:     cfg.llmModel,
			MaxTokens: cfg.maxTokens,
			Logger:    cfg.logger,
		})
	}

	index := indexrepo.New(store, indexrepo.Options{
		KeyPrefix: cfg.keyPrefix,
		Dim:       cfg.embeddingDims,
	})

	retriever := retrieveuc.New(embedder, index, retrieveuc.Config{
		QueryK:      cfg.queryK,
		SourceLimit: cfg.sourceLimit,
		MinScore:    cfg.minScore,
	}, cfg.logger)

	return &Client{
		store:   store,
		answers: answeruc.New(retriever, completer, nil, cfg.logger),
	}
}

// Answer answers a question against the published index.
func (c *Client) Answer(ctx context.Context, question string) (Answer, error) {
	ans, err := c.answers.Answer(ctx, question, "")
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	return Answer{Text: ans.Text, Sources: ans.Sources}, nil
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}
