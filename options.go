package lectern

import (
	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	username string
	password string
	db       int

	openAIKey     string
	openAIBaseURL string

	embeddingModel string
	embeddingDims  int
	llmModel       string
	maxTokens      int
	temperature    float32

	keyPrefix   string
	queryK      int
	sourceLimit int
	minScore    float64

	embedder  domain.Embedder
	completer domain.Completer
	logger    *zap.Logger
}

// WithRedis sets the Redis connection.
func WithRedis(addrs []string, password string) Option {
	return func(c *clientConfig) {
		c.addrs = addrs
		c.password = password
	}
}

// WithOpenAI sets the OpenAI API key used for both embeddings and
// completions. baseURL may be empty for the public endpoint.
func WithOpenAI(apiKey, baseURL string) Option {
	return func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIBaseURL = baseURL
	}
}

// WithEmbeddingModel overrides the embedding model and its dimensionality.
func WithEmbeddingModel(model string, dimensions int) Option {
	return func(c *clientConfig) {
		c.embeddingModel = model
		c.embeddingDims = dimensions
	}
}

// WithCompletionModel overrides the answering model.
func WithCompletionModel(model string, maxTokens int) Option {
	return func(c *clientConfig) {
		c.llmModel = model
		c.maxTokens = maxTokens
	}
}

// WithRetrieval tunes retrieval: KNN breadth, how many sources reach the
// model, and the minimum cosine similarity a match must clear.
func WithRetrieval(queryK, sourceLimit int, minScore float64) Option {
	return func(c *clientConfig) {
		c.queryK = queryK
		c.sourceLimit = sourceLimit
		c.minScore = minScore
	}
}

// WithKeyPrefix sets the database key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = prefix
	}
}

// WithEmbedder substitutes a custom embedder for the OpenAI one. The same
// embedder must have been used to build the index.
func WithEmbedder(e domain.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithCompleter substitutes a custom language model transport.
func WithCompleter(m domain.Completer) Option {
	return func(c *clientConfig) {
		c.completer = m
	}
}

// WithLogger sets the zap logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

func (c *clientConfig) applyDefaults() {
	if c.embeddingModel == "" {
		c.embeddingModel = "text-embedding-3-small"
	}
	if c.embeddingDims <= 0 {
		c.embeddingDims = 1536
	}
	if c.llmModel == "" {
		c.llmModel = "gpt-4o"
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 256
	}
	if c.keyPrefix == "" {
		c.keyPrefix = "lectern:"
	}
	if c.queryK <= 0 {
		c.queryK = 6
	}
	if c.sourceLimit <= 0 {
		c.sourceLimit = 3
	}
	if c.minScore <= 0 {
		c.minScore = 0.6
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
}
