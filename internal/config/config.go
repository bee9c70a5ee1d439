package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the lectern service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Index     IndexConfig     `yaml:"index"`
	AnswerLog AnswerLogConfig `yaml:"answer_log"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AuthConfig holds API authentication settings. An empty key list disables
// authentication.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig holds language model settings for answer synthesis.
type LLMConfig struct {
	APIKey    string  `yaml:"api_key"`
	BaseURL   string  `yaml:"base_url"`
	Model     string  `yaml:"model"`
	MaxTokens int     `yaml:"max_tokens"`
	// Temperature is fixed at 0 unless explicitly overridden; answers must
	// be as deterministic as the provider allows.
	Temperature float32 `yaml:"temperature"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	// QueryK is the raw KNN breadth.
	QueryK int `yaml:"query_k"`
	// SourceLimit caps how many chunks are presented to the model,
	// independently of QueryK.
	SourceLimit int `yaml:"source_limit"`
	// MinScore discards matches whose cosine similarity falls below it.
	MinScore float64 `yaml:"min_score"`
}

// IngestConfig holds offline ingestion settings.
type IngestConfig struct {
	Workers        int    `yaml:"workers"`
	BatchSize      int    `yaml:"batch_size"`
	FetchRetries   int    `yaml:"fetch_retries"`
	ChapterAPIBase string `yaml:"chapter_api_base"`
	WatchURLBase   string `yaml:"watch_url_base"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	KeyPrefix       string `yaml:"key_prefix"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	// WindowSize and WindowOverlap bound chunk text windows at embedding
	// time, measured in characters (~4 chars per token).
	WindowSize    int `yaml:"window_size"`
	WindowOverlap int `yaml:"window_overlap"`
}

// AnswerLogConfig gates best-effort answer record emission.
type AnswerLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Stream  string `yaml:"stream"`
	MaxLen  int64  `yaml:"max_len"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} and ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 256
	}
	if c.Retrieval.QueryK <= 0 {
		c.Retrieval.QueryK = 6
	}
	if c.Retrieval.SourceLimit <= 0 {
		c.Retrieval.SourceLimit = 3
	}
	if c.Retrieval.MinScore <= 0 {
		c.Retrieval.MinScore = 0.6
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 8
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 250
	}
	if c.Ingest.FetchRetries <= 0 {
		c.Ingest.FetchRetries = 3
	}
	if c.Ingest.ChapterAPIBase == "" {
		c.Ingest.ChapterAPIBase = "https://yt.lemnoslife.com"
	}
	if c.Ingest.WatchURLBase == "" {
		c.Ingest.WatchURLBase = "https://www.youtube.com/watch?v="
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "lectern:"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.WindowSize <= 0 {
		c.Index.WindowSize = 2000 // ~500 tokens
	}
	if c.Index.WindowOverlap <= 0 {
		c.Index.WindowOverlap = 400 // ~100 tokens
	}
	if c.AnswerLog.Stream == "" {
		c.AnswerLog.Stream = c.Index.KeyPrefix + "answers"
	}
	if c.AnswerLog.MaxLen <= 0 {
		c.AnswerLog.MaxLen = 10000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Retrieval.SourceLimit > c.Retrieval.QueryK {
		return fmt.Errorf(
			"retrieval.source_limit (%d) must not exceed retrieval.query_k (%d)",
			c.Retrieval.SourceLimit, c.Retrieval.QueryK,
		)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be within [0,1], got %g", c.Retrieval.MinScore)
	}
	if c.Index.WindowOverlap >= c.Index.WindowSize {
		return fmt.Errorf(
			"index.window_overlap (%d) must be smaller than index.window_size (%d)",
			c.Index.WindowOverlap, c.Index.WindowSize,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
