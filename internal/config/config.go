package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the search services.
type Config struct {
	// Server
	Port           int           `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	MaxFormSize    int64         `env:"MAX_FORM_SIZE" envDefault:"65536"` // 64KB in bytes
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	TopK           int           `env:"TOP_K" envDefault:"5"`

	// Corpus
	CorpusProvider  string   `env:"CORPUS_PROVIDER" envDefault:"file"` // "file" (csv/tsv/txt/pdf) or "postgres"
	CorpusFiles     []string `env:"CORPUS_FILES" envSeparator:"," envDefault:"data/Harry Potter 1.csv,data/Harry Potter 2.csv,data/Harry Potter 3.csv"`
	CorpusDelimiter string   `env:"CORPUS_DELIMITER" envDefault:";"`
	CorpusEncoding  string   `env:"CORPUS_ENCODING" envDefault:"latin1"`
	CorpusColumn    string   `env:"CORPUS_COLUMN" envDefault:"sentence"`
	CorpusDropEmpty bool     `env:"CORPUS_DROP_EMPTY" envDefault:"false"`
	DBURL           string   `env:"DB_URL"`
	CorpusTable     string   `env:"CORPUS_TABLE" envDefault:"sentences"`
	CorpusOrderBy   string   `env:"CORPUS_ORDER_BY" envDefault:"id"`

	// Embeddings
	EmbeddingProvider    string        `env:"EMBEDDING_PROVIDER" envDefault:"openai"` // "openai" (any OpenAI-compatible server) or "hashing" (offline)
	OpenAIKey            string        `env:"OPENAI_API_KEY"`
	EmbeddingBaseURL     string        `env:"EMBEDDING_BASE_URL"`
	EmbeddingModel       string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions  int           `env:"EMBEDDING_DIMENSIONS" envDefault:"384"`
	EmbeddingMaxTokens   int           `env:"EMBEDDING_MAX_TOKENS" envDefault:"256"`
	EmbeddingBatchSize   int           `env:"EMBEDDING_BATCH_SIZE" envDefault:"64"`
	EmbeddingConcurrency int           `env:"EMBEDDING_CONCURRENCY" envDefault:"4"`
	EmbeddingRetries     int           `env:"EMBEDDING_RETRIES" envDefault:"3"`
	EmbeddingTimeout     time.Duration `env:"EMBEDDING_TIMEOUT" envDefault:"30s"`

	// Cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"none"` // "none" or "redis"
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"3600"` // seconds

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none"` // "none" or "nats"
	QueueURL      string `env:"QUEUE_URL"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
