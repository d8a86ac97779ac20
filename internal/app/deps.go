package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"sentence-search/internal/cache"
	"sentence-search/internal/config"
	"sentence-search/internal/corpus"
	"sentence-search/internal/embeddings"
	"sentence-search/internal/logger"
	"sentence-search/internal/queue"
	"sentence-search/internal/search"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Engine   *search.Engine
	Embedder embeddings.Embedder
	Cache    cache.Cache
	Queue    queue.Queue

	closers []func() error
}

// Build loads env, config, the corpus and every shared component.
func Build(ctx context.Context) (Deps, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Deps{}, err
	}
	return BuildWith(ctx, cfg, logger.New(cfg.LogLevel))
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (config.Config, error) {
	if err := loadEnv(); err != nil {
		return config.Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return config.Load(), nil
}

func loadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// BuildWith builds the search stack from an already loaded configuration.
// The embedding table is computed here, so this blocks until the corpus is
// fully encoded.
func BuildWith(ctx context.Context, cfg config.Config, log *slog.Logger) (Deps, error) {
	c, err := LoadCorpus(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to load corpus: %w", err)
	}
	embedder, err := buildEmbedder(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	engine, err := search.New(ctx, embedder, c, engineOptions(cfg, log)...)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to build embedding table: %w", err)
	}

	deps := Deps{
		Config:   cfg,
		Log:      log,
		Engine:   engine,
		Embedder: embedder,
	}
	deps.Cache, err = buildCache(ctx, cfg, log, c.Fingerprint())
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.closers = append(deps.closers, deps.Cache.Close)

	q, closeQueue, err := buildQueue(cfg, log)
	if err != nil {
		_ = deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	deps.Queue = q
	deps.closers = append(deps.closers, closeQueue)
	return deps, nil
}

// BuildWorker builds the dependencies of a queue consumer: no corpus, no model.
func BuildWorker() (Deps, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Deps{}, err
	}
	log := logger.New(cfg.LogLevel)
	if cfg.QueueProvider != "nats" {
		return Deps{}, fmt.Errorf("QUEUE_PROVIDER=nats is required for workers (got %q)", cfg.QueueProvider)
	}
	q, closeQueue, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	return Deps{
		Config:  cfg,
		Log:     log,
		Queue:   q,
		closers: []func() error{closeQueue},
	}, nil
}

// Close releases connections held by the dependencies.
func (d Deps) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadCorpus reads every configured source, in order, into one corpus.
func LoadCorpus(ctx context.Context, cfg config.Config, log *slog.Logger) (corpus.Corpus, error) {
	sources, closeSources, err := buildSources(cfg)
	if err != nil {
		return corpus.Corpus{}, err
	}
	defer func() {
		if err := closeSources(); err != nil {
			log.Warn("failed to close corpus source", "err", err)
		}
	}()
	return corpus.Load(ctx, corpus.LoadOptions{DropEmpty: cfg.CorpusDropEmpty, Log: log}, sources...)
}

func buildSources(cfg config.Config) ([]corpus.Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.CorpusProvider {
	case "file":
		delim, err := corpus.ParseDelimiter(cfg.CorpusDelimiter)
		if err != nil {
			return nil, noop, err
		}
		opts := corpus.FileOptions{
			Delimited: corpus.DelimitedOptions{
				Delimiter: delim,
				Encoding:  cfg.CorpusEncoding,
				Column:    cfg.CorpusColumn,
			},
			MaxTokens: cfg.EmbeddingMaxTokens,
		}
		var sources []corpus.Source
		for _, path := range cfg.CorpusFiles {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			src, err := corpus.FileSource(path, opts)
			if err != nil {
				return nil, noop, err
			}
			sources = append(sources, src)
		}
		if len(sources) == 0 {
			return nil, noop, fmt.Errorf("CORPUS_FILES is required when CORPUS_PROVIDER=file")
		}
		return sources, noop, nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, noop, fmt.Errorf("DB_URL is required when CORPUS_PROVIDER=postgres")
		}
		pg, err := corpus.NewPostgresSource(cfg.DBURL, cfg.CorpusTable, cfg.CorpusColumn, cfg.CorpusOrderBy)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize Postgres source: %w", err)
		}
		return []corpus.Source{pg}, pg.Close, nil
	default:
		return nil, noop, fmt.Errorf("invalid CORPUS_PROVIDER: %s (valid options: file, postgres)", cfg.CorpusProvider)
	}
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIKey == "" && cfg.EmbeddingBaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY or EMBEDDING_BASE_URL is required when EMBEDDING_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(embeddings.OpenAIOptions{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.EmbeddingTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel, "base_url", cfg.EmbeddingBaseURL)
		return embedder, nil
	case "hashing":
		log.Info("using hashing embedder", "dimensions", cfg.EmbeddingDimensions)
		return embeddings.NewHashEmbedder(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("invalid EMBEDDING_PROVIDER: %s (valid options: openai, hashing)", cfg.EmbeddingProvider)
	}
}

func engineOptions(cfg config.Config, log *slog.Logger) []search.Option {
	return []search.Option{
		search.WithTopK(cfg.TopK),
		search.WithBatchSize(cfg.EmbeddingBatchSize),
		search.WithConcurrency(cfg.EmbeddingConcurrency),
		search.WithRetries(cfg.EmbeddingRetries, 500*time.Millisecond),
		search.WithMaxTokens(cfg.EmbeddingMaxTokens),
		search.WithQueryTimeout(cfg.EmbeddingTimeout),
		search.WithLogger(log),
	}
}

// buildCache falls back to a no-op cache when Redis is unreachable; a
// missing cache only costs latency.
func buildCache(ctx context.Context, cfg config.Config, log *slog.Logger, fingerprint string) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "", "none":
		return cache.NewNoOpCache(), nil
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", "addr", cfg.RedisAddr, "err", err)
			return cache.NewNoOpCache(), nil
		}
		if err := rc.InvalidateStale(ctx, fingerprint); err != nil {
			log.Warn("failed to drop stale cache entries", "err", err)
		}
		log.Info("using Redis cache", "addr", cfg.RedisAddr, "ttl_seconds", cfg.CacheTTL)
		return rc, nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: none, redis)", cfg.CacheProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, func() error, error) {
	switch cfg.QueueProvider {
	case "", "none":
		return queue.NewNoOpQueue(), func() error { return nil }, nil
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL, nats.Name("sentence-search"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nc.Drain, nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: none, nats)", cfg.QueueProvider)
	}
}
