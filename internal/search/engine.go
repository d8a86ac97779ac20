package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sentence-search/internal/chunker"
	"sentence-search/internal/corpus"
	"sentence-search/internal/embeddings"
	"sentence-search/internal/retry"
)

// DefaultTopK is the number of results returned when k is not set.
const DefaultTopK = 5

// Result is one ranked corpus entry.
type Result struct {
	Index    int     `json:"index"`
	Sentence string  `json:"sentence"`
	Score    float32 `json:"score"`
}

type options struct {
	topK         int
	batchSize    int
	concurrency  int
	retries      int
	retryBase    time.Duration
	maxTokens    int
	queryTimeout time.Duration
	log          *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithTopK sets the result count used when Search gets k <= 0.
func WithTopK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithBatchSize sets how many entries go into one EmbedBatch call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of in-flight batches during build.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRetries sets attempts per batch and the base backoff delay.
func WithRetries(attempts int, base time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.retries = attempts
		}
		if base > 0 {
			o.retryBase = base
		}
	}
}

// WithMaxTokens truncates entries and queries to n words before encoding.
// 0 disables truncation.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxTokens = n
		}
	}
}

// WithQueryTimeout bounds the query embedding call.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) { o.queryTimeout = d }
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Engine answers similarity queries over a corpus. The embedding table is
// built once in New and never mutated, so Search is safe for concurrent use.
type Engine struct {
	embedder embeddings.Embedder
	corpus   corpus.Corpus
	table    []embeddings.Vector
	norms    []float64
	dim      int
	opts     options
}

// New encodes every corpus entry and returns a ready Engine.
//
// Entries longer than the token limit are silently truncated. Blank entries
// are not sent to the model; they get a zero vector and always score 0.
// A batch that still fails after retries, a short response or inconsistent
// dimensions yield an *EmbeddingError.
func New(ctx context.Context, embedder embeddings.Embedder, c corpus.Corpus, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	o := options{
		topK:        DefaultTopK,
		batchSize:   64,
		concurrency: 4,
		retries:     3,
		retryBase:   200 * time.Millisecond,
		maxTokens:   256,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	table, dim, err := buildTable(ctx, embedder, c.Sentences(), o)
	if err != nil {
		return nil, err
	}
	norms := make([]float64, len(table))
	for i, v := range table {
		norms[i] = embeddings.Norm(v)
	}
	o.log.Info("embedding table built",
		"entries", len(table),
		"dimensions", dim,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Engine{
		embedder: embedder,
		corpus:   c,
		table:    table,
		norms:    norms,
		dim:      dim,
		opts:     o,
	}, nil
}

func buildTable(ctx context.Context, embedder embeddings.Embedder, sentences []string, o options) ([]embeddings.Vector, int, error) {
	table := make([]embeddings.Vector, len(sentences))
	var idx []int
	var texts []string
	for i, s := range sentences {
		if strings.TrimSpace(s) == "" {
			continue
		}
		idx = append(idx, i)
		texts = append(texts, chunker.Truncate(s, o.maxTokens))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for start := 0; start < len(texts); start += o.batchSize {
		end := min(start+o.batchSize, len(texts))
		batchIdx, batchTexts := idx[start:end], texts[start:end]
		g.Go(func() error {
			var vecs []embeddings.Vector
			err := retry.Do(gctx, o.retries, o.retryBase, func(ctx context.Context) error {
				var err error
				vecs, err = embedder.EmbedBatch(ctx, batchTexts)
				if err == nil && len(vecs) != len(batchTexts) {
					err = fmt.Errorf("got %d vectors for %d inputs", len(vecs), len(batchTexts))
				}
				if err != nil {
					o.log.Warn("embedding batch failed", "first_index", batchIdx[0], "size", len(batchTexts), "err", err)
				}
				return err
			})
			if err != nil {
				return &EmbeddingError{Index: batchIdx[0], Err: err}
			}
			for j, v := range vecs {
				table[batchIdx[j]] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	dim := 0
	for n, i := range idx {
		if n == 0 {
			dim = len(table[i])
			if dim == 0 {
				return nil, 0, &EmbeddingError{Index: i, Err: errors.New("model returned an empty vector")}
			}
			continue
		}
		if len(table[i]) != dim {
			return nil, 0, &EmbeddingError{Index: i, Err: fmt.Errorf("dimension %d, expected %d", len(table[i]), dim)}
		}
	}
	for i := range table {
		if table[i] == nil {
			table[i] = make(embeddings.Vector, dim)
		}
	}
	return table, dim, nil
}

// Len returns the number of corpus entries (and table rows).
func (e *Engine) Len() int { return len(e.table) }

// Dimensions returns the vector size D, or 0 if nothing was encoded.
func (e *Engine) Dimensions() int { return e.dim }

// Corpus returns the indexed corpus.
func (e *Engine) Corpus() corpus.Corpus { return e.corpus }

// TopK returns the default result count.
func (e *Engine) TopK() int { return e.opts.topK }

// Search embeds query and returns the k most similar entries, highest score
// first with ties in corpus order. k <= 0 uses the engine default.
// An empty corpus yields an empty result and no error.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if len(e.table) == 0 {
		return []Result{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = e.opts.topK
	}
	if e.opts.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.queryTimeout)
		defer cancel()
	}
	qv, err := e.embedder.Embed(ctx, chunker.Truncate(query, e.opts.maxTokens))
	if err != nil {
		return nil, &EmbeddingError{Index: -1, Err: err}
	}
	if e.dim > 0 && len(qv) != e.dim {
		return nil, &EmbeddingError{Index: -1, Err: fmt.Errorf("query dimension %d, table dimension %d", len(qv), e.dim)}
	}
	return rank(qv, e.corpus.At, e.table, e.norms, k), nil
}

// Rank scores every table row against query by cosine similarity and returns
// the top k. corpus and table must be index-aligned.
func Rank(query embeddings.Vector, sentences []string, table []embeddings.Vector, k int) ([]Result, error) {
	if len(sentences) != len(table) {
		return nil, fmt.Errorf("corpus has %d entries but table has %d rows", len(sentences), len(table))
	}
	if k <= 0 {
		k = DefaultTopK
	}
	norms := make([]float64, len(table))
	for i, v := range table {
		norms[i] = embeddings.Norm(v)
	}
	at := func(i int) string { return sentences[i] }
	return rank(query, at, table, norms, k), nil
}

func rank(query embeddings.Vector, at func(int) string, table []embeddings.Vector, norms []float64, k int) []Result {
	qn := embeddings.Norm(query)
	results := make([]Result, len(table))
	for i, v := range table {
		var score float64
		if qn > 0 && norms[i] > 0 {
			score = embeddings.Dot(query, v) / (qn * norms[i])
		}
		if math.IsNaN(score) {
			score = 0
		}
		results[i] = Result{Index: i, Sentence: at(i), Score: float32(score)}
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Index < results[b].Index
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}
