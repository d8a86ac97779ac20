package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"sentence-search/internal/app"
	"sentence-search/internal/cache"
	"sentence-search/internal/httputil"
	"sentence-search/internal/queue"
	"sentence-search/internal/search"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.html"))

type searchRequest struct {
	Query string `validate:"required,max=500"`
}

type pageData struct {
	Query    string          `json:"query"`
	Results  []search.Result `json:"results"`
	Cached   bool            `json:"cached"`
	Error    string          `json:"error,omitempty"`
	Searched bool            `json:"-"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("search server listening", "addr", srv.Addr, "entries", deps.Engine.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("search server stopped", "err", err)
	}
}

func newRouter(deps app.Deps) chi.Router {
	r := httputil.NewRouter(deps.Log, deps.Config.RequestTimeout)
	r.Get("/", indexHandler(deps))
	r.Post("/", searchHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	return r
}

func indexHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(deps.Log, w, r, http.StatusOK, pageData{})
	}
}

func searchHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if deps.Config.MaxFormSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, deps.Config.MaxFormSize)
		}
		if err := r.ParseForm(); err != nil {
			httputil.Fail(deps.Log, w, "invalid form", err, http.StatusBadRequest)
			return
		}

		req := searchRequest{Query: strings.TrimSpace(r.PostFormValue("query"))}
		if err := httputil.Validator.Struct(&req); err != nil {
			render(deps.Log, w, r, http.StatusBadRequest, pageData{Query: req.Query, Error: httputil.ValidationMessage(err)})
			return
		}

		ctx := r.Context()
		k := deps.Engine.TopK()
		cacheKey := cache.GenerateCacheKey(deps.Engine.Corpus().Fingerprint(), req.Query, k)

		var results []search.Result
		cached, err := deps.Cache.GetQueryResult(ctx, cacheKey)
		if err != nil {
			deps.Log.Warn("cache lookup failed", "err", err)
		}
		if cached != nil {
			deps.Log.Info("cache hit", "query", req.Query)
			results = fromCached(cached)
		} else {
			results, err = deps.Engine.Search(ctx, req.Query, k)
			if err != nil {
				renderSearchError(deps.Log, w, r, req.Query, err)
				return
			}
			entry := &cache.QueryResult{Query: req.Query, Results: toCached(results), CachedAt: time.Now().UTC()}
			ttl := time.Duration(deps.Config.CacheTTL) * time.Second
			if err := deps.Cache.SetQueryResult(ctx, cacheKey, entry, ttl); err != nil {
				deps.Log.Warn("failed to cache results", "err", err)
			}
		}

		publishEvent(ctx, deps, req.Query, k, results, cached != nil, time.Since(start))
		render(deps.Log, w, r, http.StatusOK, pageData{
			Query:    req.Query,
			Results:  results,
			Cached:   cached != nil,
			Searched: true,
		})
	}
}

func renderSearchError(log *slog.Logger, w http.ResponseWriter, r *http.Request, query string, err error) {
	var embErr *search.EmbeddingError
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		render(log, w, r, http.StatusBadRequest, pageData{Query: query, Error: "query is required"})
	case errors.As(err, &embErr):
		log.Error("query embedding failed", "err", err)
		render(log, w, r, http.StatusBadGateway, pageData{
			Query: query,
			Error: "The embedding model could not process this query. Please try again.",
		})
	default:
		httputil.Fail(log, w, "search failed", err, http.StatusInternalServerError)
	}
}

func render(log *slog.Logger, w http.ResponseWriter, r *http.Request, status int, data pageData) {
	if httputil.WantsJSON(r) {
		if data.Results == nil && data.Searched {
			data.Results = []search.Result{}
		}
		httputil.WriteJSON(w, status, data)
		return
	}
	if err := httputil.WriteHTML(w, status, pages, "index.html", data); err != nil {
		log.Error("failed to render page", "err", err)
	}
}

func publishEvent(ctx context.Context, deps app.Deps, query string, k int, results []search.Result, cached bool, took time.Duration) {
	ev := queue.SearchEvent{
		Query:       query,
		K:           k,
		ResultCount: len(results),
		Cached:      cached,
		DurationMs:  took.Milliseconds(),
		At:          time.Now().UTC(),
	}
	if len(results) > 0 {
		ev.TopScore = results[0].Score
	}
	task, err := queue.NewSearchTask(ev)
	if err != nil {
		deps.Log.Warn("failed to build search event", "err", err)
		return
	}
	if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 2, 50*time.Millisecond); err != nil {
		deps.Log.Warn("failed to publish search event", "id", task.ID, "err", err)
	}
}

func toCached(results []search.Result) []cache.Source {
	out := make([]cache.Source, len(results))
	for i, r := range results {
		out[i] = cache.Source{Index: r.Index, Sentence: r.Sentence, Score: r.Score}
	}
	return out
}

func fromCached(qr *cache.QueryResult) []search.Result {
	out := make([]search.Result, len(qr.Results))
	for i, s := range qr.Results {
		out[i] = search.Result{Index: s.Index, Sentence: s.Sentence, Score: s.Score}
	}
	return out
}
