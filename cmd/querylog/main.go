package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sentence-search/internal/app"
	"sentence-search/internal/httputil"
	"sentence-search/internal/queue"
)

// stats aggregates served queries across the worker's lifetime.
type stats struct {
	mu        sync.Mutex
	queries   int
	cacheHits int
	noResults int
	totalMs   int64
}

func (s *stats) record(ev queue.SearchEvent) (queries, hits int, avgMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if ev.Cached {
		s.cacheHits++
	}
	if ev.ResultCount == 0 {
		s.noResults++
	}
	s.totalMs += ev.DurationMs
	return s.queries, s.cacheHits, s.totalMs / int64(s.queries)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.BuildWorker()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	deps.Log.Info("query log worker starting")

	st := &stats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(gctx, queue.TaskTypeSearchLogged, func(ctx context.Context, task queue.Task) error {
			return handleSearchEvent(deps.Log, st, task)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(gctx, fmt.Sprintf(":%d", deps.Config.Port), deps.Log)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("query log worker stopped", "err", err)
	}
}

func handleSearchEvent(log *slog.Logger, st *stats, task queue.Task) error {
	ev, err := queue.DecodeSearchEvent(task)
	if err != nil {
		return err
	}
	queries, hits, avgMs := st.record(ev)
	log.Info("search served",
		"id", ev.ID,
		"query", ev.Query,
		"k", ev.K,
		"results", ev.ResultCount,
		"top_score", ev.TopScore,
		"cached", ev.Cached,
		"duration_ms", ev.DurationMs,
		"total_queries", queries,
		"total_cache_hits", hits,
		"avg_duration_ms", avgMs,
	)
	return nil
}
