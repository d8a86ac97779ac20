package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentence-search/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	TaskTypeSearchLogged TaskType = "search.logged"
)

// Task represents a unit of work passed between services.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// SearchEvent records one served query.
type SearchEvent struct {
	ID          uuid.UUID `json:"id"`
	Query       string    `json:"query"`
	K           int       `json:"k"`
	ResultCount int       `json:"result_count"`
	TopScore    float32   `json:"top_score"`
	Cached      bool      `json:"cached"`
	DurationMs  int64     `json:"duration_ms"`
	At          time.Time `json:"at"`
}

// NewSearchTask wraps ev in a task, assigning an ID if it has none.
func NewSearchTask(ev SearchEvent) (Task, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Task{}, fmt.Errorf("encode search event: %w", err)
	}
	return Task{ID: ev.ID, Type: TaskTypeSearchLogged, Payload: payload, MaxAttempts: 3}, nil
}

// DecodeSearchEvent reads the payload of a TaskTypeSearchLogged task.
func DecodeSearchEvent(task Task) (SearchEvent, error) {
	if task.Type != TaskTypeSearchLogged {
		return SearchEvent{}, fmt.Errorf("unexpected task type %q", task.Type)
	}
	var ev SearchEvent
	if err := json.Unmarshal(task.Payload, &ev); err != nil {
		return SearchEvent{}, fmt.Errorf("decode search event: %w", err)
	}
	return ev, nil
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	return retry.Do(ctx, attempts, base, func(ctx context.Context) error {
		return q.Enqueue(ctx, task)
	})
}

// NoOpQueue drops every task. Used when no broker is configured.
type NoOpQueue struct{}

func NewNoOpQueue() *NoOpQueue { return &NoOpQueue{} }

func (NoOpQueue) Enqueue(context.Context, Task) error { return nil }

// Worker blocks until ctx is done; nothing is ever delivered.
func (NoOpQueue) Worker(ctx context.Context, _ TaskType, _ Handler) error {
	<-ctx.Done()
	return nil
}
