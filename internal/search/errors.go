package search

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned for empty or whitespace-only queries.
var ErrEmptyQuery = errors.New("query is empty")

// ErrNilEmbedder is returned by New without an embedder.
var ErrNilEmbedder = errors.New("embedder required")

// EmbeddingError reports that the model could not encode an input.
// Index is the corpus entry for build failures and -1 for queries.
type EmbeddingError struct {
	Index int
	Err   error
}

func (e *EmbeddingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("embedding query failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding corpus entry %d failed: %v", e.Index, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
