package embeddings

import (
	"context"
	"math"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder defines the embedding interface. Implementations must be safe for
// concurrent use and deterministic for a fixed model and input.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// Norm returns the Euclidean length of v.
func Norm(v Vector) float64 {
	return math.Sqrt(dot(v, v))
}

// Dot returns the dot product of a and b, or 0 if their lengths differ.
func Dot(a, b Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	return dot(a, b)
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|). It returns 0 for empty or
// mismatched vectors and when either vector has zero norm.
func CosineSimilarity(a, b Vector) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot(a, b) / (na * nb))
}

func dot(a, b Vector) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
