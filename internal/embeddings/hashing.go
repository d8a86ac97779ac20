package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashDimensions = 384

// HashEmbedder is an offline embedder using signed feature hashing over
// lower-cased word tokens. It only captures lexical overlap, but it is
// deterministic and needs no model server.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a HashEmbedder producing dim-sized unit vectors.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultHashDimensions
	}
	return &HashEmbedder{dim: dim}
}

// Dimensions reports the vector size.
func (h *HashEmbedder) Dimensions() int { return h.dim }

func (h *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	return h.vector(text), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) Vector {
	vec := make(Vector, h.dim)
	for _, tok := range tokenize(text) {
		f := fnv.New64a()
		f.Write([]byte(tok))
		sum := f.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(h.dim)] += sign
	}
	n := Norm(vec)
	if n == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / n)
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
