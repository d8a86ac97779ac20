package chunker

import (
	"strings"
	"unicode"
)

// Options controls how text is split into sentences.
type Options struct {
	// MaxTokens caps a single sentence; longer ones are windowed. 0 disables the cap.
	MaxTokens int
	Overlap   int
}

// Chunk represents one searchable unit of the source text.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

// Sentences splits free text into sentences on '.', '!' and '?' followed by
// whitespace (closing quotes and brackets stay with their sentence).
// Whitespace inside a sentence is collapsed. Tokens are approximated by
// whitespace-delimited words.
func Sentences(text string, opts Options) []Chunk {
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	var chunks []Chunk
	for _, s := range splitSentences(text) {
		words := strings.Fields(s)
		if len(words) == 0 {
			continue
		}
		if opts.MaxTokens <= 0 || len(words) <= opts.MaxTokens {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: strings.Join(words, " "), TokenCount: len(words)})
			continue
		}
		chunks = appendWindows(chunks, words, opts)
	}
	return chunks
}

// appendWindows performs a token-based sliding window with overlap.
func appendWindows(chunks []Chunk, words []string, opts Options) []Chunk {
	step := opts.MaxTokens - opts.Overlap
	if step <= 0 {
		step = opts.MaxTokens
	}
	for start := 0; start < len(words); start += step {
		end := start + opts.MaxTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       strings.Join(words[start:end], " "),
			TokenCount: end - start,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && strings.ContainsRune(`.!?"')]`+"”’", runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		out = append(out, string(runes[start:end]))
		start = end
		i = end - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// Truncate keeps at most maxTokens whitespace-delimited words of text.
// Text within the limit is returned unchanged; maxTokens <= 0 disables it.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}
