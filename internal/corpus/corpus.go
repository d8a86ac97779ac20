package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Corpus is an immutable, ordered list of searchable sentences.
type Corpus struct {
	sentences   []string
	fingerprint string
}

// New copies sentences into a Corpus and fingerprints its contents.
func New(sentences []string) Corpus {
	cp := append([]string(nil), sentences...)
	h := sha256.New()
	for _, s := range cp {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return Corpus{sentences: cp, fingerprint: hex.EncodeToString(h.Sum(nil))}
}

func (c Corpus) Len() int { return len(c.sentences) }

// At returns the sentence at index i.
func (c Corpus) At(i int) string { return c.sentences[i] }

// Sentences returns a copy of the entries in index order.
func (c Corpus) Sentences() []string { return append([]string(nil), c.sentences...) }

// Fingerprint is a SHA-256 over the entries; equal corpora share it.
func (c Corpus) Fingerprint() string { return c.fingerprint }

// Source yields sentences from one external location.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]string, error)
}

// DataFormatError reports a source that is unreadable or lacks the text field.
type DataFormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	msg := "data format error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// LoadOptions controls Load.
type LoadOptions struct {
	// DropEmpty removes blank entries instead of keeping them as "".
	DropEmpty bool
	Log       *slog.Logger
}

// Load reads every source in order and concatenates their entries into one
// Corpus. Any failing source, or an empty result, is a DataFormatError.
func Load(ctx context.Context, opts LoadOptions, sources ...Source) (Corpus, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if len(sources) == 0 {
		return Corpus{}, &DataFormatError{Reason: "no corpus sources configured"}
	}
	var all []string
	for _, src := range sources {
		entries, err := src.Load(ctx)
		if err != nil {
			return Corpus{}, fmt.Errorf("load %s: %w", src.Name(), err)
		}
		log.Info("corpus source loaded", "source", src.Name(), "entries", len(entries))
		all = append(all, entries...)
	}
	if opts.DropEmpty {
		kept := all[:0]
		for _, s := range all {
			if strings.TrimSpace(s) != "" {
				kept = append(kept, s)
			}
		}
		if dropped := len(all) - len(kept); dropped > 0 {
			log.Info("dropped empty corpus entries", "count", dropped)
		}
		all = kept
	}
	if len(all) == 0 {
		return Corpus{}, &DataFormatError{Reason: "corpus is empty"}
	}
	return New(all), nil
}
