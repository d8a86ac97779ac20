package chunker

import (
	"strings"
	"testing"
)

func TestSentencesSplitsOnTerminators(t *testing.T) {
	text := "Harry cast a spell. Ron ate   breakfast!\nDid Hermione read a book? Yes"
	chunks := Sentences(text, Options{})

	want := []string{
		"Harry cast a spell.",
		"Ron ate breakfast!",
		"Did Hermione read a book?",
		"Yes",
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d: got %q, want %q", i, chunks[i].Text, w)
		}
		if chunks[i].Index != i {
			t.Errorf("chunk %d: got index %d", i, chunks[i].Index)
		}
	}
	if chunks[0].TokenCount != 4 {
		t.Errorf("expected token count 4, got %d", chunks[0].TokenCount)
	}
}

func TestSentencesKeepsClosingQuotesAndDecimals(t *testing.T) {
	chunks := Sentences(`"It costs 3.5 Galleons." He paid...`+" Then left.", Options{})
	want := []string{`"It costs 3.5 Galleons."`, "He paid...", "Then left."}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d: got %q, want %q", i, chunks[i].Text, w)
		}
	}
}

func TestSentencesEmptyInput(t *testing.T) {
	chunks := Sentences("  \n\t ", Options{MaxTokens: 10})
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for blank input, got %d", len(chunks))
	}
}

func TestSentencesWindowsLongSentence(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	chunks := Sentences(text, Options{MaxTokens: 4, Overlap: 1})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "one two three four" || chunks[1].Text != "four five six seven" {
		t.Errorf("unexpected windows: %q, %q", chunks[0].Text, chunks[1].Text)
	}
	for _, c := range chunks {
		if c.TokenCount > 4 {
			t.Errorf("chunk exceeded max tokens: %d", c.TokenCount)
		}
	}
}

func TestSentencesNoOverlap(t *testing.T) {
	text := "one two three four five six."
	chunks := Sentences(text, Options{MaxTokens: 3, Overlap: 0})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Text != "four five six." {
		t.Errorf("unexpected second chunk %q", chunks[1].Text)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("word ", 10)
	if got := Truncate(long, 3); got != "word word word" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("  keep   spacing ", 5); got != "  keep   spacing " {
		t.Errorf("expected unchanged text within limit, got %q", got)
	}
	if got := Truncate(long, 0); got != long {
		t.Error("expected no truncation when disabled")
	}
}
