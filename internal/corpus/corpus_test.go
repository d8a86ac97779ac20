package corpus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type staticSource struct {
	name    string
	entries []string
	err     error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Load(context.Context) ([]string, error) { return s.entries, s.err }

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestReadDelimitedHeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
		want   []string
	}{
		{
			name:   "plain header",
			input:  "Chapter;Sentence\n1;Harry cast a spell.\n2;Ron ate breakfast.\n",
			column: "Sentence",
			want:   []string{"Harry cast a spell.", "Ron ate breakfast."},
		},
		{
			name:   "header with trailing commas",
			input:  "Sentence,,,,,,\nHermione read a book.,,,,,,\n",
			column: "sentence",
			want:   []string{"Hermione read a book.,,,,,,"},
		},
		{
			name:   "upper case header",
			input:  "ID;SENTENCE\n7;Dobby is free.\n",
			column: "sentence",
			want:   []string{"Dobby is free."},
		},
		{
			name:   "byte order mark and quotes",
			input:  "\ufeff\"Sentence\"\n\"Quoted; with delimiter\"\n",
			column: "sentence",
			want:   []string{"Quoted; with delimiter"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadDelimited(context.Background(), tt.name, strings.NewReader(tt.input), DelimitedOptions{
				Delimiter: ';',
				Encoding:  "utf-8",
				Column:    tt.column,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadDelimitedRetainsEmptyRows(t *testing.T) {
	input := "Sentence;Note\nFirst.;a\n;b\n   ;c\nLast.;d\n"
	got, err := ReadDelimited(context.Background(), "t", strings.NewReader(input), DelimitedOptions{Delimiter: ';', Column: "Sentence"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"First.", "", "", "Last."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadDelimitedShortRowYieldsEmpty(t *testing.T) {
	input := "ID;Sentence\n1;Kept.\n2\n"
	got, err := ReadDelimited(context.Background(), "t", strings.NewReader(input), DelimitedOptions{Delimiter: ';', Column: "sentence"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Kept.", ""}) {
		t.Errorf("got %q", got)
	}
}

func TestReadDelimitedLatin1(t *testing.T) {
	input := []byte("Sentence\nCaf\xe9 au lait.\n")
	got, err := ReadDelimited(context.Background(), "t", bytes.NewReader(input), DelimitedOptions{Encoding: "latin1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "Café au lait." {
		t.Errorf("got %q", got)
	}
}

func TestReadDelimitedErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  DelimitedOptions
	}{
		{"missing column", "Text;Other\nx;y\n", DelimitedOptions{Column: "sentence"}},
		{"empty file", "", DelimitedOptions{}},
		{"unknown encoding", "Sentence\nx\n", DelimitedOptions{Encoding: "ebcdic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDelimited(context.Background(), "bad.csv", strings.NewReader(tt.input), tt.opts)
			var dfe *DataFormatError
			if !errors.As(err, &dfe) {
				t.Fatalf("expected DataFormatError, got %v", err)
			}
			if dfe.Source != "bad.csv" {
				t.Errorf("expected source bad.csv, got %q", dfe.Source)
			}
		})
	}
}

func TestNormalizeColumn(t *testing.T) {
	tests := map[string]string{
		"Sentence,,,,,,": "sentence",
		"SENTENCE":       "sentence",
		" Sentence ":     "sentence",
		"\ufeffSentence": "sentence",
		"ï»¿Sentence":    "sentence",
		"Chapter Name":   "chapter name",
	}
	for in, want := range tests {
		if got := NormalizeColumn(in); got != want {
			t.Errorf("NormalizeColumn(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", ';', false},
		{";", ';', false},
		{",", ',', false},
		{`\t`, '\t', false},
		{"tab", '\t', false},
		{";;", 0, true},
		{`"`, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDelimiter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadMergesSourcesInOrder(t *testing.T) {
	c, err := Load(context.Background(), LoadOptions{Log: quietLog()},
		staticSource{name: "hp1", entries: []string{"a", ""}},
		staticSource{name: "hp2", entries: []string{"b"}},
		staticSource{name: "hp3", entries: []string{"c"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "", "b", "c"}
	if !reflect.DeepEqual(c.Sentences(), want) {
		t.Errorf("got %q, want %q", c.Sentences(), want)
	}
	if c.Len() != 4 || c.At(2) != "b" {
		t.Errorf("unexpected Len/At: %d %q", c.Len(), c.At(2))
	}
}

func TestLoadDropEmpty(t *testing.T) {
	c, err := Load(context.Background(), LoadOptions{DropEmpty: true, Log: quietLog()},
		staticSource{name: "s", entries: []string{"a", " ", "", "b"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(c.Sentences(), []string{"a", "b"}) {
		t.Errorf("got %q", c.Sentences())
	}
}

func TestLoadErrors(t *testing.T) {
	boom := &DataFormatError{Source: "hp2", Reason: "column \"sentence\" not found"}
	tests := []struct {
		name    string
		sources []Source
	}{
		{"no sources", nil},
		{"failing source", []Source{staticSource{name: "hp1", entries: []string{"a"}}, staticSource{name: "hp2", err: boom}}},
		{"empty corpus", []Source{staticSource{name: "hp1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), LoadOptions{Log: quietLog()}, tt.sources...)
			var dfe *DataFormatError
			if !errors.As(err, &dfe) {
				t.Fatalf("expected DataFormatError, got %v", err)
			}
		})
	}
}

func TestCorpusIsImmutable(t *testing.T) {
	in := []string{"x", "y"}
	c := New(in)
	in[0] = "changed"
	out := c.Sentences()
	out[1] = "changed"
	if c.At(0) != "x" || c.At(1) != "y" {
		t.Errorf("corpus mutated through caller slices: %q", c.Sentences())
	}
}

func TestFingerprint(t *testing.T) {
	a := New([]string{"ab", "c"})
	b := New([]string{"ab", "c"})
	c := New([]string{"a", "bc"})
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected equal corpora to share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("expected entry boundaries to affect the fingerprint")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("expected hex sha256, got %q", a.Fingerprint())
	}
}

func TestFileSourceByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "Harry Potter 3.csv")
	if err := os.WriteFile(csvPath, []byte("SENTENCE\nHarry cast a spell.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tsvPath := filepath.Join(dir, "book.tsv")
	if err := os.WriteFile(tsvPath, []byte("id\tsentence\n1\tRon ate breakfast.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	txtPath := filepath.Join(dir, "book.txt")
	if err := os.WriteFile(txtPath, []byte("Hermione read a book. Then she slept."), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := FileOptions{Delimited: DelimitedOptions{Delimiter: ';', Encoding: "utf-8", Column: "sentence"}}
	tests := []struct {
		path string
		want []string
	}{
		{csvPath, []string{"Harry cast a spell."}},
		{tsvPath, []string{"Ron ate breakfast."}},
		{txtPath, []string{"Hermione read a book.", "Then she slept."}},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			src, err := FileSource(tt.path, opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.Name() != tt.path {
				t.Errorf("expected name %q, got %q", tt.path, src.Name())
			}
			got, err := src.Load(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileSourceErrors(t *testing.T) {
	var dfe *DataFormatError
	if _, err := FileSource("notes.docx", FileOptions{}); !errors.As(err, &dfe) {
		t.Errorf("expected DataFormatError for unsupported extension, got %v", err)
	}

	src, err := FileSource(filepath.Join(t.TempDir(), "missing.csv"), FileOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.Load(context.Background()); !errors.As(err, &dfe) {
		t.Errorf("expected DataFormatError for missing file, got %v", err)
	}

	pdfPath := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(pdfPath, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, _ = FileSource(pdfPath, FileOptions{})
	if _, err := src.Load(context.Background()); !errors.As(err, &dfe) {
		t.Errorf("expected DataFormatError for broken pdf, got %v", err)
	}
}

func TestReadTextLatin1(t *testing.T) {
	got, err := ReadText(context.Background(), "t", bytes.NewReader([]byte("Na\xefve wizard. Done.")), "latin1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Naïve wizard.", "Done."}) {
		t.Errorf("got %q", got)
	}
}

func TestSelectQuery(t *testing.T) {
	tests := []struct {
		table, column, orderBy string
		want                   string
	}{
		{"sentences", "sentence", "id", `SELECT "sentence" FROM "sentences" ORDER BY "id"`},
		{"public.hp", "SENTENCE", "", `SELECT "SENTENCE" FROM "public"."hp"`},
		{`evil"; drop`, "text", "id", `SELECT "text" FROM "evil""; drop" ORDER BY "id"`},
	}
	for _, tt := range tests {
		if got := selectQuery(tt.table, tt.column, tt.orderBy); got != tt.want {
			t.Errorf("selectQuery(%q, %q, %q) = %s, want %s", tt.table, tt.column, tt.orderBy, got, tt.want)
		}
	}
}

func TestNewPostgresSourceRequiresTableAndColumn(t *testing.T) {
	if _, err := NewPostgresSource("postgres://localhost/db", "", "sentence", "id"); err == nil {
		t.Error("expected error without table")
	}
	src, err := NewPostgresSource("postgres://localhost/db", "sentences", "sentence", "id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Close()
	if src.Name() != "postgres:sentences" {
		t.Errorf("unexpected name %q", src.Name())
	}
}
