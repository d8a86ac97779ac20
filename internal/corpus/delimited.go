package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DelimitedOptions configures a delimited (csv/tsv) source.
type DelimitedOptions struct {
	Delimiter rune
	// Encoding is "utf-8", "latin1"/"iso-8859-1" or "windows-1252".
	Encoding string
	// Column names the text field; matched after NormalizeColumn.
	Column string
}

type delimitedSource struct {
	path string
	opts DelimitedOptions
}

// NewDelimitedSource reads the configured column of a delimited file.
func NewDelimitedSource(path string, opts DelimitedOptions) Source {
	return &delimitedSource{path: path, opts: opts}
}

func (s *delimitedSource) Name() string { return s.path }

func (s *delimitedSource) Load(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &DataFormatError{Source: s.path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()
	return ReadDelimited(ctx, s.path, f, s.opts)
}

// ReadDelimited reads one text entry per data row of r. The first row is the
// header. Rows missing the column or holding blank text yield "".
func ReadDelimited(ctx context.Context, name string, r io.Reader, opts DelimitedOptions) ([]string, error) {
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, &DataFormatError{Source: name, Reason: "unsupported encoding", Err: err}
	}
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = ';'
	}
	column := opts.Column
	if column == "" {
		column = "sentence"
	}

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DataFormatError{Source: name, Reason: "file is empty"}
	}
	if err != nil {
		return nil, &DataFormatError{Source: name, Reason: "unreadable header", Err: err}
	}
	want := NormalizeColumn(column)
	col := -1
	seen := make([]string, len(header))
	for i, h := range header {
		seen[i] = NormalizeColumn(h)
		if col < 0 && seen[i] == want {
			col = i
		}
	}
	if col < 0 {
		return nil, &DataFormatError{
			Source: name,
			Reason: fmt.Sprintf("column %q not found (have %s)", column, strings.Join(seen, ", ")),
		}
	}

	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataFormatError{Source: name, Reason: "unreadable row", Err: err}
		}
		if len(out)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := ""
		if col < len(rec) {
			text = strings.TrimSpace(rec[col])
		}
		out = append(out, text)
	}
	return out, nil
}

// NormalizeColumn folds header spellings such as "Sentence,,,,,," and
// "SENTENCE" to "sentence".
func NormalizeColumn(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimPrefix(h, "ï»¿") // UTF-8 BOM read as latin1
	h = strings.TrimSpace(h)
	h = strings.Trim(h, ",;\"' \t")
	return strings.ToLower(h)
}

// LookupEncoding maps an encoding name to a decoder; nil means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}

// ParseDelimiter accepts a single character, or "\t" / "tab".
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ';', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}
