package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"sentence-search/internal/chunker"
)

// FileOptions configures FileSource for every supported format.
type FileOptions struct {
	Delimited DelimitedOptions
	// MaxTokens windows overlong sentences in free-text formats.
	MaxTokens int
}

// FileSource picks a Source by file extension: .csv and .tsv are delimited,
// .txt is plain text and .pdf is a PDF document.
func FileSource(path string, opts FileOptions) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewDelimitedSource(path, opts.Delimited), nil
	case ".tsv":
		d := opts.Delimited
		d.Delimiter = '\t'
		return NewDelimitedSource(path, d), nil
	case ".txt":
		return NewTextSource(path, opts.Delimited.Encoding, opts.MaxTokens), nil
	case ".pdf":
		return NewPDFSource(path, opts.MaxTokens), nil
	default:
		return nil, &DataFormatError{Source: path, Reason: "unsupported file type (csv, tsv, txt and pdf allowed)"}
	}
}

type textSource struct {
	path      string
	encoding  string
	maxTokens int
}

// NewTextSource splits a plain-text file into sentences.
func NewTextSource(path, encoding string, maxTokens int) Source {
	return &textSource{path: path, encoding: encoding, maxTokens: maxTokens}
}

func (s *textSource) Name() string { return s.path }

func (s *textSource) Load(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &DataFormatError{Source: s.path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()
	return ReadText(ctx, s.path, f, s.encoding, s.maxTokens)
}

// ReadText decodes r and returns its sentences.
func ReadText(ctx context.Context, name string, r io.Reader, encodingName string, maxTokens int) ([]string, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, &DataFormatError{Source: name, Reason: "unsupported encoding", Err: err}
	}
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, &DataFormatError{Source: name, Reason: "unreadable text", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sentences(string(content), maxTokens), nil
}

type pdfSource struct {
	path      string
	maxTokens int
}

// NewPDFSource extracts the text layer of a PDF and splits it into sentences.
func NewPDFSource(path string, maxTokens int) Source {
	return &pdfSource{path: path, maxTokens: maxTokens}
}

func (s *pdfSource) Name() string { return s.path }

func (s *pdfSource) Load(ctx context.Context) ([]string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &DataFormatError{Source: s.path, Reason: "cannot open file", Err: err}
	}
	text, err := extractPDF(ctx, content)
	if err != nil {
		return nil, &DataFormatError{Source: s.path, Reason: "pdf extraction failed", Err: err}
	}
	return sentences(text, s.maxTokens), nil
}

func extractPDF(ctx context.Context, content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}
	if textBuilder.Len() == 0 {
		return "", fmt.Errorf("no extractable text in %d pages", numPages)
	}
	return textBuilder.String(), nil
}

func sentences(text string, maxTokens int) []string {
	chunks := chunker.Sentences(text, chunker.Options{MaxTokens: maxTokens})
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
