package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"sentence-search/internal/app"
	"sentence-search/internal/logger"
	"sentence-search/internal/search"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "search",
		Usage:     "Print the corpus sentences most similar to a query",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "query",
				Aliases:  []string{"q"},
				Usage:    "Free-text query",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "top-k",
				Aliases: []string{"k"},
				Usage:   "Number of results (0 uses TOP_K)",
			},
			&cli.StringSliceFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Corpus file (csv, tsv, txt or pdf); repeat to merge. Overrides CORPUS_FILES",
			},
			&cli.StringFlag{
				Name:  "embedding-provider",
				Usage: "openai or hashing. Overrides EMBEDDING_PROVIDER",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Action: searchCommand,
	}
}

func searchCommand(c *cli.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if c.IsSet("file") {
		cfg.CorpusProvider = "file"
		cfg.CorpusFiles = c.StringSlice("file")
	}
	if c.IsSet("embedding-provider") {
		cfg.EmbeddingProvider = c.String("embedding-provider")
	}
	log := logger.NewWithWriter(c.App.ErrWriter, cfg.LogLevel)

	deps, err := app.BuildWith(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	results, err := deps.Engine.Search(c.Context, c.String("query"), c.Int("top-k"))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(c.App.Writer, results)
	return nil
}

func printResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%.4f] %s\n", i+1, r.Score, r.Sentence)
	}
}
