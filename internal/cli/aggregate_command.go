package cli

import (
	"errors"
	"flag"
	"strings"

	"mediabatch/internal/metadata"
)

func runAggregate(args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	var transcriptDirs stringList
	fs.Var(&transcriptDirs, "transcripts", "transcript directory, repeatable (later dirs win on duplicate ids)")
	var tables stringList
	fs.Var(&tables, "table", "metadata table as label=path, repeatable")
	out := fs.String("out", "", "output file (.csv or .xlsx)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(transcriptDirs) == 0 || len(tables) == 0 || strings.TrimSpace(*out) == "" {
		fs.Usage()
		return errors.New("--transcripts, --table and --out are required")
	}

	sources := make([]metadata.Source, 0, len(tables))
	for _, raw := range tables {
		src, err := metadata.ParseSource(raw)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	texts, err := metadata.LoadTranscripts(transcriptDirs...)
	if err != nil {
		return err
	}
	stats, err := metadata.Aggregate(sources, texts, *out)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(struct {
			Out string `json:"out"`
			metadata.AggregateStats
		}{*out, stats})
	}
	kv("out", *out)
	kv("transcripts_loaded", len(texts))
	kv("rows", stats.Rows)
	kv("matched", stats.Matched)
	kv("missing", stats.Missing)
	return nil
}
