package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"mediabatch/internal/metadata"
)

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	dir := fs.String("dir", "", "directory to scan for media files")
	out := fs.String("out", "files.txt", "list file to write")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dir) == "" {
		fs.Usage()
		return errors.New("--dir is required")
	}

	paths, err := metadata.ScanMedia(*dir)
	if err != nil {
		return err
	}
	if err := metadata.WriteList(*out, paths); err != nil {
		return err
	}
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}

	if *jsonOut {
		return printJSON(struct {
			Out        string   `json:"out"`
			Files      []string `json:"files"`
			TotalBytes int64    `json:"total_bytes"`
		}{*out, paths, total})
	}
	kv("found", len(paths))
	kv("total_size", formatBytesIEC(total))
	kv("out", *out)
	for _, p := range paths[:min(5, len(paths))] {
		fmt.Println("  " + p)
	}
	return nil
}
