// Command profilecsv loads a tabular file and prints its profile report as
// JSON, or re-exports it as CSV. Useful for inspecting files without
// running the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"aegis/internal/loader"
	"aegis/internal/profiler"
)

func main() {
	var (
		inPath    = flag.String("in", "", "input file (csv, xlsx, xpt or zip)")
		format    = flag.String("format", "", "declared format, default sniffed from extension")
		exportCSV = flag.Bool("export", false, "print the dataset as CSV instead of the profile")
	)
	flag.Parse()

	if err := run(*inPath, *format, *exportCSV); err != nil {
		fmt.Fprintf(os.Stderr, "profilecsv: %v\n", err)
		os.Exit(1)
	}
}

func run(inPath, declared string, exportCSV bool) error {
	if inPath == "" {
		return fmt.Errorf("-in is required")
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	format := loader.Format(declared)
	if format == "" {
		sniffed, ok := loader.DetectFormat(inPath)
		if !ok {
			return fmt.Errorf("cannot sniff format of %q, pass -format", inPath)
		}
		format = sniffed
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ldr := loader.New(logger, loader.Config{})

	res := ldr.Load(context.Background(), inPath, data, format)
	if res.Err != nil {
		return fmt.Errorf("load: %s", res.Err.Error())
	}

	if res.Entries != nil {
		return printJSON(map[string]interface{}{
			"entries": res.Entries,
			"count":   len(res.Entries),
		})
	}

	if exportCSV {
		out, err := res.Dataset.MarshalCSV()
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	return printJSON(profiler.Profile(res.Dataset))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
