package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/thevenin-xyz/go-thevenin/export"
	"github.com/thevenin-xyz/go-thevenin/results"
)

func exportCmd(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("output", "", "Output file (required)")
	format := fs.String("format", "csv", "Output format: csv or jsonl")
	columns := fs.String("columns", "", "Comma-separated columns (default: all, alphabetical)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: thevenin export <results.json> [options]

Export the stored timeseries as a flat table.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  thevenin export results.json --output run.csv
  thevenin export results.json --format jsonl --columns time_s,voltage_V --output run.jsonl
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("results file required")
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("--output required")
	}

	res, err := results.ReadJSON(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}

	sol, err := solutionFromResults(res)
	if err != nil {
		return err
	}

	var cols []string
	for _, c := range strings.Split(*columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}

	switch *format {
	case "csv":
		err = export.WriteCSV(*output, sol, cols...)
	case "jsonl":
		err = export.WriteJSONL(*output, sol, cols...)
	default:
		return fmt.Errorf("unknown format %q (want csv or jsonl)", *format)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Exported %d samples to %s\n", len(sol.Time()), *output)
	return nil
}
