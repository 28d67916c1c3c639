package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/thevenin-xyz/go-thevenin/plotter"
	"github.com/thevenin-xyz/go-thevenin/results"
)

func plot(args []string) error {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	output := fs.String("output", "", "Output SVG file (required)")
	vars := fs.String("vars", "voltage_V", "Comma-separated variables to plot")
	title := fs.String("title", "", "Plot title (default: cell name)")
	xlabel := fs.String("xlabel", "Time [s]", "X-axis label")
	ylabel := fs.String("ylabel", "", "Y-axis label")
	width := fs.Float64("width", 800, "Plot width in pixels")
	height := fs.Float64("height", 600, "Plot height in pixels")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: thevenin plot <results.json> [options]

Generate an SVG plot from stored run results.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  thevenin plot results.json --output voltage.svg
  thevenin plot results.json --vars voltage_V,temperature_K --output plot.svg
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

	plotTitle := *title
	if plotTitle == "" {
		plotTitle = res.Cell.Name
	}

	var variables []string
	for _, v := range strings.Split(*vars, ",") {
		if v = strings.TrimSpace(v); v != "" {
			variables = append(variables, v)
		}
	}

	svg, _, err := plotter.PlotSolution(sol, variables, *width, *height, plotTitle, *xlabel, *ylabel)
	if err != nil {
		return err
	}

	if err := os.WriteFile(*output, []byte(svg), 0644); err != nil {
		return fmt.Errorf("write SVG: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Plot written to %s\n", *output)
	return nil
}
