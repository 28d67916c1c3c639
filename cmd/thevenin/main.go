package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		if err := run(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "analyze":
		if err := analyze(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "summary":
		if err := summary(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "plot":
		if err := plot(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := exportCmd(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "sweep":
		if err := sweep(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "templates":
		if err := templates(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "runs":
		if err := runs(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("thevenin version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`thevenin - battery cell simulation tool

Usage:
  thevenin <command> [options]

Commands:
  run        Simulate a protocol against a cell and write results
  analyze    Compute insights from existing results
  summary    Display quick summary of results
  plot       Generate SVG plot from results
  export     Export result timeseries as CSV or JSONL
  sweep      Parameter sweep and optimization
  templates  List or write built-in cell templates
  runs       Manage the local run archive
  help       Show this help message
  version    Show version information

Examples:
  # One-hour 1C discharge with a voltage cutoff
  thevenin run --step "mode=current_C,value=1,seconds=3600,limit=voltage_V:3.0" --output results.json

  # Plot voltage and temperature
  thevenin plot results.json --vars voltage_V,temperature_K --output plot.svg

  # Sweep series resistance
  thevenin sweep --param R0_scale --min 0.5 --max 2 --steps 7 \
    --step "mode=current_C,value=1,seconds=3600" --output sweep.json

For command-specific help, run:
  thevenin <command> --help`)
}
