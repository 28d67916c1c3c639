package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/thevenin-xyz/go-thevenin/results"
)

func summary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: thevenin summary <results.json>\n\nDisplay a quick overview of a stored run.\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("results file required")
	}

	res, err := results.ReadJSON(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}

	fmt.Printf("Run: %s\n", res.Cell.Name)
	fmt.Printf("  Status:   %s\n", res.Metadata.Status)
	if res.Metadata.Error != "" {
		fmt.Printf("  Error:    %s\n", res.Metadata.Error)
	}
	fmt.Printf("  Solver:   %s\n", res.Metadata.Solver)
	fmt.Printf("  Steps:    %d\n", len(res.Protocol))
	fmt.Printf("  Points:   %d\n", res.Results.Summary.Points)
	fmt.Printf("  Duration: %.1f s\n", res.Results.Summary.FinalTime)

	fmt.Printf("Cell:\n")
	fmt.Printf("  Capacity: %.1f Ah, %d RC pairs, soc0 %.2f\n",
		res.Cell.CapacityAh, res.Cell.NumRCPairs, res.Cell.SOC0)
	if res.Cell.Isothermal {
		fmt.Printf("  Isothermal at %.1f K\n", res.Cell.TInfK)
	} else {
		fmt.Printf("  Ambient %.1f K\n", res.Cell.TInfK)
	}

	if fState := res.Results.Summary.FinalState; len(fState) > 0 {
		names := make([]string, 0, len(fState))
		for name := range fState {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("Final state:\n")
		for _, name := range names {
			fmt.Printf("  %-16s %g\n", name, fState[name])
		}
	}

	if len(res.Events) > 0 {
		fmt.Printf("Events:\n")
		for _, ev := range res.Events {
			fmt.Printf("  t=%.1f s  step %d hit %s limit\n", ev.Time, ev.Step+1, ev.Gauge)
		}
	}

	printAnalysis(res)
	return nil
}
