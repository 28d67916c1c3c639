package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thevenin-xyz/go-thevenin/results"
)

func analyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	output := fs.String("output", "", "Output file (default: rewrite input in place)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: thevenin analyze <results.json> [options]

Compute throughput, thermal and voltage analysis for an existing run.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("results file required")
	}

	inFile := fs.Arg(0)
	res, err := results.ReadJSON(inFile)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}

	res.Analysis = results.NewAnalyzer(res).ComputeAll()

	outFile := *output
	if outFile == "" {
		outFile = inFile
	}
	if err := res.WriteJSON(outFile); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Analysis written to %s\n", outFile)
	printAnalysis(res)
	return nil
}

func printAnalysis(res *results.Results) {
	a := res.Analysis
	if a == nil {
		return
	}
	if tp := a.Throughput; tp != nil {
		fmt.Printf("Throughput:\n")
		fmt.Printf("  Discharge: %.3f Ah, %.2f Wh\n", tp.DischargeCapacityAh, tp.DischargeEnergyWh)
		fmt.Printf("  Charge:    %.3f Ah, %.2f Wh\n", tp.ChargeCapacityAh, tp.ChargeEnergyWh)
		if tp.CoulombicEfficiency > 0 {
			fmt.Printf("  Coulombic efficiency: %.4f\n", tp.CoulombicEfficiency)
		}
		if tp.EnergyEfficiency > 0 {
			fmt.Printf("  Energy efficiency:    %.4f\n", tp.EnergyEfficiency)
		}
	}
	if th := a.Thermal; th != nil {
		fmt.Printf("Thermal:\n")
		fmt.Printf("  Range: %.2f K to %.2f K (rise %.2f K)\n", th.MinK, th.MaxK, th.RiseK)
	}
	if vr := a.Voltage; vr != nil {
		fmt.Printf("Voltage:\n")
		fmt.Printf("  Range: %.3f V to %.3f V\n", vr.MinV, vr.MaxV)
	}
}
