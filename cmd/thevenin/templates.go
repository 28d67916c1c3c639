package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thevenin-xyz/go-thevenin/config"
)

func templates(args []string) error {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	write := fs.String("write", "", "Write template YAML files to this directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: thevenin templates [options]

List the built-in cell templates, or write them out as editable YAML.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *write != "" {
		if err := os.MkdirAll(*write, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
		if err := config.WriteTemplates(*write); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Templates written to %s\n", *write)
		return nil
	}

	for _, name := range config.ListTemplates() {
		p, err := config.LoadTemplate(name)
		if err != nil {
			return err
		}
		thermal := "thermal"
		if p.Isothermal {
			thermal = "isothermal"
		}
		fmt.Printf("%-12s %5.1f Ah, %d RC pairs, soc0 %.2f, %s\n",
			name, p.Capacity, p.NumRCPairs, p.SOC0, thermal)
	}
	return nil
}
