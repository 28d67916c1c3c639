package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thevenin-xyz/go-thevenin/results"
	"github.com/thevenin-xyz/go-thevenin/store"
)

func runs(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	db := fs.String("db", "thevenin.db", "Archive database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: thevenin runs <action> [options]

Manage the local run archive.

Actions:
  list               Show archived runs, newest first
  show <id>          Print the summary of one archived run
  save <results.json>  Archive an existing results file
  export <id> <file>   Write an archived run back out as results JSON
  delete <id>        Remove a run from the archive

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("action required")
	}

	s, err := store.Open(*db)
	if err != nil {
		return err
	}
	defer s.Close()

	switch action := fs.Arg(0); action {
	case "list":
		infos, err := s.ListRuns()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No archived runs.")
			return nil
		}
		fmt.Printf("%-36s  %-20s  %-12s  %-8s  %5s  %10s\n",
			"ID", "CREATED", "CELL", "STATUS", "STEPS", "DURATION")
		for _, info := range infos {
			fmt.Printf("%-36s  %-20s  %-12s  %-8s  %5d  %8.1f s\n",
				info.ID, info.CreatedAt.Format("2006-01-02 15:04:05"),
				info.CellName, info.Status, info.Steps, info.FinalTime)
		}
		return nil

	case "show":
		if fs.NArg() < 2 {
			return fmt.Errorf("show requires a run id")
		}
		res, err := s.LoadRun(fs.Arg(1))
		if err != nil {
			return err
		}
		printArchived(res)
		return nil

	case "save":
		if fs.NArg() < 2 {
			return fmt.Errorf("save requires a results file")
		}
		res, err := results.ReadJSON(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("read results: %w", err)
		}
		id, err := s.SaveRun(res)
		if err != nil {
			return err
		}
		fmt.Printf("Archived as %s\n", id)
		return nil

	case "export":
		if fs.NArg() < 3 {
			return fmt.Errorf("export requires a run id and an output file")
		}
		res, err := s.LoadRun(fs.Arg(1))
		if err != nil {
			return err
		}
		if err := res.WriteJSON(fs.Arg(2)); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Run written to %s\n", fs.Arg(2))
		return nil

	case "delete":
		if fs.NArg() < 2 {
			return fmt.Errorf("delete requires a run id")
		}
		if err := s.DeleteRun(fs.Arg(1)); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", fs.Arg(1))
		return nil

	default:
		fs.Usage()
		return fmt.Errorf("unknown action %q", action)
	}
}

func printArchived(res *results.Results) {
	fmt.Printf("Cell: %s (%.1f Ah)\n", res.Cell.Name, res.Cell.CapacityAh)
	fmt.Printf("Status: %s\n", res.Metadata.Status)
	fmt.Printf("Steps: %d, points: %d, duration: %.1f s\n",
		len(res.Protocol), res.Results.Summary.Points, res.Results.Summary.FinalTime)
	printAnalysis(res)
}
