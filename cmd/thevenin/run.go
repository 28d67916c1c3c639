package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/config"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/export"
	"github.com/thevenin-xyz/go-thevenin/results"
	"github.com/thevenin-xyz/go-thevenin/simulation"
	"github.com/thevenin-xyz/go-thevenin/solver"
	"github.com/thevenin-xyz/go-thevenin/store"
)

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, "; ") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cellFlag := fs.String("cell", "default", "Built-in cell template")
	configFlag := fs.String("config", "", "Cell config YAML file (overrides --cell)")
	nameFlag := fs.String("name", "", "Cell name recorded in the output")
	output := fs.String("output", "", "Output file for results (required)")
	accuracy := fs.String("accuracy", "default", "Solver preset: default, accurate, fast")
	analyzeFlag := fs.Bool("analyze", true, "Compute automatic analysis")
	downsample := fs.Int("downsample", 150, "Target number of points for downsampled output")
	archive := fs.String("archive", "", "Also save the run to this archive database")

	var stepFlags multiFlag
	fs.Var(&stepFlags, "step", "Protocol step spec (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: thevenin run [options]

Simulate a multi-step protocol against an equivalent-circuit cell.

Step specs are comma-separated key=value lists:
  mode     current_A, current_C, voltage_V or power_W (required)
  value    constant demand value
  profile  CSV file with a time_s column and a column named after the mode
  seconds  step duration (required unless profile sets it)
  samples  output samples over the step (default 101)
  limit    gauge:value termination criterion (repeatable within the spec)

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Discharge at 1C for an hour or until 3.0 V
  thevenin run --step "mode=current_C,value=1,seconds=3600,limit=voltage_V:3.0" --output out.json

  # Rest, then hold 4.1 V
  thevenin run \
    --step "mode=current_A,value=0,seconds=600" \
    --step "mode=voltage_V,value=4.1,seconds=1800,limit=current_A:1.0" \
    --output out.json

  # Drive cycle from a measured power trace
  thevenin run --step "mode=power_W,profile=drive.csv" --output out.json
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *output == "" {
		fs.Usage()
		return fmt.Errorf("--output required")
	}
	if len(stepFlags) == 0 {
		fs.Usage()
		return fmt.Errorf("at least one --step required")
	}

	p, name, err := loadCell(*configFlag, *cellFlag, *nameFlag)
	if err != nil {
		return err
	}

	exp, err := buildExperiment(stepFlags)
	if err != nil {
		return err
	}

	opts, err := solverPreset(*accuracy)
	if err != nil {
		return err
	}

	sim, err := simulation.New(p)
	if err != nil {
		return fmt.Errorf("set up simulation: %w", err)
	}

	start := time.Now()
	sol, runErr := sim.RunWith(exp, simulation.RunOptions{Solver: opts})
	elapsed := time.Since(start).Seconds()

	builder := results.NewBuilder()
	builder.WithCell(p, name)
	builder.WithProtocol(exp)
	if sol != nil {
		builder.WithSolution(sol, "IDA", elapsed, *downsample)
	}
	if runErr != nil {
		builder.WithError(runErr)
	}
	res := builder.Build()

	if *analyzeFlag && sol != nil {
		res.Analysis = results.NewAnalyzer(res).ComputeAll()
	}

	if err := res.WriteJSON(*output); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if *archive != "" {
		db, err := store.Open(*archive)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.SaveRun(res)
		if err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
		fmt.Fprintf(os.Stderr, "  Archived as: %s\n", id)
	}

	fmt.Fprintf(os.Stderr, "Run complete\n")
	fmt.Fprintf(os.Stderr, "  Status: %s\n", res.Metadata.Status)
	fmt.Fprintf(os.Stderr, "  Points: %d\n", res.Results.Summary.Points)
	fmt.Fprintf(os.Stderr, "  Final time: %.1f s\n", res.Results.Summary.FinalTime)
	fmt.Fprintf(os.Stderr, "  Compute time: %.3fs\n", elapsed)
	fmt.Fprintf(os.Stderr, "  Output: %s\n", *output)

	if runErr != nil {
		return fmt.Errorf("run finished with solver failure: %w", runErr)
	}
	return nil
}

// loadCell resolves the cell parameters from either a config file or a
// built-in template.
func loadCell(configPath, template, name string) (cell.Params, string, error) {
	if configPath != "" {
		p, err := config.Load(configPath)
		if err != nil {
			return cell.Params{}, "", fmt.Errorf("load cell config: %w", err)
		}
		if name == "" {
			name = strings.TrimSuffix(configPath, ".yaml")
			name = strings.TrimSuffix(name, ".yml")
		}
		return p, name, nil
	}

	p, err := config.LoadTemplate(template)
	if err != nil {
		return cell.Params{}, "", err
	}
	if name == "" {
		name = template
	}
	return p, name, nil
}

func solverPreset(name string) (*solver.Options, error) {
	switch name {
	case "default", "":
		return solver.DefaultOptions(), nil
	case "accurate":
		return solver.AccurateOptions(), nil
	case "fast":
		return solver.FastOptions(), nil
	}
	return nil, fmt.Errorf("unknown accuracy preset %q (want default, accurate or fast)", name)
}

// buildExperiment turns step specs into a protocol.
func buildExperiment(specs []string) (*experiment.Experiment, error) {
	exp := experiment.New()
	for i, spec := range specs {
		if err := addStepSpec(exp, spec); err != nil {
			return nil, fmt.Errorf("step %d (%q): %w", i+1, spec, err)
		}
	}
	return exp, nil
}

func addStepSpec(exp *experiment.Experiment, spec string) error {
	var (
		mode    cell.Mode
		value   float64
		profile string
		seconds float64
		samples = 101
		limits  []cell.Limit
	)
	hasValue := false

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid entry %q (expected key=value)", part)
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])

		switch key {
		case "mode":
			mode = cell.Mode(val)
		case "value":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", val)
			}
			value = v
			hasValue = true
		case "profile":
			profile = val
		case "seconds":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid seconds %q", val)
			}
			seconds = v
		case "samples":
			n, err := strconv.Atoi(val)
			if err != nil || n < 2 {
				return fmt.Errorf("invalid samples %q", val)
			}
			samples = n
		case "limit":
			gv := strings.SplitN(val, ":", 2)
			if len(gv) != 2 {
				return fmt.Errorf("invalid limit %q (expected gauge:value)", val)
			}
			v, err := strconv.ParseFloat(gv[1], 64)
			if err != nil {
				return fmt.Errorf("invalid limit value %q", gv[1])
			}
			limits = append(limits, cell.Limit{Name: gv[0], Value: v})
		default:
			return fmt.Errorf("unknown key %q", key)
		}
	}

	if mode == "" {
		return fmt.Errorf("mode is required")
	}

	if profile != "" {
		prof, err := export.ReadProfile(profile, export.DefaultProfileConfig(string(mode)))
		if err != nil {
			return fmt.Errorf("read profile: %w", err)
		}
		if seconds == 0 {
			seconds = prof.Duration()
		}
		return exp.AddDynamicStep(mode, prof.Func(), experiment.Linspace(seconds, samples), limits...)
	}

	if !hasValue {
		return fmt.Errorf("value or profile is required")
	}
	if seconds <= 0 {
		return fmt.Errorf("seconds must be positive")
	}
	return exp.AddStep(mode, value, experiment.Linspace(seconds, samples), limits...)
}
