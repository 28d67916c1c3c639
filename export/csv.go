// Package export moves solution data across the file boundary: solutions go
// out as CSV or JSONL tables, and measured load profiles (drive cycles,
// logged current traces) come in as CSV to drive dynamic experiment steps.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/thevenin-xyz/go-thevenin/simulation"
)

// WriteCSV writes the solution to filename, one row per sample. columns
// selects and orders the output variables; leave it empty for every
// variable in alphabetical order.
func WriteCSV(filename string, sol simulation.Solution, columns ...string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if err := WriteCSVTo(f, sol, columns...); err != nil {
		return err
	}
	return f.Close()
}

// WriteCSVTo writes the solution as CSV to w.
func WriteCSVTo(w io.Writer, sol simulation.Solution, columns ...string) error {
	cols, series, err := collect(sol, columns)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(cols))
	for i := range sol.Time() {
		for j, v := range series {
			row[j] = strconv.FormatFloat(v[i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// collect resolves the column selection against the solution and checks that
// every series is aligned with the time vector.
func collect(sol simulation.Solution, columns []string) ([]string, [][]float64, error) {
	cols := columns
	if len(cols) == 0 {
		cols = sol.VarNames()
		sort.Strings(cols)
	}
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("solution has no variables")
	}

	n := len(sol.Time())
	series := make([][]float64, len(cols))
	for j, name := range cols {
		v, ok := sol.Var(name)
		if !ok {
			return nil, nil, fmt.Errorf("unknown variable %q; available: %v",
				name, sol.VarNames())
		}
		if len(v) != n {
			return nil, nil, fmt.Errorf("variable %q has %d samples, time has %d",
				name, len(v), n)
		}
		series[j] = v
	}
	return cols, series, nil
}

// ProfileConfig configures measured-profile CSV parsing.
type ProfileConfig struct {
	TimeColumn  string // column with per-step time in seconds (required)
	ValueColumn string // column with the demand value (required)
	Delimiter   rune   // default comma
	SkipRows    int    // header rows to skip before the column row
}

// DefaultProfileConfig returns a configuration reading time_s plus the given
// value column.
func DefaultProfileConfig(valueColumn string) ProfileConfig {
	return ProfileConfig{
		TimeColumn:  "time_s",
		ValueColumn: valueColumn,
		Delimiter:   ',',
	}
}

// Profile is a sampled load trace.
type Profile struct {
	T []float64
	V []float64
}

// Duration returns the last sample time.
func (p *Profile) Duration() float64 {
	if len(p.T) == 0 {
		return 0
	}
	return p.T[len(p.T)-1]
}

// Func returns the profile as a load function with linear interpolation
// between samples, clamped at both ends. Suitable for AddDynamicStep.
func (p *Profile) Func() func(t float64) float64 {
	ts := append([]float64(nil), p.T...)
	vs := append([]float64(nil), p.V...)
	return func(t float64) float64 {
		if t <= ts[0] {
			return vs[0]
		}
		if t >= ts[len(ts)-1] {
			return vs[len(vs)-1]
		}
		i := sort.SearchFloat64s(ts, t)
		frac := (t - ts[i-1]) / (ts[i] - ts[i-1])
		return vs[i-1] + frac*(vs[i]-vs[i-1])
	}
}

// ReadProfile parses a measured load profile from a CSV file.
func ReadProfile(filename string, config ProfileConfig) (*Profile, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return ReadProfileReader(f, config)
}

// ReadProfileReader parses a measured load profile from a CSV reader.
func ReadProfileReader(r io.Reader, config ProfileConfig) (*Profile, error) {
	if config.TimeColumn == "" {
		return nil, fmt.Errorf("TimeColumn is required")
	}
	if config.ValueColumn == "" {
		return nil, fmt.Errorf("ValueColumn is required")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if config.Delimiter != 0 {
		reader.Comma = config.Delimiter
	}

	for i := 0; i < config.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("skipping row %d: %w", i, err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	timeIdx, ok := colIndex[strings.ToLower(config.TimeColumn)]
	if !ok {
		return nil, fmt.Errorf("time column %q not found in header: %v", config.TimeColumn, header)
	}
	valueIdx, ok := colIndex[strings.ToLower(config.ValueColumn)]
	if !ok {
		return nil, fmt.Errorf("value column %q not found in header: %v", config.ValueColumn, header)
	}

	p := &Profile{}
	lineNum := config.SkipRows + 2
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", lineNum, err)
		}
		if len(record) <= timeIdx || len(record) <= valueIdx {
			return nil, fmt.Errorf("line %d: insufficient columns", lineNum)
		}

		t, err := strconv.ParseFloat(strings.TrimSpace(record[timeIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q", lineNum, record[timeIdx])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[valueIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", lineNum, record[valueIdx])
		}
		if len(p.T) > 0 && t <= p.T[len(p.T)-1] {
			return nil, fmt.Errorf("line %d: time %g is not increasing", lineNum, t)
		}
		p.T = append(p.T, t)
		p.V = append(p.V, v)
		lineNum++
	}

	if len(p.T) < 2 {
		return nil, fmt.Errorf("profile needs at least two samples, got %d", len(p.T))
	}
	return p, nil
}
