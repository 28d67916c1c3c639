package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/thevenin-xyz/go-thevenin/simulation"
)

// WriteJSONL writes the solution to filename as JSON Lines, one object per
// sample. columns selects the variables as in WriteCSV.
func WriteJSONL(filename string, sol simulation.Solution, columns ...string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if err := WriteJSONLTo(f, sol, columns...); err != nil {
		return err
	}
	return f.Close()
}

// WriteJSONLTo writes the solution as JSON Lines to w.
func WriteJSONLTo(w io.Writer, sol simulation.Solution, columns ...string) error {
	cols, series, err := collect(sol, columns)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	record := make(map[string]float64, len(cols))
	for i := range sol.Time() {
		for j, name := range cols {
			record[name] = series[j][i]
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encoding row %d: %w", i, err)
		}
	}
	return bw.Flush()
}
