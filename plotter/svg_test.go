package plotter

import (
	"strings"
	"testing"

	"github.com/thevenin-xyz/go-thevenin/simulation"
)

func TestRenderBasicPlot(t *testing.T) {
	p := NewSVGPlotter(800, 600)
	p.SetTitle("Discharge").SetXLabel("Time [s]").SetYLabel("Voltage [V]")
	p.AddSeries([]float64{0, 1, 2, 3}, []float64{4.3, 4.2, 4.0, 3.8}, "voltage_V", "")

	svg := p.Render()

	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not an svg document: %.60s", svg)
	}
	for _, want := range []string{"Discharge", "Time [s]", "Voltage [V]", "voltage_V", "<path"} {
		if !strings.Contains(svg, want) {
			t.Errorf("missing %q", want)
		}
	}
	if p.LastPlot == nil {
		t.Fatal("LastPlot not recorded")
	}
	if p.LastPlot.Xmin >= 0 || p.LastPlot.Xmax <= 3 {
		t.Errorf("x range should pad beyond data: [%g, %g]", p.LastPlot.Xmin, p.LastPlot.Xmax)
	}
}

func TestRenderEmptyPlot(t *testing.T) {
	p := NewSVGPlotter(400, 300)
	svg := p.Render()
	if !strings.Contains(svg, "<svg") {
		t.Fatal("empty plot should still render a document")
	}
	// falls back to a unit range
	if p.LastPlot.Xmax <= p.LastPlot.Xmin {
		t.Errorf("degenerate x range: [%g, %g]", p.LastPlot.Xmin, p.LastPlot.Xmax)
	}
}

func TestRenderConstantSeries(t *testing.T) {
	p := NewSVGPlotter(400, 300)
	p.AddSeries([]float64{0, 1, 2}, []float64{3.7, 3.7, 3.7}, "", "")
	svg := p.Render()
	if !strings.Contains(svg, "<path") {
		t.Error("constant series should still produce a path")
	}
	if p.LastPlot.Ymax <= p.LastPlot.Ymin {
		t.Errorf("flat series needs an expanded y range: [%g, %g]", p.LastPlot.Ymin, p.LastPlot.Ymax)
	}
}

func TestDefaultColorPalette(t *testing.T) {
	p := NewSVGPlotter(400, 300)
	p.AddSeries([]float64{0, 1}, []float64{1, 2}, "a", "")
	p.AddSeries([]float64{0, 1}, []float64{2, 3}, "b", "")
	p.AddSeries([]float64{0, 1}, []float64{3, 4}, "c", "#123456")

	if p.Series[0].Color == p.Series[1].Color {
		t.Error("palette should assign distinct colors")
	}
	if p.Series[2].Color != "#123456" {
		t.Errorf("explicit color overridden: %s", p.Series[2].Color)
	}
}

func TestMarkers(t *testing.T) {
	p := NewSVGPlotter(400, 300)
	p.AddSeries([]float64{0, 10}, []float64{4.3, 3.0}, "voltage_V", "")
	p.AddMarker(7.5)
	p.AddMarker(999) // outside the x range, skipped

	svg := p.Render()
	if got := strings.Count(svg, "stroke-dasharray"); got != 1 {
		t.Errorf("got %d marker lines, want 1", got)
	}
}

func TestEscape(t *testing.T) {
	p := NewSVGPlotter(400, 300)
	p.SetTitle(`a<b & "c"`)
	p.AddSeries([]float64{0, 1}, []float64{0, 1}, "x<y", "")

	svg := p.Render()
	if strings.Contains(svg, "a<b") || strings.Contains(svg, "x<y") {
		t.Error("text content not escaped")
	}
	if !strings.Contains(svg, "a&lt;b &amp; &quot;c&quot;") {
		t.Error("escaped title missing")
	}
}

func TestPlotSolution(t *testing.T) {
	sol := &simulation.StepSolution{
		Success: true,
		T:       []float64{0, 1, 2},
		Vars: map[string][]float64{
			"time_s":        {0, 1, 2},
			"voltage_V":     {4.3, 4.1, 3.9},
			"temperature_K": {300, 300.5, 301},
		},
	}

	svg, data, err := PlotSolution(sol, nil, 800, 600, "Run", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(svg, "voltage_V") {
		t.Error("default variable should be voltage_V")
	}
	if len(data.Series) != 1 {
		t.Errorf("got %d series", len(data.Series))
	}

	svg, data, err = PlotSolution(sol, []string{"voltage_V", "temperature_K"}, 800, 600, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Series) != 2 || !strings.Contains(svg, "temperature_K") {
		t.Errorf("two-variable plot: %d series", len(data.Series))
	}

	if _, _, err := PlotSolution(sol, []string{"bogus"}, 800, 600, "", "", ""); err == nil {
		t.Error("unknown variable should fail")
	}
}

func TestPlotSolutionEventMarkers(t *testing.T) {
	cyc := &simulation.CycleSolution{
		Success: []bool{true},
		Status:  []int{2},
		T:       []float64{0, 5, 10},
		Vars: map[string][]float64{
			"voltage_V": {4.3, 4.0, 3.5},
		},
		EventT:     []float64{10},
		EventNames: []string{"voltage_V"},
		EventStep:  []int{0},
	}

	svg, _, err := PlotSolution(cyc, []string{"voltage_V"}, 800, 600, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(svg, "stroke-dasharray") {
		t.Error("event marker missing from cycle plot")
	}
}
