// Package report renders charts of suppression runs and emitted
// constraints: a PNG line plot through gonum/plot and an HTML page through
// go-echarts.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/banshee-data/sensorbelief/internal/network"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series is one named line, indexed by epoch.
type Series struct {
	Name   string
	Values []float64
}

// TransmissionSeries returns, per cluster, the number of values sent at each
// epoch.
func TransmissionSeries(results []network.SuppressResult) []Series {
	out := make([]Series, 0, len(results))
	for _, r := range results {
		s := Series{Name: fmt.Sprintf("cluster %d", r.Cluster), Values: make([]float64, len(r.Decisions))}
		for i, d := range r.Decisions {
			s.Values[i] = float64(len(d.Nodes))
		}
		out = append(out, s)
	}
	return out
}

// KindCounts tallies constraints by kind.
func KindCounts(cs []constraints.Constraint) map[constraints.Kind]int {
	counts := make(map[constraints.Kind]int)
	for _, c := range cs {
		counts[c.Kind]++
	}
	return counts
}

// SavePNG plots series against epoch and writes the image to path. The
// format follows the file extension.
func SavePNG(path, title string, series []Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Values sent"

	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.Values))
		for t, v := range s.Values {
			pts[t] = plotter.XY{X: float64(t + 1), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	if err := p.Save(10*vg.Inch, 4*vg.Inch, filepath.Clean(path)); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// RenderHTML writes a page with a line chart of series and, when counts is
// not empty, a bar chart of constraints per kind.
func RenderHTML(w io.Writer, title string, series []Series, counts map[constraints.Kind]int) error {
	page := components.NewPage()
	page.PageTitle = title

	if len(series) > 0 {
		epochs := 0
		for _, s := range series {
			epochs = max(epochs, len(s.Values))
		}
		x := make([]string, epochs)
		for t := range x {
			x[t] = strconv.Itoa(t + 1)
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
			charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("clusters=%d epochs=%d", len(series), epochs)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Epoch", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Values sent"}),
		)
		line.SetXAxis(x)
		for _, s := range series {
			data := make([]opts.LineData, len(s.Values))
			for t, v := range s.Values {
				data[t] = opts.LineData{Value: v}
			}
			line.AddSeries(s.Name, data)
		}
		page.AddCharts(line)
	}

	if len(counts) > 0 {
		kinds := make([]constraints.Kind, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		x := make([]string, len(kinds))
		y := make([]opts.BarData, len(kinds))
		for i, k := range kinds {
			x[i] = k.String()
			y[i] = opts.BarData{Value: counts[k]}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
			charts.WithTitleOpts(opts.Title{Title: "Constraints by kind"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(x).
			AddSeries("constraints", y,
				charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			)
		page.AddCharts(bar)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
