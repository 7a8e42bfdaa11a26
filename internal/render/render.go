// Package render draws reduced series to image files. It only consumes data
// produced by the analysis package and holds no analysis logic.
package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sivukhin/htapbench/internal/analysis"
	"github.com/sivukhin/htapbench/internal/trace"
)

var (
	evictColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	faultColor = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
)

// Chart describes the labels of a plot.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

func (c Chart) new() *plot.Plot {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}

func (c Chart) save(p *plot.Plot, path string) error {
	width, height := c.Width, c.Height
	if width == 0 {
		width = 6 * vg.Inch
	}
	if height == 0 {
		height = 2.6 * vg.Inch
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save chart %v: %w", path, err)
	}
	return nil
}

// points drops samples that cannot be drawn, such as the NaN of an empty
// window.
func points(series analysis.Series) plotter.XYs {
	xys := make(plotter.XYs, 0, len(series.X))
	for i := range series.X {
		x, y := series.X[i], series.Y[i]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: x, Y: y})
	}
	return xys
}

// Lines draws every series as a line with point markers. The file format
// follows the extension of path.
func Lines(path string, chart Chart, series ...analysis.Series) error {
	p := chart.new()
	for i, s := range series {
		xys := points(s)
		if len(xys) == 0 {
			continue
		}
		line, scatter, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("series %v: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		scatter.Color = plotutil.Color(i)
		scatter.Shape = draw.CrossGlyph{}
		p.Add(line, scatter)
		if s.Name != "" {
			p.Legend.Add(s.Name, line, scatter)
		}
	}
	return chart.save(p, path)
}

// TraceScatter draws one pixel per trace event: evictions in red, faults in
// green, page id over time.
func TraceScatter(path string, chart Chart, events []trace.Event) error {
	p := chart.new()
	byAction := trace.Split(events)
	for _, kind := range []struct {
		action trace.Action
		color  color.Color
	}{
		{trace.Evict, evictColor},
		{trace.Fault, faultColor},
	} {
		selected := byAction[kind.action]
		if len(selected) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(selected))
		for i, event := range selected {
			xys[i] = plotter.XY{X: event.Timestamp, Y: float64(event.ID)}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("%v events: %w", kind.action, err)
		}
		scatter.Color = kind.color
		scatter.Radius = vg.Points(0.3)
		scatter.Shape = draw.CircleGlyph{}
		p.Add(scatter)
		p.Legend.Add(kind.action.String(), scatter)
	}
	return chart.save(p, path)
}
