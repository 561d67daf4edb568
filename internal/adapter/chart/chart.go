// Package chart renders analysis results as PNG images with gonum/plot.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/analysis"
	"github.com/couchcryptid/iran-stats-etl/internal/document"
	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	red    = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	blue   = color.RGBA{R: 30, G: 80, B: 200, A: 255}
	green  = color.RGBA{R: 20, G: 140, B: 60, A: 255}
	orange = color.RGBA{R: 240, G: 140, B: 0, A: 255}
	gray   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	band   = color.NRGBA{R: 30, G: 80, B: 200, A: 50}

	dashed = []vg.Length{vg.Points(5), vg.Points(5)}
	dotted = []vg.Length{vg.Points(2), vg.Points(3)}
)

const (
	width  = 12 * vg.Inch
	height = 7 * vg.Inch
)

// Renderer writes the charts of an analysis.
// It implements analysis.Renderer.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// Render draws the series chart plus whichever of the growth, forecast,
// regression and correlogram charts the result carries.
func (Renderer) Render(ctx context.Context, r *analysis.Result, dir string) ([]string, error) {
	def := r.Definition
	prefix := strings.ReplaceAll(def.Name, "-", "_")
	ylabel := "Number of " + strings.ToLower(def.Topic)

	type job struct {
		suffix string
		build  func() (*plot.Plot, error)
	}
	jobs := []job{{"series", func() (*plot.Plot, error) { return Series(def.Topic+" Over Years", ylabel, r) }}}
	if r.Growth != nil {
		jobs = append(jobs, job{"growth_rate", func() (*plot.Plot, error) { return Growth(def.Topic+" Growth Rate", r) }})
	}
	switch {
	case r.Forecast.Trend != nil:
		jobs = append(jobs, job{"regression", func() (*plot.Plot, error) { return Regression(def.Topic+" Regression and Forecast", ylabel, r) }})
	default:
		jobs = append(jobs, job{"forecast", func() (*plot.Plot, error) { return Forecast(def.Topic+" Forecast", ylabel, r) }})
	}

	var written []string
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		p, err := j.build()
		if err != nil {
			return written, fmt.Errorf("%s chart: %w", j.suffix, err)
		}
		path := filepath.Join(dir, prefix+"_"+j.suffix+".png")
		if err := save(p, width, height, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if len(r.Correlograms) > 0 {
		path := filepath.Join(dir, prefix+"_acf_pacf.png")
		ok, err := Correlograms(def.Topic, r.Correlograms, path)
		if err != nil {
			return written, fmt.Errorf("correlogram chart: %w", err)
		}
		if ok {
			written = append(written, path)
		}
	}
	return written, nil
}

// Series plots the observations over time.
func Series(title, ylabel string, r *analysis.Result) (*plot.Plot, error) {
	p := newPlot(title, ylabel)
	if err := addLine(p, r.Definition.Topic, xys(r.Series.GregorianYears(), r.Series.Values()), red, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Growth plots the percent change with a zero reference line.
func Growth(title string, r *analysis.Result) (*plot.Plot, error) {
	p := newPlot(title, "Growth rate (%)")
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = gray
	zero.Dashes = dashed
	p.Add(zero)
	if err := addLine(p, "Growth Rate (%)", xys(r.Series.GregorianYears(), r.Growth), orange, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Forecast plots history, the forecast path, its 95% band when present and
// the historical mean. Forecast points are labeled with the Persian year.
func Forecast(title, ylabel string, r *analysis.Result) (*plot.Plot, error) {
	p := newPlot(title, ylabel)
	fc := r.Forecast

	if fc.Lower != nil && fc.Upper != nil {
		poly := slices.Concat(xys(fc.GregorianYears, fc.Upper), reversed(xys(fc.GregorianYears, fc.Lower)))
		if len(fc.GregorianYears) == 1 {
			// A single step has no area; widen it so the interval stays visible.
			x := float64(fc.GregorianYears[0])
			poly = plotter.XYs{{X: x - 0.1, Y: fc.Upper[0]}, {X: x + 0.1, Y: fc.Upper[0]}, {X: x + 0.1, Y: fc.Lower[0]}, {X: x - 0.1, Y: fc.Lower[0]}}
		}
		ci, err := plotter.NewPolygon(poly)
		if err != nil {
			return nil, err
		}
		ci.Color = band
		ci.LineStyle.Width = 0
		p.Add(ci)
		p.Legend.Add("95% Confidence Interval", ci)
	}

	if err := addLine(p, "Historical", xys(r.Series.GregorianYears(), r.Series.Values()), red, nil); err != nil {
		return nil, err
	}
	forecastPts := xys(fc.GregorianYears, fc.Values)
	if err := addLine(p, "Forecast", forecastPts, blue, dashed); err != nil {
		return nil, err
	}

	mean := r.HistoricalMean()
	m := plotter.NewFunction(func(float64) float64 { return mean })
	m.Color = green
	m.Dashes = dotted
	p.Add(m)
	p.Legend.Add(fmt.Sprintf("Historical Mean (%.0f)", mean), m)

	labels := make([]string, len(fc.Values))
	for i, v := range fc.Values {
		labels[i] = fmt.Sprintf("%d\n%.0f", fc.LocalYears[i], v)
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: forecastPts, Labels: labels})
	if err != nil {
		return nil, err
	}
	l.Offset = vg.Point{X: vg.Points(8), Y: vg.Points(8)}
	p.Add(l)
	return p, nil
}

// Regression plots the observations, the fitted line and the forecast point.
func Regression(title, ylabel string, r *analysis.Result) (*plot.Plot, error) {
	trend := r.Forecast.Trend
	if trend == nil {
		return nil, fmt.Errorf("%s has no fitted trend", r.Definition.Name)
	}
	p := newPlot(title, ylabel)
	if err := addLine(p, "Actual", xys(r.Series.GregorianYears(), r.Series.Values()), blue, nil); err != nil {
		return nil, err
	}

	fit := plotter.NewFunction(trend.At)
	fit.Color = red
	fit.Dashes = dashed
	p.Add(fit)
	p.Legend.Add(fmt.Sprintf("Regression Line (R² %.2f)", trend.RSquared), fit)

	pts := xys(r.Forecast.GregorianYears, r.Forecast.Values)
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = green
	s.GlyphStyle.Radius = vg.Points(6)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(s)
	p.Legend.Add("Forecast", s)

	years := slices.Concat(r.Series.GregorianYears(), r.Forecast.GregorianYears)
	p.X.Min = float64(slices.Min(years)) - 0.5
	p.X.Max = float64(slices.Max(years)) + 0.5
	return p, nil
}

// Correlograms writes an ACF/PACF grid with one row per transform. It
// reports false without writing when no panel has finite values.
func Correlograms(topic string, cs []analysis.Correlogram, path string) (bool, error) {
	var rows [][]*plot.Plot
	for _, c := range cs {
		if !allFinite(c.ACF) || !allFinite(c.PACF) {
			continue
		}
		name := strings.ReplaceAll(string(c.Transform), "_", " ")
		acf, err := stems(fmt.Sprintf("ACF of %s (%s)", topic, name), c.ACF, c.N)
		if err != nil {
			return false, err
		}
		pacf, err := stems(fmt.Sprintf("PACF of %s (%s)", topic, name), c.PACF, c.N)
		if err != nil {
			return false, err
		}
		rows = append(rows, []*plot.Plot{acf, pacf})
	}
	if len(rows) == 0 {
		return false, nil
	}

	img := vgimg.New(width, vg.Length(len(rows))*4*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      2,
		PadX:      vg.Millimeter * 6,
		PadY:      vg.Millimeter * 6,
		PadTop:    vg.Millimeter * 3,
		PadBottom: vg.Millimeter * 3,
		PadLeft:   vg.Millimeter * 3,
		PadRight:  vg.Millimeter * 3,
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		for j := range rows[i] {
			rows[i][j].Draw(canvases[i][j])
		}
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return false, fmt.Errorf("encode %s: %w", path, err)
	}
	return true, document.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func stems(title string, values []float64, n int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Lag"
	p.Y.Min, p.Y.Max = -1.1, 1.1

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(6))
	if err != nil {
		return nil, err
	}
	bars.Color = blue
	bars.LineStyle.Width = 0
	p.Add(plotter.NewGrid(), bars)

	bound := 1.96 / math.Sqrt(float64(max(n, 1)))
	for _, b := range []float64{bound, -bound} {
		f := plotter.NewFunction(func(float64) float64 { return b })
		f.Color = gray
		f.Dashes = dashed
		p.Add(f)
	}
	return p, nil
}

func newPlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = yearTicks{}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, c color.Color, dashes []vg.Length) error {
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Dashes = dashes
	points.GlyphStyle.Color = c
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(line, points)
	p.Legend.Add(label, line, points)
	return nil
}

// yearTicks labels whole Gregorian years with the Persian year beneath.
type yearTicks struct{}

func (yearTicks) Ticks(lo, hi float64) []plot.Tick {
	var ticks []plot.Tick
	for y := int(math.Ceil(lo)); float64(y) <= hi; y++ {
		local := domain.LocalYear(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC))
		ticks = append(ticks, plot.Tick{Value: float64(y), Label: fmt.Sprintf("%d\n(%d)", y, local)})
	}
	return ticks
}

func xys(years []int, values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(years))
	for i := range years {
		pts[i].X = float64(years[i])
		pts[i].Y = values[i]
	}
	return pts
}

func reversed(pts plotter.XYs) plotter.XYs {
	out := slices.Clone(pts)
	slices.Reverse(out)
	return out
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return len(xs) > 0
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return document.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
