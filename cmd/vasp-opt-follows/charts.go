package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	png "image/png"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/vasp-tools/vasp-opt-follows/cmd/vasp-opt-follows/uihelpers"
	"github.com/vasp-tools/vasp-opt-follows/src/criteria"
	"github.com/vasp-tools/vasp-opt-follows/src/vaspdata"
)

// plotSeries is one line to draw: x/y values plus styling. Secondary series
// go on the right-hand axis.
type plotSeries struct {
	name      string
	xs, ys    []float64
	style     chart.Style
	secondary bool
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{StrokeColor: col, StrokeWidth: 1.8, DotColor: col, DotWidth: 2}
}

// dashedStyle marks the secondary quantity of a file (Max next to RMS, |ΔE|
// next to the energy) while keeping the file's color.
func dashedStyle(col drawing.Color) chart.Style {
	st := lineStyle(col)
	st.StrokeDashArray = []float64{4, 3}
	return st
}

func fileColor(i int) drawing.Color { return chart.GetDefaultColor(i) }

// seriesFor computes a criterion for one file as x/y slices; unavailable or
// empty criteria report ok=false and are skipped silently.
func seriesFor(rf *vaspdata.ResultFile, c criteria.Criterion) ([]float64, []float64, bool) {
	s, err := criteria.Compute(rf, c)
	if err != nil || len(s.Values) == 0 {
		return nil, nil, false
	}
	xs := make([]float64, len(s.Values))
	for i := range xs {
		xs[i] = float64(s.StartStep + i)
	}
	return xs, s.Values, true
}

// chartSize derives the chart pixel size from the current window width so
// the x-axis gets more space on wide screens.
func chartSize(state *uiState) (int, int) {
	raw := 1100
	if state != nil && state.window != nil && state.window.Canvas() != nil {
		raw = int(state.window.Canvas().Size().Width*0.95) - 12
	}
	return uihelpers.ComputeChartDimensions(raw)
}

// renderLineChart draws the given series over a shared ionic-step x-axis and
// returns the decoded PNG. An empty series set or a render failure yields a
// blank placeholder so the UI still updates.
func renderLineChart(state *uiState, title, yName, y2Name string, series []plotSeries) image.Image {
	cw, chh := chartSize(state)
	if len(series) == 0 {
		return blank(cw, chh)
	}

	minY := math.MaxFloat64
	maxY := -math.MaxFloat64
	lastStep := 1
	out := make([]chart.Series, 0, len(series))
	haveSecondary := false
	for _, s := range series {
		xs, ys := s.xs, s.ys
		if len(xs) == 1 {
			// go-chart needs a non-zero x-span; duplicate single points
			xs = []float64{xs[0], xs[0] + 1}
			ys = []float64{ys[0], ys[0]}
		}
		if !s.secondary {
			for _, v := range s.ys {
				if math.IsNaN(v) {
					continue
				}
				if v < minY {
					minY = v
				}
				if v > maxY {
					maxY = v
				}
			}
		} else {
			haveSecondary = true
		}
		if n := int(xs[len(xs)-1]); n > lastStep {
			lastStep = n
		}
		cs := chart.ContinuousSeries{Name: s.name, XValues: xs, YValues: ys, Style: s.style}
		if s.secondary {
			cs.YAxis = chart.YAxisSecondary
		}
		out = append(out, cs)
	}

	ticks := []chart.Tick{}
	for _, v := range uihelpers.BuildStepTicks(lastStep, 12) {
		ticks = append(ticks, chart.Tick{Value: v, Label: fmt.Sprintf("%d", int(v))})
	}
	xAxis := chart.XAxis{
		Name:  "Ionic step",
		Ticks: ticks,
		Range: &chart.ContinuousRange{Min: -0.5, Max: float64(lastStep) + 0.5},
	}

	var yRange *chart.ContinuousRange
	var yTicks []chart.Tick
	if minY != math.MaxFloat64 && maxY != -math.MaxFloat64 {
		lo, hi := uihelpers.NiceBounds(minY, maxY)
		yRange = &chart.ContinuousRange{Min: lo, Max: hi}
		for _, v := range uihelpers.BuildNumericTicks(lo, hi, 6) {
			yTicks = append(yTicks, chart.Tick{Value: v, Label: uihelpers.FormatNumericTick(v)})
		}
	}

	padBottom := 28
	if state != nil && state.showHints {
		padBottom += 18
	}
	ch := chart.Chart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: padBottom}},
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: yName, Range: yRange, Ticks: yTicks},
		Series:     out,
		Width:      cw,
		Height:     chh,
	}
	if haveSecondary {
		ch.YAxisSecondary = chart.YAxis{Name: y2Name}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		fmt.Printf("[viewer] %s chart render error: %v; showing blank fallback\n", title, err)
		return blank(cw, chh)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		fmt.Printf("[viewer] %s chart decode error: %v; showing blank fallback\n", title, err)
		return blank(cw, chh)
	}
	return img
}

func renderEnergyChart(state *uiState) image.Image {
	var series []plotSeries
	for i, rf := range state.files.All() {
		col := fileColor(i)
		if xs, ys, ok := seriesFor(rf, criteria.Energy); ok {
			series = append(series, plotSeries{name: rf.Name(), xs: xs, ys: ys, style: lineStyle(col)})
		}
		if state.showDelta {
			if xs, ys, ok := seriesFor(rf, criteria.EnergyDelta); ok {
				series = append(series, plotSeries{name: rf.Name() + " |ΔE|", xs: xs, ys: ys, style: dashedStyle(col), secondary: true})
			}
		}
	}
	img := renderLineChart(state, "Energy", "eV", "|ΔE| (eV)", series)
	if state.showHints {
		return drawHint(img, "Hint: the energy flattens as the run converges; |ΔE| is the usual electronic stop criterion.")
	}
	return img
}

func renderForcesChart(state *uiState) image.Image {
	var series []plotSeries
	for i, rf := range state.files.All() {
		col := fileColor(i)
		if state.showRMS {
			if xs, ys, ok := seriesFor(rf, criteria.ForceRMS); ok {
				series = append(series, plotSeries{name: rf.Name() + " RMS", xs: xs, ys: ys, style: lineStyle(col)})
			}
		}
		if state.showMax {
			if xs, ys, ok := seriesFor(rf, criteria.ForceMax); ok {
				series = append(series, plotSeries{name: rf.Name() + " Max", xs: xs, ys: ys, style: dashedStyle(col)})
			}
		}
	}
	img := renderLineChart(state, "Forces", "eV/Å", "", series)
	if state.showHints {
		return drawHint(img, "Hint: forces should decay below the EDIFFG threshold; Max is usually the binding one.")
	}
	return img
}

func renderDisplacementChart(state *uiState) image.Image {
	var series []plotSeries
	for i, rf := range state.files.All() {
		col := fileColor(i)
		if state.showRMS {
			if xs, ys, ok := seriesFor(rf, criteria.DisplacementRMS); ok {
				series = append(series, plotSeries{name: rf.Name() + " RMS", xs: xs, ys: ys, style: lineStyle(col)})
			}
		}
		if state.showMax {
			if xs, ys, ok := seriesFor(rf, criteria.DisplacementMax); ok {
				series = append(series, plotSeries{name: rf.Name() + " Max", xs: xs, ys: ys, style: dashedStyle(col)})
			}
		}
		if xs, ys, ok := seriesFor(rf, criteria.Drift); ok {
			series = append(series, plotSeries{name: rf.Name() + " drift", xs: xs, ys: ys, style: dashedStyle(col), secondary: true})
		}
	}
	img := renderLineChart(state, "Displacements", "per step", "drift from start", series)
	if state.showHints {
		return drawHint(img, "Hint: shrinking displacements mean the geometry is settling; drift shows the total motion since step 0.")
	}
	return img
}

func renderVolumeChart(state *uiState) image.Image {
	var series []plotSeries
	for i, rf := range state.files.All() {
		if xs, ys, ok := seriesFor(rf, criteria.Volume); ok {
			series = append(series, plotSeries{name: rf.Name(), xs: xs, ys: ys, style: lineStyle(fileColor(i))})
		}
	}
	img := renderLineChart(state, "Cell Volume", "Å³", "", series)
	if state.showHints {
		return drawHint(img, "Hint: the volume only moves for variable-cell runs; fixed-cell runs draw a flat line.")
	}
	return img
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 18, G: 18, B: 18, A: 255})
		}
	}
	return img
}

// drawHint draws a small hint string onto the provided image near the
// bottom-left.
func drawHint(img image.Image, text string) image.Image {
	if img == nil || strings.TrimSpace(text) == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	pad := 6
	face := basicfont.Face7x13
	textCol := image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	shadowCol := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 180})
	dr := &font.Drawer{Dst: rgba, Src: textCol, Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := b.Min.X + 8
	y := b.Max.Y - 6
	bg := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 200})
	rect := image.Rect(x-pad, y-face.Metrics().Ascent.Ceil()-pad, x+tw+pad, y+pad/2)
	draw.Draw(rgba, rect, bg, image.Point{}, draw.Over)
	drShadow := &font.Drawer{Dst: rgba, Src: shadowCol, Face: face, Dot: fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 1)}}
	drShadow.DrawString(text)
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}
