// Package render lays out the per-metric comparison grid and rasterizes it to
// a single PNG via go-chart, one subplot per metric and one curve per run.
package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ZhBF/TB-Metrics-Visualizer/src/logging"
	"github.com/ZhBF/TB-Metrics-Visualizer/src/series"
)

// X-axis modes.
const (
	XAxisStep     = "step"
	XAxisWallTime = "walltime"
)

const (
	// dpi converts per-subplot inches to pixels.
	dpi = 100
	// titleBand is the vertical space reserved for the figure title.
	titleBand = 36
	// DefaultTitle is the overall figure title.
	DefaultTitle = "TensorBoard Metrics Visualization"
)

// ErrNoData reports an empty collection; no image is produced.
var ErrNoData = errors.New("no data to visualize")

// Options control figure layout and curve rendering.
type Options struct {
	OutputPath    string
	SubplotWidth  float64 // inches
	SubplotHeight float64 // inches
	MaxCols       int
	XAxis         string // XAxisStep or XAxisWallTime
	SmoothMethod  string // "", series.SmoothEMA or series.SmoothMA
	SmoothWindow  int
	ShowBoth      bool // draw raw under smoothed (needs SmoothMethod)
	Title         string
}

// Summary describes a successfully written figure.
type Summary struct {
	Width   int
	Height  int
	Metrics int
}

// GridLayout computes the subplot grid for n metrics: at most maxCols
// columns, row-major placement.
func GridLayout(n, maxCols int) (rows, cols int) {
	if maxCols < 1 {
		maxCols = 1
	}
	cols = n
	if cols > maxCols {
		cols = maxCols
	}
	if cols < 1 {
		cols = 1
	}
	rows = (n + cols - 1) / cols
	return rows, cols
}

// Compose renders the collection into a grid figure and writes it to
// opts.OutputPath as PNG. Metrics are placed in sorted-name order; colors are
// assigned per run name in encounter order and held stable across subplots.
func Compose(coll *series.Collection, opts Options) (Summary, error) {
	if coll == nil || coll.Len() == 0 {
		return Summary{}, ErrNoData
	}
	if opts.SubplotWidth <= 0 {
		opts.SubplotWidth = 8
	}
	if opts.SubplotHeight <= 0 {
		opts.SubplotHeight = 4
	}
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	tags := coll.SortedTags()
	rows, cols := GridLayout(len(tags), opts.MaxCols)
	subW := int(opts.SubplotWidth * dpi)
	subH := int(opts.SubplotHeight * dpi)
	figW := subW * cols
	figH := subH*rows + titleBand

	canvas := image.NewRGBA(image.Rect(0, 0, figW, figH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	cm := NewColorMap()
	for i, tag := range tags {
		cell := subplot(tag, coll.Runs(tag), cm, opts, subW, subH)
		r := i / cols
		c := i % cols
		target := image.Rect(c*subW, titleBand+r*subH, (c+1)*subW, titleBand+(r+1)*subH)
		draw.Draw(canvas, target, cell, cell.Bounds().Min, draw.Over)
	}
	drawFigureTitle(canvas, title, figW)

	f, err := os.Create(opts.OutputPath)
	if err != nil {
		return Summary{}, err
	}
	if err := png.Encode(f, canvas); err != nil {
		f.Close()
		return Summary{}, err
	}
	if err := f.Close(); err != nil {
		return Summary{}, err
	}
	return Summary{Width: figW, Height: figH, Metrics: len(tags)}, nil
}

// xValues picks the x sequence for a record: raw steps, or hours elapsed
// since the record's first timestamp in wall-clock mode.
func xValues(rec series.Record, mode string) []float64 {
	if mode == XAxisWallTime {
		if len(rec.WallTimes) == 0 {
			return nil
		}
		first := rec.WallTimes[0]
		xs := make([]float64, len(rec.WallTimes))
		for i, wt := range rec.WallTimes {
			xs[i] = (wt - first) / 3600.0
		}
		return xs
	}
	xs := make([]float64, len(rec.Steps))
	for i, s := range rec.Steps {
		xs[i] = float64(s)
	}
	return xs
}

// widenSingle duplicates a lone point one x-unit to the right so the chart
// backend accepts the x-range.
func widenSingle(xs, ys []float64) ([]float64, []float64) {
	if len(xs) != 1 {
		return xs, ys
	}
	return []float64{xs[0], xs[0] + 1}, []float64{ys[0], ys[0]}
}

// recordSeries builds the chart series for one record: either the raw curve,
// the smoothed curve, or both (raw thin and translucent underneath, excluded
// from the legend via its empty name).
func recordSeries(rec series.Record, cm *ColorMap, opts Options) []chart.Series {
	xs := xValues(rec, opts.XAxis)
	if len(xs) == 0 {
		return nil
	}
	col := cm.Color(rec.RunName)
	if opts.SmoothMethod != "" && opts.ShowBoth {
		rawX, rawY := widenSingle(xs, rec.Values)
		smX, smY := widenSingle(xs, series.Smooth(rec.Values, opts.SmoothMethod, opts.SmoothWindow))
		return []chart.Series{
			chart.ContinuousSeries{
				XValues: rawX,
				YValues: rawY,
				Style:   chart.Style{StrokeWidth: 1.0, StrokeColor: col.WithAlpha(90)},
			},
			chart.ContinuousSeries{
				Name:    rec.RunName,
				XValues: smX,
				YValues: smY,
				Style:   chart.Style{StrokeWidth: 1.6, StrokeColor: col.WithAlpha(230)},
			},
		}
	}
	ys := rec.Values
	if opts.SmoothMethod != "" {
		ys = series.Smooth(ys, opts.SmoothMethod, opts.SmoothWindow)
	}
	x, y := widenSingle(xs, ys)
	return []chart.Series{chart.ContinuousSeries{
		Name:    rec.RunName,
		XValues: x,
		YValues: y,
		Style:   chart.Style{StrokeWidth: 1.5, StrokeColor: col.WithAlpha(204)},
	}}
}

// subplot renders one metric's chart. Render failures log a warning and
// yield a blank cell rather than aborting the figure.
func subplot(tag string, runs []series.Record, cm *ColorMap, opts Options, w, h int) image.Image {
	var list []chart.Series
	minY := math.MaxFloat64
	maxY := -math.MaxFloat64
	for _, rec := range runs {
		ss := recordSeries(rec, cm, opts)
		for _, s := range ss {
			if cs, ok := s.(chart.ContinuousSeries); ok {
				for _, v := range cs.YValues {
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
			}
		}
		list = append(list, ss...)
	}
	if len(list) == 0 {
		return blankCell(w, h)
	}

	var yRange *chart.ContinuousRange
	if minY != math.MaxFloat64 {
		nMin, nMax := niceAxisBounds(minY, maxY)
		yRange = &chart.ContinuousRange{Min: nMin, Max: nMax}
	}
	xLabel := "Step"
	if opts.XAxis == XAxisWallTime {
		xLabel = "Wall Time (hours)"
	}
	gridStyle := chart.Style{StrokeColor: chart.ColorAlternateGray.WithAlpha(64), StrokeWidth: 1.0}
	ch := chart.Chart{
		Title:      tag,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 18, Left: 16, Right: 12, Bottom: 28}},
		XAxis:      chart.XAxis{Name: xLabel, GridMajorStyle: gridStyle},
		YAxis:      chart.YAxis{Name: "Value", Range: yRange, GridMajorStyle: gridStyle},
		Series:     list,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		logging.Warnf("subplot %s render error: %v; leaving blank cell", tag, err)
		return blankCell(w, h)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		logging.Warnf("subplot %s decode error: %v; leaving blank cell", tag, err)
		return blankCell(w, h)
	}
	return img
}

// niceAxisBounds expands [min,max] by a small margin and rounds to nice
// increments so curves don't hug the frame.
func niceAxisBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return min, max
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	pad := span * 0.05
	a := min - pad
	b := max + pad
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}

func blankCell(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	return img
}

// drawFigureTitle writes the overall title centered in the title band.
func drawFigureTitle(dst *image.RGBA, title string, width int) {
	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: dst, Src: image.NewUniform(color.RGBA{A: 255}), Face: face}
	tw := dr.MeasureString(title).Ceil()
	x := (width - tw) / 2
	if x < 8 {
		x = 8
	}
	y := (titleBand + face.Metrics().Ascent.Ceil()) / 2
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(title)
}
