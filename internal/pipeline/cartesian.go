package pipeline

import (
	"errors"
	"math"

	"github.com/dunamismax/chartflow/internal/domain"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var errNoData = errors.New("chart has no data to render")

// colorNone is fully transparent but not the zero color, which go-chart
// would replace with its series default.
var colorNone = drawing.Color{R: 255, G: 255, B: 255, A: 0}

type indexedDataset struct {
	index int
	ds    domain.Dataset
}

func visibleDatasets(spec domain.ChartSpec) []indexedDataset {
	out := make([]indexedDataset, 0, len(spec.Data.Datasets))
	for i, ds := range spec.Data.Datasets {
		if ds.Hidden {
			continue
		}
		out = append(out, indexedDataset{index: i, ds: ds})
	}
	return out
}

func categoryLabel(spec domain.ChartSpec, i int) string {
	if i < len(spec.Data.Labels) {
		return string(spec.Data.Labels[i])
	}
	return ""
}

// datasetColors resolves the fill and line colors for element i of a
// dataset, cycling color arrays and falling back to the default palette.
func datasetColors(ds domain.Dataset, datasetIndex, i int) (fill, line drawing.Color) {
	base := paletteColor(datasetIndex)
	fill = withAlpha(base, 0.5)
	line = base

	if raw, ok := ds.BackgroundColor.At(i); ok {
		if c, ok := parseColor(raw); ok {
			fill = c
		}
	}
	if raw, ok := ds.BorderColor.At(i); ok {
		if c, ok := parseColor(raw); ok {
			line = c
		}
	}
	return fill, line
}

func strokeWidth(ds domain.Dataset, fallback float64) float64 {
	if ds.BorderWidth != nil && *ds.BorderWidth >= 0 {
		return *ds.BorderWidth
	}
	return fallback
}

func pointRadius(ds domain.Dataset, fallback float64) float64 {
	if ds.PointRadius != nil && *ds.PointRadius >= 0 {
		return *ds.PointRadius
	}
	return fallback
}

func fillEnabled(fill any) bool {
	switch v := fill.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "false"
	default:
		return true
	}
}

// valueRange spans values, widened to zero when includeZero is set, with
// explicit bounds taking precedence.
func valueRange(values []float64, min, max *float64, includeZero bool, pad float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if includeZero {
		lo = math.Min(lo, 0)
		hi = math.Max(hi, 0)
	}
	if pad > 0 && hi > lo {
		span := (hi - lo) * pad
		if !includeZero || lo < 0 {
			lo -= span
		}
		hi += span
	}
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}
	if hi <= lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func datasetLegend(sets []indexedDataset) []legendEntry {
	entries := make([]legendEntry, 0, len(sets))
	for _, set := range sets {
		if set.ds.Label == "" {
			continue
		}
		fill, line := datasetColors(set.ds, set.index, 0)
		entries = append(entries, legendEntry{label: set.ds.Label, fill: fill, line: line})
	}
	return entries
}

func buildBarChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	opts := readOptions(spec.Options)
	sets := visibleDatasets(spec)

	n := 0
	for _, set := range sets {
		n = max(n, len(set.ds.Data))
	}
	if n == 0 {
		return nil, errNoData
	}

	bars := make([]chart.Value, 0, n*len(sets))
	values := make([]float64, 0, n*len(sets))
	for i := 0; i < n; i++ {
		for j, set := range sets {
			v := 0.0
			if i < len(set.ds.Data) && !set.ds.Data[i].Null {
				v = set.ds.Data[i].Y
			}
			label := ""
			if j == 0 {
				label = categoryLabel(spec, i)
			}
			fill, line := datasetColors(set.ds, set.index, i)
			bars = append(bars, chart.Value{
				Label: label,
				Value: v,
				Style: chart.Style{
					FillColor:   fill,
					StrokeColor: line,
					StrokeWidth: strokeWidth(set.ds, 1),
				},
			})
			values = append(values, v)
		}
	}

	legend := datasetLegend(sets)
	lay := computeLayout(opts, countLegendRows(legend, cv))
	slot := max(2, (cv.width-80)/len(bars))

	bc := chart.BarChart{
		Title:        opts.title,
		TitleStyle:   titleStyle(cv),
		Width:        cv.width,
		Height:       cv.height,
		Font:         cv.font,
		Background:   backgroundStyle(lay),
		Canvas:       chart.Style{FillColor: colorWhite},
		BarWidth:     max(1, slot*7/10),
		BarSpacing:   max(1, slot*3/10),
		UseBaseValue: true,
		BaseValue:    0,
		XAxis:        chart.Style{FontColor: colorText},
		YAxis: chart.YAxis{
			Name:  opts.yTitle,
			Style: chart.Style{FontColor: colorText},
			Range: valueRange(values, opts.yMin, opts.yMax, true, 0.05),
		},
		Bars: bars,
	}
	if opts.showLegend && len(legend) > 0 {
		bc.Elements = []chart.Renderable{legendElement(legend, cv, lay.legendTop)}
	}
	return bc, nil
}

type seriesMode int

const (
	seriesLine seriesMode = iota
	seriesScatter
	seriesBubble
)

func buildLineChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	return buildContinuousChart(spec, cv, seriesLine)
}

func buildScatterChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	return buildContinuousChart(spec, cv, seriesScatter)
}

func buildBubbleChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	return buildContinuousChart(spec, cv, seriesBubble)
}

func buildContinuousChart(spec domain.ChartSpec, cv canvas, mode seriesMode) (renderable, error) {
	opts := readOptions(spec.Options)
	sets := visibleDatasets(spec)

	var (
		series []chart.Series
		allX   []float64
		allY   []float64
		usesXY bool
	)
	for _, set := range sets {
		xs := make([]float64, 0, len(set.ds.Data))
		ys := make([]float64, 0, len(set.ds.Data))
		radii := make([]float64, 0, len(set.ds.Data))
		for i, p := range set.ds.Data {
			if p.Null {
				continue
			}
			x := float64(i)
			if p.IsXY {
				x = p.X
				usesXY = true
			}
			xs = append(xs, x)
			ys = append(ys, p.Y)
			radii = append(radii, p.R)
		}
		if len(xs) == 0 {
			continue
		}
		allX = append(allX, xs...)
		allY = append(allY, ys...)

		fill, line := datasetColors(set.ds, set.index, 0)
		style := chart.Style{
			StrokeColor: line,
			StrokeWidth: strokeWidth(set.ds, 3),
			DotColor:    line,
			DotWidth:    pointRadius(set.ds, 3),
		}
		switch mode {
		case seriesLine:
			if fillEnabled(set.ds.Fill) {
				style.FillColor = fill
			}
		case seriesScatter:
			style.StrokeColor = colorNone
			style.DotColor = fill
		case seriesBubble:
			style.StrokeColor = colorNone
			style.DotColor = fill
			style.DotWidthProvider = func(_, _ chart.Range, index int, _, _ float64) float64 {
				if index < len(radii) {
					return radii[index]
				}
				return 0
			}
		}

		series = append(series, chart.ContinuousSeries{
			Name:    set.ds.Label,
			Style:   style,
			XValues: xs,
			YValues: ys,
		})
	}
	if len(series) == 0 {
		return nil, errNoData
	}

	xAxis := chart.XAxis{
		Name:  opts.xTitle,
		Style: chart.Style{FontColor: colorText},
	}
	if mode == seriesLine && !usesXY {
		n := 0
		for _, x := range allX {
			n = max(n, int(x)+1)
		}
		lo, hi := 0.0, float64(n-1)
		if n <= 1 {
			lo, hi = -0.5, 0.5
		}
		xAxis.Range = &chart.ContinuousRange{Min: lo, Max: hi}
		if len(spec.Data.Labels) > 0 {
			ticks := make([]chart.Tick, 0, n)
			for i := 0; i < n; i++ {
				ticks = append(ticks, chart.Tick{Value: float64(i), Label: categoryLabel(spec, i)})
			}
			xAxis.Ticks = ticks
		}
	} else {
		xAxis.Range = valueRange(allX, opts.xMin, opts.xMax, false, 0.05)
	}

	legend := datasetLegend(sets)
	lay := computeLayout(opts, countLegendRows(legend, cv))

	c := chart.Chart{
		Title:      opts.title,
		TitleStyle: titleStyle(cv),
		Width:      cv.width,
		Height:     cv.height,
		Font:       cv.font,
		Background: backgroundStyle(lay),
		Canvas:     chart.Style{FillColor: colorWhite},
		XAxis:      xAxis,
		YAxis: chart.YAxis{
			Name:  opts.yTitle,
			Style: chart.Style{FontColor: colorText},
			Range: valueRange(allY, opts.yMin, opts.yMax, opts.beginAtZero, 0.05),
		},
		Series: series,
	}
	if opts.showLegend && len(legend) > 0 {
		c.Elements = []chart.Renderable{legendElement(legend, cv, lay.legendTop)}
	}
	return c, nil
}
