package pipeline

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dunamismax/chartflow/internal/domain"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var colorArcBorder = colorWhite

// sliceValues takes the first visible dataset as slices; zero and null
// entries are dropped and negatives count by magnitude.
func sliceValues(spec domain.ChartSpec) ([]chart.Value, []legendEntry, error) {
	sets := visibleDatasets(spec)
	if len(sets) == 0 {
		return nil, nil, errNoData
	}
	ds := sets[0].ds

	values := make([]chart.Value, 0, len(ds.Data))
	legend := make([]legendEntry, 0, len(ds.Data))
	for i, p := range ds.Data {
		if p.Null || p.Y == 0 || math.IsNaN(p.Y) {
			continue
		}
		fill := paletteColor(i)
		if raw, ok := ds.BackgroundColor.At(i); ok {
			if c, ok := parseColor(raw); ok {
				fill = c
			}
		}
		line := colorArcBorder
		if raw, ok := ds.BorderColor.At(i); ok {
			if c, ok := parseColor(raw); ok {
				line = c
			}
		}

		label := categoryLabel(spec, i)
		values = append(values, chart.Value{
			Label: label,
			Value: math.Abs(p.Y),
			Style: chart.Style{
				FillColor:   fill,
				StrokeColor: line,
				StrokeWidth: strokeWidth(ds, 2),
			},
		})
		if label != "" {
			legend = append(legend, legendEntry{label: label, fill: fill, line: line})
		}
	}
	if len(values) == 0 {
		return nil, nil, errNoData
	}
	return values, legend, nil
}

func buildPieChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	opts := readOptions(spec.Options)
	values, legend, err := sliceValues(spec)
	if err != nil {
		return nil, err
	}
	lay := computeLayout(opts, countLegendRows(legend, cv))

	pc := chart.PieChart{
		Title:      opts.title,
		TitleStyle: titleStyle(cv),
		Width:      cv.width,
		Height:     cv.height,
		Font:       cv.font,
		Background: backgroundStyle(lay),
		Canvas:     chart.Style{FillColor: colorWhite},
		Values:     values,
	}
	if opts.showLegend && len(legend) > 0 {
		pc.Elements = []chart.Renderable{legendElement(legend, cv, lay.legendTop)}
	}
	return pc, nil
}

func buildDoughnutChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	opts := readOptions(spec.Options)
	values, legend, err := sliceValues(spec)
	if err != nil {
		return nil, err
	}
	lay := computeLayout(opts, countLegendRows(legend, cv))

	dc := chart.DonutChart{
		Title:      opts.title,
		TitleStyle: titleStyle(cv),
		Width:      cv.width,
		Height:     cv.height,
		Font:       cv.font,
		Background: backgroundStyle(lay),
		Canvas:     chart.Style{FillColor: colorWhite},
		Values:     values,
	}
	if opts.showLegend && len(legend) > 0 {
		dc.Elements = []chart.Renderable{legendElement(legend, cv, lay.legendTop)}
	}
	return dc, nil
}

// radialChart covers the kinds the chart backend has no type for. They are
// painted directly on a backend renderer around a shared center.
type radialChart struct {
	cv     canvas
	opts   chartOptions
	legend []legendEntry
	paint  func(r chart.Renderer, cx, cy int, radius float64)
}

func (rc radialChart) Render(rp chart.RendererProvider, w io.Writer) error {
	width, height := rc.cv.width, rc.cv.height
	r, err := rp(width, height)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	r.SetDPI(chart.DefaultDPI)

	r.SetFillColor(colorWhite)
	r.SetStrokeColor(colorWhite)
	r.SetStrokeWidth(0)
	rect(r, 0, 0, width, height)
	r.Fill()

	if rc.opts.title != "" {
		r.SetFont(rc.cv.font)
		r.SetFontSize(titleFontSize)
		r.SetFontColor(colorText)
		box := r.MeasureText(rc.opts.title)
		r.Text(rc.opts.title, (width-box.Width())/2, titleTop+box.Height())
	}

	legendRowCount := 0
	if rc.opts.showLegend && len(rc.legend) > 0 {
		legendRowCount = countLegendRows(rc.legend, rc.cv)
	}
	lay := computeLayout(rc.opts, legendRowCount)
	if legendRowCount > 0 {
		drawLegend(r, rc.legend, rc.cv, lay.legendTop)
	}

	const labelMargin = 40
	top, bottom := lay.plotTop, height-edgePadding
	cx := width / 2
	cy := top + (bottom-top)/2
	radius := math.Min(float64(width-2*labelMargin), float64(bottom-top-labelMargin)) / 2
	if radius < 1 {
		radius = 1
	}

	rc.paint(r, cx, cy, radius)
	return r.Save(w)
}

// radialScale maps values onto [0, 1] of the radius.
type radialScale struct {
	min, max float64
}

func newRadialScale(values []float64, opts chartOptions) radialScale {
	rng := valueRange(values, opts.rMin, opts.rMax, true, 0)
	return radialScale{min: rng.Min, max: rng.Max}
}

func (s radialScale) fraction(v float64) float64 {
	return clampFloat((v-s.min)/(s.max-s.min), 0, 1)
}

func spokeAngle(i, n int) float64 {
	return -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
}

func polar(cx, cy int, radius, angle float64) (int, int) {
	return cx + int(math.Round(radius*math.Cos(angle))), cy + int(math.Round(radius*math.Sin(angle)))
}

func strokePolygon(r chart.Renderer, cx, cy int, radius float64, sides int) {
	for i := 0; i <= sides; i++ {
		x, y := polar(cx, cy, radius, spokeAngle(i%sides, sides))
		if i == 0 {
			r.MoveTo(x, y)
			continue
		}
		r.LineTo(x, y)
	}
	r.Close()
	r.Stroke()
}

func drawRingTicks(r chart.Renderer, cv canvas, scale radialScale, cx, cy int, radius float64, rings int) {
	r.SetFont(cv.font)
	r.SetFontSize(legendFontSize - 1)
	r.SetFontColor(colorText)
	for ring := 1; ring <= rings; ring++ {
		v := scale.min + (scale.max-scale.min)*float64(ring)/float64(rings)
		text := strconv.FormatFloat(v, 'g', 4, 64)
		box := r.MeasureText(text)
		r.Text(text, cx-box.Width()/2, cy-int(radius*float64(ring)/float64(rings))+box.Height()/2)
	}
}

func buildRadarChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	opts := readOptions(spec.Options)
	sets := visibleDatasets(spec)

	axes := len(spec.Data.Labels)
	var all []float64
	for _, set := range sets {
		axes = max(axes, len(set.ds.Data))
		all = append(all, set.ds.Values()...)
	}
	if axes == 0 || len(all) == 0 {
		return nil, errNoData
	}
	scale := newRadialScale(all, opts)
	const rings = 5

	paint := func(r chart.Renderer, cx, cy int, radius float64) {
		r.SetStrokeColor(colorGridLines)
		r.SetStrokeWidth(1)
		for ring := 1; ring <= rings; ring++ {
			strokePolygon(r, cx, cy, radius*float64(ring)/rings, max(axes, 3))
		}
		for i := 0; i < axes; i++ {
			x, y := polar(cx, cy, radius, spokeAngle(i, axes))
			r.MoveTo(cx, cy)
			r.LineTo(x, y)
			r.Stroke()
		}

		r.SetFont(cv.font)
		r.SetFontSize(legendFontSize)
		r.SetFontColor(colorText)
		for i := 0; i < axes; i++ {
			label := categoryLabel(spec, i)
			if label == "" {
				continue
			}
			angle := spokeAngle(i, axes)
			box := r.MeasureText(label)
			x, y := polar(cx, cy, radius+10, angle)
			x -= int(float64(box.Width()) * (1 - math.Cos(angle)) / 2)
			y += int(float64(box.Height()) * (1 + math.Sin(angle)) / 2)
			r.Text(label, x, y)
		}

		for _, set := range sets {
			fill, line := datasetColors(set.ds, set.index, 0)
			r.SetFillColor(fill)
			r.SetStrokeColor(line)
			r.SetStrokeWidth(strokeWidth(set.ds, 3))

			points := make([][2]int, 0, axes)
			for i := 0; i < axes; i++ {
				v := scale.min
				if i < len(set.ds.Data) && !set.ds.Data[i].Null {
					v = set.ds.Data[i].Y
				}
				x, y := polar(cx, cy, radius*scale.fraction(v), spokeAngle(i, axes))
				points = append(points, [2]int{x, y})
			}
			for i, p := range points {
				if i == 0 {
					r.MoveTo(p[0], p[1])
					continue
				}
				r.LineTo(p[0], p[1])
			}
			r.Close()
			r.FillStroke()

			dot := pointRadius(set.ds, 3)
			if dot > 0 {
				r.SetFillColor(line)
				for _, p := range points {
					r.Circle(dot, p[0], p[1])
					r.FillStroke()
				}
			}
		}

		drawRingTicks(r, cv, scale, cx, cy, radius, rings)
	}

	return radialChart{cv: cv, opts: opts, legend: datasetLegend(sets), paint: paint}, nil
}

func buildPolarAreaChart(spec domain.ChartSpec, cv canvas) (renderable, error) {
	opts := readOptions(spec.Options)
	sets := visibleDatasets(spec)
	if len(sets) == 0 || len(sets[0].ds.Data) == 0 {
		return nil, errNoData
	}
	ds := sets[0].ds
	scale := newRadialScale(ds.Values(), opts)
	n := len(ds.Data)
	const rings = 5

	legend := make([]legendEntry, 0, n)
	fills := make([]drawing.Color, n)
	lines := make([]drawing.Color, n)
	for i := range ds.Data {
		fills[i] = withAlpha(paletteColor(i), 0.5)
		lines[i] = colorArcBorder
		if raw, ok := ds.BackgroundColor.At(i); ok {
			if c, ok := parseColor(raw); ok {
				fills[i] = c
			}
		}
		if raw, ok := ds.BorderColor.At(i); ok {
			if c, ok := parseColor(raw); ok {
				lines[i] = c
			}
		}
		if label := categoryLabel(spec, i); label != "" {
			legend = append(legend, legendEntry{label: label, fill: fills[i], line: lines[i]})
		}
	}

	paint := func(r chart.Renderer, cx, cy int, radius float64) {
		delta := 2 * math.Pi / float64(n)
		for i, p := range ds.Data {
			if p.Null {
				continue
			}
			sliceRadius := radius * scale.fraction(p.Y)
			if sliceRadius <= 0 {
				continue
			}
			r.SetFillColor(fills[i])
			r.SetStrokeColor(lines[i])
			r.SetStrokeWidth(strokeWidth(ds, 2))
			r.MoveTo(cx, cy)
			r.ArcTo(cx, cy, sliceRadius, sliceRadius, -math.Pi/2+delta*float64(i), delta)
			r.LineTo(cx, cy)
			r.Close()
			r.FillStroke()
		}

		r.SetStrokeColor(colorGridLines)
		r.SetStrokeWidth(1)
		for ring := 1; ring <= rings; ring++ {
			strokePolygon(r, cx, cy, radius*float64(ring)/rings, 72)
		}
		drawRingTicks(r, cv, scale, cx, cy, radius, rings)
	}

	return radialChart{cv: cv, opts: opts, legend: legend, paint: paint}, nil
}
