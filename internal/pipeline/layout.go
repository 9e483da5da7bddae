package pipeline

import (
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	titleFontSize   = 16
	legendFontSize  = 10
	titleTop        = 10
	legendRowHeight = 18
	legendSwatchW   = 28
	legendSwatchH   = 10
	legendGap       = 12
	edgePadding     = 12
)

type layout struct {
	legendTop int
	plotTop   int
}

func computeLayout(opts chartOptions, legendRows int) layout {
	top := titleTop
	if opts.title != "" {
		top += titleFontSize + 16
	}
	out := layout{legendTop: top, plotTop: top + edgePadding}
	if opts.showLegend && legendRows > 0 {
		out.plotTop = top + legendRows*legendRowHeight + edgePadding
	}
	return out
}

func titleStyle(cv canvas) chart.Style {
	return chart.Style{
		Font:      cv.font,
		FontSize:  titleFontSize,
		FontColor: colorText,
		Padding:   chart.Box{Top: titleTop},
	}
}

func backgroundStyle(lay layout) chart.Style {
	return chart.Style{
		FillColor: colorWhite,
		Padding:   chart.Box{Top: lay.plotTop, Left: edgePadding, Right: edgePadding * 2, Bottom: edgePadding},
	}
}

type legendEntry struct {
	label string
	fill  drawing.Color
	line  drawing.Color
}

// legendRows lays entries out left to right, wrapping at the canvas width,
// and returns the x offset of every entry per row.
func legendRows(r chart.Renderer, entries []legendEntry, width int) [][]legendPlacement {
	var (
		rows    [][]legendPlacement
		current []legendPlacement
		used    int
	)
	limit := width - 2*edgePadding
	for _, e := range entries {
		w := legendSwatchW + 6 + r.MeasureText(e.label).Width()
		if len(current) > 0 && used+legendGap+w > limit {
			rows = append(rows, current)
			current, used = nil, 0
		}
		if len(current) > 0 {
			used += legendGap
		}
		current = append(current, legendPlacement{entry: e, offset: used, width: w})
		used += w
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	return rows
}

type legendPlacement struct {
	entry  legendEntry
	offset int
	width  int
}

func drawLegend(r chart.Renderer, entries []legendEntry, cv canvas, top int) {
	if len(entries) == 0 {
		return
	}
	r.SetFont(cv.font)
	r.SetFontSize(legendFontSize)

	for i, row := range legendRows(r, entries, cv.width) {
		last := row[len(row)-1]
		rowWidth := last.offset + last.width
		left := (cv.width - rowWidth) / 2
		if left < edgePadding {
			left = edgePadding
		}
		y := top + i*legendRowHeight

		for _, p := range row {
			x := left + p.offset
			r.SetFillColor(p.entry.fill)
			r.SetStrokeColor(p.entry.line)
			r.SetStrokeWidth(1)
			rect(r, x, y, x+legendSwatchW, y+legendSwatchH)
			r.FillStroke()

			r.SetFontColor(colorText)
			r.SetFontSize(legendFontSize)
			r.Text(p.entry.label, x+legendSwatchW+6, y+legendSwatchH)
		}
	}
}

func legendElement(entries []legendEntry, cv canvas, top int) chart.Renderable {
	return func(r chart.Renderer, _ chart.Box, _ chart.Style) {
		drawLegend(r, entries, cv, top)
	}
}

// countLegendRows measures entries against a scratch renderer so the plot
// area can be pushed down before the chart itself is laid out.
func countLegendRows(entries []legendEntry, cv canvas) int {
	if len(entries) == 0 || cv.font == nil {
		return 0
	}
	r, err := chart.PNG(1, 1)
	if err != nil {
		return 1
	}
	r.SetDPI(chart.DefaultDPI)
	r.SetFont(cv.font)
	r.SetFontSize(legendFontSize)
	return len(legendRows(r, entries, cv.width))
}

func rect(r chart.Renderer, x0, y0, x1, y1 int) {
	r.MoveTo(x0, y0)
	r.LineTo(x1, y0)
	r.LineTo(x1, y1)
	r.LineTo(x0, y1)
	r.Close()
}
