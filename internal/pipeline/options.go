package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// chartOptions is the subset of Chart.js options the renderer understands.
type chartOptions struct {
	title       string
	showLegend  bool
	xTitle      string
	yTitle      string
	xMin, xMax  *float64
	yMin, yMax  *float64
	rMin, rMax  *float64
	beginAtZero bool
}

func readOptions(opts map[string]any) chartOptions {
	out := chartOptions{
		showLegend: lookupBool(opts, true, "plugins", "legend", "display"),
	}
	if lookupBool(opts, false, "plugins", "title", "display") {
		out.title = lookupText(opts, "plugins", "title", "text")
	}
	if lookupBool(opts, false, "scales", "x", "title", "display") {
		out.xTitle = lookupText(opts, "scales", "x", "title", "text")
	}
	if lookupBool(opts, false, "scales", "y", "title", "display") {
		out.yTitle = lookupText(opts, "scales", "y", "title", "text")
	}
	out.xMin = lookupFloat(opts, "scales", "x", "min")
	out.xMax = lookupFloat(opts, "scales", "x", "max")
	out.yMin = lookupFloat(opts, "scales", "y", "min")
	out.yMax = lookupFloat(opts, "scales", "y", "max")
	out.rMin = lookupFloat(opts, "scales", "r", "min")
	out.rMax = lookupFloat(opts, "scales", "r", "max")
	out.beginAtZero = lookupBool(opts, false, "scales", "y", "beginAtZero")
	return out
}

func lookup(opts map[string]any, path ...string) (any, bool) {
	var cur any = opts
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func lookupBool(opts map[string]any, fallback bool, path ...string) bool {
	v, ok := lookup(opts, path...)
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// lookupText reads a string option; arrays are joined the way Chart.js
// renders multi-line titles on a single line.
func lookupText(opts map[string]any, path ...string) string {
	v, ok := lookup(opts, path...)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}

func lookupFloat(opts map[string]any, path ...string) *float64 {
	v, ok := lookup(opts, path...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
