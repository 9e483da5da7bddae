package pipeline

import (
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Chart.js default dataset colors, in order.
var defaultPalette = []drawing.Color{
	{R: 54, G: 162, B: 235, A: 255},
	{R: 255, G: 99, B: 132, A: 255},
	{R: 255, G: 159, B: 64, A: 255},
	{R: 255, G: 205, B: 86, A: 255},
	{R: 75, G: 192, B: 192, A: 255},
	{R: 153, G: 102, B: 255, A: 255},
	{R: 201, G: 203, B: 207, A: 255},
}

var namedColors = map[string]drawing.Color{
	"black":       {R: 0, G: 0, B: 0, A: 255},
	"white":       {R: 255, G: 255, B: 255, A: 255},
	"red":         {R: 255, G: 0, B: 0, A: 255},
	"green":       {R: 0, G: 128, B: 0, A: 255},
	"blue":        {R: 0, G: 0, B: 255, A: 255},
	"yellow":      {R: 255, G: 255, B: 0, A: 255},
	"orange":      {R: 255, G: 165, B: 0, A: 255},
	"purple":      {R: 128, G: 0, B: 128, A: 255},
	"pink":        {R: 255, G: 192, B: 203, A: 255},
	"gray":        {R: 128, G: 128, B: 128, A: 255},
	"grey":        {R: 128, G: 128, B: 128, A: 255},
	"lightgray":   {R: 211, G: 211, B: 211, A: 255},
	"darkgray":    {R: 169, G: 169, B: 169, A: 255},
	"brown":       {R: 165, G: 42, B: 42, A: 255},
	"cyan":        {R: 0, G: 255, B: 255, A: 255},
	"magenta":     {R: 255, G: 0, B: 255, A: 255},
	"teal":        {R: 0, G: 128, B: 128, A: 255},
	"navy":        {R: 0, G: 0, B: 128, A: 255},
	"olive":       {R: 128, G: 128, B: 0, A: 255},
	"maroon":      {R: 128, G: 0, B: 0, A: 255},
	"lime":        {R: 0, G: 255, B: 0, A: 255},
	"silver":      {R: 192, G: 192, B: 192, A: 255},
	"gold":        {R: 255, G: 215, B: 0, A: 255},
	"transparent": {R: 0, G: 0, B: 0, A: 0},
}

var (
	colorWhite     = drawing.Color{R: 255, G: 255, B: 255, A: 255}
	colorText      = drawing.Color{R: 102, G: 102, B: 102, A: 255}
	colorGridLines = drawing.Color{R: 0, G: 0, B: 0, A: 26}
)

func paletteColor(i int) drawing.Color {
	return defaultPalette[i%len(defaultPalette)]
}

// withAlpha scales the color's alpha by f.
func withAlpha(c drawing.Color, f float64) drawing.Color {
	c.A = uint8(clampFloat(float64(c.A)*f, 0, 255))
	return c
}

// parseColor understands hex (#rgb, #rgba, #rrggbb, #rrggbbaa), rgb()/rgba()
// with comma or space separators, and a small set of named colors.
func parseColor(raw string) (drawing.Color, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return drawing.Color{}, false
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}
	if strings.HasPrefix(s, "rgb") {
		return parseRGBFunc(s)
	}
	return drawing.Color{}, false
}

func parseHexColor(hex string) (drawing.Color, bool) {
	switch len(hex) {
	case 3, 4:
		expanded := make([]byte, 0, len(hex)*2)
		for i := 0; i < len(hex); i++ {
			expanded = append(expanded, hex[i], hex[i])
		}
		hex = string(expanded)
	case 6, 8:
	default:
		return drawing.Color{}, false
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return drawing.Color{}, false
	}
	if len(hex) == 6 {
		return drawing.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
	}
	return drawing.Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

func parseRGBFunc(s string) (drawing.Color, bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return drawing.Color{}, false
	}
	body := s[open+1 : len(s)-1]
	body = strings.NewReplacer(",", " ", "/", " ").Replace(body)
	parts := strings.Fields(body)
	if len(parts) != 3 && len(parts) != 4 {
		return drawing.Color{}, false
	}

	var channels [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := parseChannel(parts[i])
		if !ok {
			return drawing.Color{}, false
		}
		channels[i] = v
	}

	alpha := uint8(255)
	if len(parts) == 4 {
		a, ok := parseAlpha(parts[3])
		if !ok {
			return drawing.Color{}, false
		}
		alpha = a
	}
	return drawing.Color{R: channels[0], G: channels[1], B: channels[2], A: alpha}, true
}

func parseChannel(s string) (uint8, bool) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		return uint8(clampFloat(v*255/100+0.5, 0, 255)), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return uint8(clampFloat(v+0.5, 0, 255)), true
}

func parseAlpha(s string) (uint8, bool) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		return uint8(clampFloat(v*255/100+0.5, 0, 255)), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return uint8(clampFloat(v*255+0.5, 0, 255)), true
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
