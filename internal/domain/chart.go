package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type ChartKind string

const (
	ChartKindBar       ChartKind = "bar"
	ChartKindLine      ChartKind = "line"
	ChartKindPie       ChartKind = "pie"
	ChartKindDoughnut  ChartKind = "doughnut"
	ChartKindRadar     ChartKind = "radar"
	ChartKindPolarArea ChartKind = "polarArea"
	ChartKindScatter   ChartKind = "scatter"
	ChartKindBubble    ChartKind = "bubble"
)

var chartKinds = []ChartKind{
	ChartKindBar,
	ChartKindLine,
	ChartKindPie,
	ChartKindDoughnut,
	ChartKindRadar,
	ChartKindPolarArea,
	ChartKindScatter,
	ChartKindBubble,
}

func ChartKinds() []ChartKind {
	out := make([]ChartKind, len(chartKinds))
	copy(out, chartKinds)
	return out
}

func KnownKind(kind string) bool {
	for _, k := range chartKinds {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// ChartSpec is a Chart.js shaped chart description. Options are kept as
// free-form nested maps and only partially interpreted by the renderer.
type ChartSpec struct {
	Type    string         `json:"type"`
	Data    ChartData      `json:"data"`
	Options map[string]any `json:"options,omitempty"`
}

type ChartData struct {
	Labels   []Label   `json:"labels,omitempty"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Type            string      `json:"type,omitempty"`
	Label           string      `json:"label,omitempty"`
	Data            []DataPoint `json:"data"`
	BackgroundColor ColorList   `json:"backgroundColor,omitempty"`
	BorderColor     ColorList   `json:"borderColor,omitempty"`
	BorderWidth     *float64    `json:"borderWidth,omitempty"`
	PointRadius     *float64    `json:"pointRadius,omitempty"`
	Tension         *float64    `json:"tension,omitempty"`
	Fill            any         `json:"fill,omitempty"`
	Hidden          bool        `json:"hidden,omitempty"`
}

func (s ChartSpec) Kind() ChartKind {
	return ChartKind(s.Type)
}

// Validate reports every structural problem that would keep the chart from
// rendering. The lenient normalizer never calls it.
func (s ChartSpec) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Type) == "" {
		errs = append(errs, errors.New("chart type is required"))
	} else if !KnownKind(s.Type) {
		errs = append(errs, fmt.Errorf("unsupported chart type: %s", s.Type))
	}
	if s.Data.Datasets == nil {
		errs = append(errs, errors.New("chart data must contain datasets array"))
	} else if len(s.Data.Datasets) == 0 {
		errs = append(errs, errors.New("at least one dataset is required"))
	}
	return errors.Join(errs...)
}

// Values returns the y values of a dataset, skipping null gaps.
func (d Dataset) Values() []float64 {
	out := make([]float64, 0, len(d.Data))
	for _, p := range d.Data {
		if p.Null {
			continue
		}
		out = append(out, p.Y)
	}
	return out
}

// DataPoint is either a bare number, a null gap, or an {x, y, r} object.
type DataPoint struct {
	X    float64
	Y    float64
	R    float64
	IsXY bool
	HasR bool
	Null bool
}

func Value(v float64) DataPoint {
	return DataPoint{Y: v}
}

func Point(x, y float64) DataPoint {
	return DataPoint{X: x, Y: y, IsXY: true}
}

func Bubble(x, y, r float64) DataPoint {
	return DataPoint{X: x, Y: y, R: r, IsXY: true, HasR: true}
}

func (p *DataPoint) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(raw, []byte("null")):
		*p = DataPoint{Null: true}
		return nil
	case len(raw) > 0 && raw[0] == '{':
		var obj struct {
			X json.RawMessage `json:"x"`
			Y *flexFloat      `json:"y"`
			R *flexFloat      `json:"r"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("invalid data point: %w", err)
		}
		if obj.Y == nil {
			return errors.New("invalid data point: y is required")
		}
		out := DataPoint{Y: float64(*obj.Y), IsXY: true}
		if len(obj.X) > 0 && !isNull(obj.X) {
			var x flexFloat
			if json.Unmarshal(obj.X, &x) != nil {
				// Category x ({"x": "Jan", "y": 3}) positions by index.
				*p = Value(out.Y)
				return nil
			}
			out.X = float64(x)
		}
		if obj.R != nil {
			out.R = float64(*obj.R)
			out.HasR = true
		}
		*p = out
		return nil
	default:
		var v flexFloat
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid data point: %w", err)
		}
		*p = DataPoint{Y: float64(v)}
		return nil
	}
}

func (p DataPoint) MarshalJSON() ([]byte, error) {
	switch {
	case p.Null:
		return []byte("null"), nil
	case p.IsXY:
		obj := map[string]float64{"x": p.X, "y": p.Y}
		if p.HasR {
			obj["r"] = p.R
		}
		return json.Marshal(obj)
	default:
		return json.Marshal(p.Y)
	}
}

// flexFloat accepts numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(raw []byte) error {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("expected number, got %s", string(raw))
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*f = flexFloat(n)
	return nil
}

// ColorList holds one or more CSS color strings; JSON may carry either a
// single string or an array.
type ColorList []string

func (c *ColorList) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		*c = nil
		return nil
	}
	if len(raw) > 0 && raw[0] == '[' {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("invalid color list: %w", err)
		}
		*c = list
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return fmt.Errorf("invalid color: %w", err)
	}
	*c = ColorList{single}
	return nil
}

// At returns the color for index i, cycling through the list like Chart.js does.
func (c ColorList) At(i int) (string, bool) {
	if len(c) == 0 {
		return "", false
	}
	return c[i%len(c)], true
}

// Label is a category label. Chart.js accepts numbers and multi-line arrays
// as labels, both are flattened to a single string.
type Label string

func (l *Label) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(raw, []byte("null")):
		*l = ""
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*l = Label(s)
	case len(raw) > 0 && raw[0] == '[':
		var parts []string
		if err := json.Unmarshal(raw, &parts); err != nil {
			return fmt.Errorf("invalid label: %w", err)
		}
		*l = Label(strings.Join(parts, " "))
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("invalid label: %w", err)
		}
		*l = Label(n.String())
	}
	return nil
}
