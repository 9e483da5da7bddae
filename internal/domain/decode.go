package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// The decoders below accept any JSON object. A field whose shape the
// renderer does not understand decodes to its zero value instead of
// failing, so every syntactically valid Chart.js config reaches rendering.
// Options are kept verbatim whenever they are an object.

func (s *ChartSpec) UnmarshalJSON(raw []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	if obj == nil {
		return nil
	}

	*s = ChartSpec{Type: scalarText(obj["type"])}
	if data, ok := obj["data"]; ok {
		s.Data = decodeChartData(data)
	}
	if options, ok := obj["options"]; ok {
		var opts map[string]any
		if json.Unmarshal(options, &opts) == nil {
			s.Options = opts
		}
	}
	return nil
}

func (d *ChartData) UnmarshalJSON(raw []byte) error {
	*d = decodeChartData(raw)
	return nil
}

func (d *Dataset) UnmarshalJSON(raw []byte) error {
	*d, _ = decodeDataset(raw)
	return nil
}

func decodeChartData(raw json.RawMessage) ChartData {
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil || obj == nil {
		return ChartData{}
	}

	var out ChartData
	var labels []json.RawMessage
	if json.Unmarshal(obj["labels"], &labels) == nil {
		out.Labels = make([]Label, 0, len(labels))
		for _, item := range labels {
			var l Label
			if l.UnmarshalJSON(item) != nil {
				l = Label(scalarText(item))
			}
			out.Labels = append(out.Labels, l)
		}
	}

	// A missing or non-array datasets stays nil so Validate can report it.
	var datasets []json.RawMessage
	if json.Unmarshal(obj["datasets"], &datasets) != nil {
		return out
	}
	out.Datasets = make([]Dataset, 0, len(datasets))
	for _, item := range datasets {
		ds, keys := decodeDataset(item)
		if len(out.Labels) == 0 && len(keys) > 0 {
			out.Labels = keys
		}
		out.Datasets = append(out.Datasets, ds)
	}
	return out
}

// decodeDataset also returns the keys of object-form data ({"a": 1}), which
// Chart.js uses as category labels.
func decodeDataset(raw json.RawMessage) (Dataset, []Label) {
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil || obj == nil {
		return Dataset{}, nil
	}

	ds := Dataset{
		Type:            scalarText(obj["type"]),
		Label:           scalarText(obj["label"]),
		BackgroundColor: decodeColors(obj["backgroundColor"]),
		BorderColor:     decodeColors(obj["borderColor"]),
		BorderWidth:     firstNumber(obj["borderWidth"]),
		PointRadius:     firstNumber(obj["pointRadius"]),
		Tension:         firstNumber(obj["tension"]),
	}
	if fill, ok := obj["fill"]; ok && !isNull(fill) {
		var v any
		if json.Unmarshal(fill, &v) == nil {
			ds.Fill = v
		}
	}
	var hidden bool
	if json.Unmarshal(obj["hidden"], &hidden) == nil {
		ds.Hidden = hidden
	}

	data := bytes.TrimSpace(obj["data"])
	switch {
	case len(data) > 0 && data[0] == '[':
		var items []json.RawMessage
		if json.Unmarshal(data, &items) == nil {
			ds.Data = decodePoints(items)
		}
		return ds, nil
	case len(data) > 0 && data[0] == '{':
		keys, values, ok := orderedEntries(data)
		if !ok {
			return ds, nil
		}
		ds.Data = decodePoints(values)
		labels := make([]Label, len(keys))
		for i, k := range keys {
			labels[i] = Label(k)
		}
		return ds, labels
	default:
		return ds, nil
	}
}

// decodePoints turns anything that is not a number, numeric string or
// {x, y, r} object into a null gap.
func decodePoints(items []json.RawMessage) []DataPoint {
	out := make([]DataPoint, 0, len(items))
	for _, item := range items {
		var p DataPoint
		if p.UnmarshalJSON(item) != nil {
			p = DataPoint{Null: true}
		}
		out = append(out, p)
	}
	return out
}

// orderedEntries walks a JSON object keeping key order, which a map would
// lose.
func orderedEntries(raw []byte) ([]string, []json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, nil, false
	}

	var (
		keys   []string
		values []json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, false
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, false
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	return keys, values, true
}

// decodeColors keeps non-string entries as empty placeholders so indexes
// still line up with data points; the renderer falls back to its palette
// for them.
func decodeColors(raw json.RawMessage) ColorList {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		return ColorList{s}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil
		}
		out := make(ColorList, len(items))
		for i, item := range items {
			_ = json.Unmarshal(item, &out[i])
		}
		return out
	default:
		return nil
	}
}

// firstNumber reads a number, a numeric string, or the first numeric entry
// of an array (per-point option arrays such as borderWidth: [1, 2]).
func firstNumber(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil
		}
		for _, item := range items {
			if isArray(item) {
				continue
			}
			if v := firstNumber(item); v != nil {
				return v
			}
		}
		return nil
	}

	var f flexFloat
	if json.Unmarshal(raw, &f) != nil {
		return nil
	}
	v := float64(f)
	return &v
}

// scalarText renders a JSON scalar as text: strings as-is, numbers and
// booleans as written, everything else as "".
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return ""
		}
		return s
	case c == 't' || c == 'f':
		return string(raw)
	case c == '-' || (c >= '0' && c <= '9'):
		if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
			return ""
		}
		return string(raw)
	default:
		return ""
	}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
