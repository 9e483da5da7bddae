package pipeline

import "testing"

func TestReadOptions(t *testing.T) {
	opts := readOptions(map[string]any{
		"plugins": map[string]any{
			"legend": map[string]any{"display": false},
			"title":  map[string]any{"display": true, "text": []any{"Monthly", "Sales"}},
		},
		"scales": map[string]any{
			"x": map[string]any{"title": map[string]any{"display": true, "text": "Month"}},
			"y": map[string]any{"min": 0.0, "max": "120", "beginAtZero": true},
		},
	})

	if opts.showLegend {
		t.Fatal("expected legend to be hidden")
	}
	if opts.title != "Monthly Sales" {
		t.Fatalf("expected joined title, got %q", opts.title)
	}
	if opts.xTitle != "Month" || opts.yTitle != "" {
		t.Fatalf("unexpected axis titles x=%q y=%q", opts.xTitle, opts.yTitle)
	}
	if opts.yMin == nil || *opts.yMin != 0 || opts.yMax == nil || *opts.yMax != 120 {
		t.Fatalf("unexpected y range min=%v max=%v", opts.yMin, opts.yMax)
	}
	if !opts.beginAtZero {
		t.Fatal("expected beginAtZero")
	}
}

func TestReadOptions_Defaults(t *testing.T) {
	opts := readOptions(nil)
	if !opts.showLegend {
		t.Fatal("expected legend shown by default")
	}
	if opts.title != "" {
		t.Fatalf("expected no title, got %q", opts.title)
	}

	// A title without display:true stays hidden, as in Chart.js.
	opts = readOptions(map[string]any{"plugins": map[string]any{"title": map[string]any{"text": "x"}}})
	if opts.title != "" {
		t.Fatalf("expected hidden title, got %q", opts.title)
	}
}
