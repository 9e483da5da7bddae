package chartconfig

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/dunamismax/chartflow/internal/domain"
	"github.com/google/go-cmp/cmp"
)

const barJSON = `{"type":"bar","data":{"labels":["a","b","c"],"datasets":[{"label":"Sales","data":[1,2,3]}]}}`

func TestParseStrictJSON(t *testing.T) {
	res, err := Parse(barJSON)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if res.Strategy != StrategyStrict {
		t.Fatalf("expected strict strategy, got %s", res.Strategy)
	}
	if res.Chart.Type != "bar" {
		t.Fatalf("expected type bar, got %s", res.Chart.Type)
	}
	if diff := cmp.Diff([]float64{1, 2, 3}, res.Chart.Data.Datasets[0].Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStrictAcceptsChartJSShapes(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   domain.ChartKind
		labels []domain.Label
		values [][]float64
	}{
		{
			name:   "array border width",
			raw:    `{"type":"bar","data":{"labels":["a","b"],"datasets":[{"data":[1,2],"borderWidth":[1,2]}]}}`,
			kind:   domain.ChartKindBar,
			labels: []domain.Label{"a", "b"},
			values: [][]float64{{1, 2}},
		},
		{
			name:   "numeric dataset label",
			raw:    `{"type":"line","data":{"labels":["q1","q2"],"datasets":[{"label":2024,"data":[3,4]},{"label":2025,"data":[5,6]}]}}`,
			kind:   domain.ChartKindLine,
			labels: []domain.Label{"q1", "q2"},
			values: [][]float64{{3, 4}, {5, 6}},
		},
		{
			name:   "array point radius",
			raw:    `{"type":"scatter","data":{"datasets":[{"data":[{"x":1,"y":2},{"x":3,"y":4}],"pointRadius":[3,4]}]}}`,
			kind:   domain.ChartKindScatter,
			values: [][]float64{{2, 4}},
		},
		{
			name:   "object data",
			raw:    `{"type":"pie","data":{"datasets":[{"data":{"a":1,"b":2}}]}}`,
			kind:   domain.ChartKindPie,
			labels: []domain.Label{"a", "b"},
			values: [][]float64{{1, 2}},
		},
		{
			name:   "numeric strings and gaps",
			raw:    `{"type":"line","data":{"labels":[1,2,3],"datasets":[{"data":["1.5",null,"3"],"fill":"origin","tension":"0.4"}]}}`,
			kind:   domain.ChartKindLine,
			labels: []domain.Label{"1", "2", "3"},
			values: [][]float64{{1.5, 3}},
		},
		{
			name:   "scriptable style shapes",
			raw:    `{"type":"bar","data":{"labels":["a"],"datasets":[{"data":[7],"backgroundColor":{"gradient":true},"borderWidth":{"top":1},"hidden":null}]},"options":{"plugins":{"datalabels":{"formatter":null}}}}`,
			kind:   domain.ChartKindBar,
			labels: []domain.Label{"a"},
			values: [][]float64{{7}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if res.Strategy != StrategyStrict {
				t.Fatalf("expected strict strategy, got %s", res.Strategy)
			}
			if res.Chart.Kind() != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, res.Chart.Kind())
			}
			if diff := cmp.Diff(tc.labels, res.Chart.Data.Labels); diff != "" {
				t.Fatalf("labels mismatch (-want +got):\n%s", diff)
			}
			got := make([][]float64, 0, len(res.Chart.Data.Datasets))
			for _, ds := range res.Chart.Data.Datasets {
				got = append(got, ds.Values())
			}
			if diff := cmp.Diff(tc.values, got); diff != "" {
				t.Fatalf("values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStrictKeepsNumericDatasetLabel(t *testing.T) {
	res, err := Parse(`{"type":"bar","data":{"datasets":[{"label":2024,"data":[1]}]},"options":{"scales":{"x":{"stacked":true}}}}`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := res.Chart.Data.Datasets[0].Label; got != "2024" {
		t.Fatalf("expected label 2024, got %q", got)
	}
	want := map[string]any{"scales": map[string]any{"x": map[string]any{"stacked": true}}}
	if diff := cmp.Diff(want, res.Chart.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePercentEncodedMatchesPlain(t *testing.T) {
	plain, err := Normalize(barJSON)
	if err != nil {
		t.Fatalf("Normalize plain: %v", err)
	}

	encoded := url.QueryEscape(barJSON)
	res, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse encoded: %v", err)
	}
	if res.Strategy != StrategyPercentDecoded {
		t.Fatalf("expected percent_decoded strategy, got %s", res.Strategy)
	}
	if diff := cmp.Diff(plain, res.Chart); diff != "" {
		t.Fatalf("chart mismatch (-want +got):\n%s", diff)
	}

	pathEncoded := url.PathEscape(barJSON)
	chart, err := Normalize(pathEncoded)
	if err != nil {
		t.Fatalf("Normalize path-encoded: %v", err)
	}
	if diff := cmp.Diff(plain, chart); diff != "" {
		t.Fatalf("chart mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLenientObjectNotation(t *testing.T) {
	res, err := Parse(`{type:'bar',data:{datasets:[{data:[1,2,3],}]}}`)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if res.Strategy != StrategyLenient {
		t.Fatalf("expected lenient strategy, got %s", res.Strategy)
	}
	if res.Chart.Type != "bar" {
		t.Fatalf("expected type bar, got %s", res.Chart.Type)
	}
	if len(res.Chart.Data.Datasets) != 1 {
		t.Fatalf("expected one dataset, got %d", len(res.Chart.Data.Datasets))
	}
	if diff := cmp.Diff([]float64{1, 2, 3}, res.Chart.Data.Datasets[0].Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestRepairObjectNotationKeepsKnownFragility(t *testing.T) {
	got := RepairObjectNotation(`{type:'line',options:{title:'see http://x',},}`)
	want := `{"type":"line","options":{"title":"see "http"://x"}}`
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if _, err := Normalize(`{type:'line',options:{title:'see http://x'}}`); err == nil {
		t.Fatal("expected colon inside a value to break the lenient repair")
	}
}

func TestParseUnrecoverableInput(t *testing.T) {
	raw := "{type:'bar',data:{datasets:[{data:[1,2,3]}]" + strings.Repeat("x", 150)
	_, err := Normalize(raw)
	if err == nil {
		t.Fatal("expected error for unbalanced braces")
	}
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if parseErr.Received != raw[:100]+"..." {
		t.Fatalf("unexpected received preview %q", parseErr.Received)
	}
	if parseErr.Suggestion == "" {
		t.Fatal("expected suggestion")
	}
	if len(parseErr.Attempts) != 3 {
		t.Fatalf("expected three attempts, got %d", len(parseErr.Attempts))
	}
}

func TestParseRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "null", "[1,2,3]", "42", `"bar"`, "%zz"} {
		if _, err := Normalize(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParsePreviewCountsRunes(t *testing.T) {
	raw := strings.Repeat("é", 120)
	_, err := Normalize(raw)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.Received != strings.Repeat("é", 100)+"..." {
		t.Fatalf("unexpected preview %q", parseErr.Received)
	}
}

func TestParseDoesNotCheckKind(t *testing.T) {
	chart, err := Normalize(`{"type":"gantt","data":{"datasets":[]}}`)
	if err != nil {
		t.Fatalf("expected structural parse to succeed, got %v", err)
	}
	if chart.Kind() != domain.ChartKind("gantt") {
		t.Fatalf("expected gantt, got %s", chart.Kind())
	}
}
