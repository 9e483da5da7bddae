package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dunamismax/chartflow/internal/domain"
	"github.com/dunamismax/chartflow/internal/pipeline"
	"github.com/google/go-cmp/cmp"
)

const minimalBar = `{"type":"bar","data":{"labels":["A","B"],"datasets":[{"label":"S","data":[1,2]}]}}`

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()

	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Renderer == nil {
		renderer, err := pipeline.NewChartRenderer()
		if err != nil {
			t.Fatalf("new chart renderer: %v", err)
		}
		opts.Renderer = renderer
	}

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func chartRequest(method string, params url.Values) *http.Request {
	return httptest.NewRequest(method, "/api/chart?"+params.Encode(), nil)
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandleChart_RendersPNG(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {minimalBar}, "w": {"800"}, "h": {"600"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	wantHeaders := map[string]string{
		"Content-Type":                "image/png",
		"Cache-Control":               "public, max-age=3600",
		"Access-Control-Allow-Origin": "*",
	}
	for k, want := range wantHeaders {
		if got := rec.Header().Get(k); got != want {
			t.Fatalf("expected %s=%q, got %q", k, want, got)
		}
	}

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Fatalf("expected 800x600, got %v", img.Bounds().Size())
	}
}

func TestHandleChart_LenientNotation(t *testing.T) {
	srv := newTestServer(t, Options{})

	raw := `{type:'bar',data:{labels:['A','B'],datasets:[{label:'S',data:[1,2],},],},}`
	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {raw}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" || rec.Body.Len() == 0 {
		t.Fatalf("expected non-empty png, got %s (%d bytes)", rec.Header().Get("Content-Type"), rec.Body.Len())
	}
}

func TestHandleChart_ChartJSOptionShapes(t *testing.T) {
	srv := newTestServer(t, Options{})

	configs := []string{
		`{"type":"bar","data":{"labels":["A","B"],"datasets":[{"label":2024,"data":[1,2],"borderWidth":[1,2]}]}}`,
		`{"type":"line","data":{"labels":["A","B"],"datasets":[{"label":"S","data":[3,4],"pointRadius":[3,4]}]}}`,
		`{"type":"bar","data":{"datasets":[{"label":"S","data":{"a":1,"b":2}}]}}`,
	}
	for _, raw := range configs {
		rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {raw}, "w": {"300"}, "h": {"200"}}))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%s", raw, rec.Code, rec.Body.String())
		}
		if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
			t.Fatalf("%s: decode png: %v", raw, err)
		}
	}
}

func TestHandleChart_DoubleEncodedConfig(t *testing.T) {
	renderer := &captureRenderer{}
	srv := newTestServer(t, Options{Renderer: renderer})

	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {url.QueryEscape(minimalBar)}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if renderer.req.Chart.Type != "bar" {
		t.Fatalf("expected bar chart, got %q", renderer.req.Chart.Type)
	}
}

func TestHandleChart_MissingConfig(t *testing.T) {
	srv := newTestServer(t, Options{Renderer: &captureRenderer{}})

	for _, params := range []url.Values{{}, {"c": {""}}, {"w": {"400"}}} {
		rec := serve(srv, chartRequest(http.MethodGet, params))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if got := decodeBody(t, rec)["error"]; got != `Missing chart configuration parameter "c"` {
			t.Fatalf("unexpected error %q", got)
		}
	}
}

func TestHandleChart_InvalidConfig(t *testing.T) {
	srv := newTestServer(t, Options{Renderer: &captureRenderer{}})

	raw := `{"type":"bar","data":{"datasets":[` + strings.Repeat("1,", 80)
	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {raw}}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	want := map[string]string{
		"error":      "Invalid chart configuration. Must be valid JSON or JavaScript object notation.",
		"received":   raw[:100] + "...",
		"suggestion": "Try URL-encoding your JSON or use proper JSON format",
	}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Fatalf("error body mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleChart_InvalidDimensions(t *testing.T) {
	renderer := &captureRenderer{}
	srv := newTestServer(t, Options{Renderer: renderer})

	cases := []url.Values{
		{"w": {"10"}},
		{"h": {"49"}},
		{"w": {"4001"}},
		{"h": {"-600"}},
		{"w": {"abc"}},
		{"w": {"99999999999999"}},
	}
	for _, params := range cases {
		params.Set("c", minimalBar)
		rec := serve(srv, chartRequest(http.MethodGet, params))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("params %v: expected 400, got %d", params, rec.Code)
		}
		if got := decodeBody(t, rec)["error"]; got != "Invalid dimensions. Width and height must be between 50 and 4000 pixels." {
			t.Fatalf("params %v: unexpected error %q", params, got)
		}
	}
	if renderer.calls != 0 {
		t.Fatalf("expected renderer not to be called, got %d calls", renderer.calls)
	}
}

func TestHandleChart_DimensionBoundsAndDefaults(t *testing.T) {
	renderer := &captureRenderer{}
	srv := newTestServer(t, Options{Renderer: renderer})

	cases := []struct {
		w, h          string
		width, height int
	}{
		{w: "", h: "", width: 800, height: 600},
		{w: "50", h: "4000", width: 50, height: 4000},
		{w: " 640px", h: "+480", width: 640, height: 480},
		{w: "0000000000800", h: "0000000000600", width: 800, height: 600},
	}
	for _, tc := range cases {
		params := url.Values{"c": {minimalBar}}
		if tc.w != "" {
			params.Set("w", tc.w)
		}
		if tc.h != "" {
			params.Set("h", tc.h)
		}
		rec := serve(srv, chartRequest(http.MethodGet, params))
		if rec.Code != http.StatusOK {
			t.Fatalf("w=%q h=%q: expected 200, got %d", tc.w, tc.h, rec.Code)
		}
		if renderer.req.Width != tc.width || renderer.req.Height != tc.height {
			t.Fatalf("w=%q h=%q: expected %dx%d, got %dx%d", tc.w, tc.h, tc.width, tc.height, renderer.req.Width, renderer.req.Height)
		}
	}
}

func TestHandleChart_MergesRenderDefaults(t *testing.T) {
	renderer := &captureRenderer{}
	srv := newTestServer(t, Options{Renderer: renderer})

	raw := `{"type":"line","data":{"datasets":[{"data":[1]}]},"options":{"animation":true,"plugins":{"legend":{"display":false,"position":"bottom"}}}}`
	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {raw}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	want := map[string]any{
		"responsive":          false,
		"maintainAspectRatio": false,
		"animation":           true,
		"plugins": map[string]any{
			"legend": map[string]any{"display": false, "position": "bottom"},
		},
	}
	if diff := cmp.Diff(want, renderer.req.Chart.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleChart_FormatPassThrough(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {minimalBar}, "w": {"200"}, "h": {"100"}, "f": {"jpeg"}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0xFF, 0xD8}) {
		t.Fatal("expected a jpeg body")
	}

	rec = serve(srv, chartRequest(http.MethodGet, url.Values{"c": {minimalBar}, "f": {"avif"}}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unsupported format, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Failed to generate chart" || !strings.Contains(body["details"], "avif") {
		t.Fatalf("unexpected failure body %v", body)
	}
}

func TestHandleChart_RenderFailure(t *testing.T) {
	srv := newTestServer(t, Options{Renderer: &captureRenderer{err: errors.New("surface exploded")}})

	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {minimalBar}}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	want := map[string]string{"error": "Failed to generate chart", "details": "surface exploded"}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Fatalf("failure body mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleChart_UnknownKindFails(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {`{"type":"sankey","data":{"datasets":[]}}`}}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(decodeBody(t, rec)["details"], "unsupported chart type") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHandleChart_PanicBecomesRenderFailure(t *testing.T) {
	srv := newTestServer(t, Options{Renderer: panicRenderer{}})

	rec := serve(srv, chartRequest(http.MethodGet, url.Values{"c": {minimalBar}}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Failed to generate chart" || body["details"] != "nil canvas" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestChartPreflight(t *testing.T) {
	srv := newTestServer(t, Options{Renderer: &captureRenderer{}, RateLimiter: &denyLimiter{}})

	rec := serve(srv, httptest.NewRequest(http.MethodOptions, "/api/chart", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}

	want := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Fatalf("expected %s=%q, got %q", k, v, got)
		}
	}
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{in: "", want: 800, ok: true},
		{in: "640", want: 640, ok: true},
		{in: "  320", want: 320, ok: true},
		{in: "12.9", want: 12, ok: true},
		{in: "100abc", want: 100, ok: true},
		{in: "-50", want: -50, ok: true},
		{in: "0000000000800", want: 800, ok: true},
		{in: "000", want: 0, ok: true},
		{in: "-0000000000050", want: -50, ok: true},
		{in: "00000000001000000", want: 1000000, ok: true},
		{in: "abc", ok: false},
		{in: "-", ok: false},
		{in: " ", ok: false},
	}

	for _, tc := range tests {
		got, ok := parseDimension(tc.in, 800)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("parseDimension(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

type captureRenderer struct {
	req   domain.RenderRequest
	calls int
	err   error
}

func (r *captureRenderer) Render(_ context.Context, req domain.RenderRequest) ([]byte, error) {
	r.req = req
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("\x89PNG fake"), nil
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, domain.RenderRequest) ([]byte, error) {
	panic("nil canvas")
}
