package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/dunamismax/chartflow/internal/domain"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const (
	barSpec = `{"type":"bar","data":{"labels":["Jan","Feb","Mar"],"datasets":[
		{"label":"Sales","data":[10,20,30],"backgroundColor":"rgba(54, 162, 235, 0.5)"},
		{"label":"Returns","data":[2,null,4]}]},
		"options":{"plugins":{"title":{"display":true,"text":"Quarter"}}}}`
	lineSpec = `{"type":"line","data":{"labels":["a","b","c","d"],"datasets":[
		{"label":"Visits","data":[3,7,null,5],"borderColor":"#ff6384","fill":true}]}}`
	scatterSpec = `{"type":"scatter","data":{"datasets":[
		{"label":"Points","data":[{"x":1,"y":2},{"x":3,"y":5},{"x":-2,"y":1}]}]}}`
	bubbleSpec = `{"type":"bubble","data":{"datasets":[
		{"label":"Bubbles","data":[{"x":1,"y":2,"r":5},{"x":3,"y":5,"r":12}]}]}}`
	pieSpec = `{"type":"pie","data":{"labels":["Red","Blue","Yellow"],"datasets":[
		{"data":[300,50,100],"backgroundColor":["red","blue","yellow"]}]}}`
	doughnutSpec = `{"type":"doughnut","data":{"labels":["A","B"],"datasets":[{"data":[1,3]}]}}`
	radarSpec    = `{"type":"radar","data":{"labels":["Speed","Power","Range","Armor","Cost"],"datasets":[
		{"label":"Alpha","data":[3,5,2,4,1]},{"label":"Beta","data":[4,2,5,1,3]}]}}`
	polarSpec = `{"type":"polarArea","data":{"labels":["N","E","S","W"],"datasets":[{"data":[11,16,7,3]}]}}`
)

func decodeSpec(t testing.TB, raw string) domain.ChartSpec {
	t.Helper()

	var spec domain.ChartSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		t.Fatalf("decode spec: %v", err)
	}
	return spec
}

func newTestRenderer(t testing.TB) *ChartRenderer {
	t.Helper()

	r, err := NewChartRenderer()
	if err != nil {
		t.Fatalf("new chart renderer: %v", err)
	}
	return r
}

func TestChartRenderer_RendersEveryKind(t *testing.T) {
	renderer := newTestRenderer(t)

	cases := map[domain.ChartKind]string{
		domain.ChartKindBar:       barSpec,
		domain.ChartKindLine:      lineSpec,
		domain.ChartKindScatter:   scatterSpec,
		domain.ChartKindBubble:    bubbleSpec,
		domain.ChartKindPie:       pieSpec,
		domain.ChartKindDoughnut:  doughnutSpec,
		domain.ChartKindRadar:     radarSpec,
		domain.ChartKindPolarArea: polarSpec,
	}
	for _, kind := range domain.ChartKinds() {
		raw, ok := cases[kind]
		if !ok {
			t.Fatalf("no fixture for chart kind %s", kind)
		}

		t.Run(string(kind), func(t *testing.T) {
			data, err := renderer.Render(context.Background(), domain.RenderRequest{
				Width:  640,
				Height: 480,
				Format: "png",
				Chart:  decodeSpec(t, raw),
			})
			if err != nil {
				t.Fatalf("render: %v", err)
			}

			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode png: %v", err)
			}
			if got := img.Bounds().Size(); got != image.Pt(640, 480) {
				t.Fatalf("expected 640x480, got %v", got)
			}

			r, g, b, _ := img.At(1, 1).RGBA()
			if r>>8 < 250 || g>>8 < 250 || b>>8 < 250 {
				t.Fatalf("expected white background, got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
			}
		})
	}
}

func TestChartRenderer_OutputFormats(t *testing.T) {
	renderer := newTestRenderer(t)
	spec := decodeSpec(t, barSpec)

	decoders := map[string]func([]byte) (image.Image, error){
		"jpeg": func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) },
		"jpg":  func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) },
		"gif":  func(b []byte) (image.Image, error) { return gif.Decode(bytes.NewReader(b)) },
		"bmp":  func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) },
		"tiff": func(b []byte) (image.Image, error) { return tiff.Decode(bytes.NewReader(b)) },
	}
	for format, decode := range decoders {
		t.Run(format, func(t *testing.T) {
			data, err := renderer.Render(context.Background(), domain.RenderRequest{
				Width: 300, Height: 200, Format: format, Chart: spec,
			})
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			img, err := decode(data)
			if err != nil {
				t.Fatalf("decode %s: %v", format, err)
			}
			if got := img.Bounds().Dx(); got != 300 {
				t.Fatalf("expected width 300, got %d", got)
			}
		})
	}
}

func TestChartRenderer_SVG(t *testing.T) {
	renderer := newTestRenderer(t)

	for _, raw := range []string{barSpec, radarSpec} {
		data, err := renderer.Render(context.Background(), domain.RenderRequest{
			Width: 400, Height: 300, Format: "svg", Chart: decodeSpec(t, raw),
		})
		if err != nil {
			t.Fatalf("render svg: %v", err)
		}
		if !strings.Contains(string(data), "<svg") {
			t.Fatalf("expected svg document, got %.40q", data)
		}
	}
}

func TestChartRenderer_Errors(t *testing.T) {
	renderer := newTestRenderer(t)

	tests := []struct {
		name string
		req  domain.RenderRequest
		want error
	}{
		{
			name: "unknown kind",
			req:  domain.RenderRequest{Width: 200, Height: 200, Chart: decodeSpec(t, `{"type":"sankey","data":{"datasets":[{"data":[1]}]}}`)},
			want: ErrUnsupportedChartType,
		},
		{
			name: "unknown format",
			req:  domain.RenderRequest{Width: 200, Height: 200, Format: "avif", Chart: decodeSpec(t, barSpec)},
			want: ErrUnsupportedFormat,
		},
		{
			name: "too small",
			req:  domain.RenderRequest{Width: 10, Height: 200, Chart: decodeSpec(t, barSpec)},
			want: domain.ErrInvalidDimensions,
		},
		{
			name: "no datasets",
			req:  domain.RenderRequest{Width: 200, Height: 200, Chart: decodeSpec(t, `{"type":"pie","data":{"datasets":[]}}`)},
			want: errNoData,
		},
		{
			name: "no datasets is permanent",
			req:  domain.RenderRequest{Width: 200, Height: 200, Chart: decodeSpec(t, `{"type":"bar","data":{"datasets":[]}}`)},
			want: ErrRenderInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := renderer.Render(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestChartRenderer_CanceledContext(t *testing.T) {
	renderer := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := renderer.Render(ctx, domain.RenderRequest{Width: 200, Height: 200, Chart: decodeSpec(t, barSpec)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStartup_Idempotent(t *testing.T) {
	for i := 0; i < 3; i++ {
		if err := Startup(); err != nil {
			t.Fatalf("startup call %d: %v", i, err)
		}
	}
	if len(builders) != len(domain.ChartKinds()) {
		t.Fatalf("expected %d registered kinds, got %d", len(domain.ChartKinds()), len(builders))
	}
	if defaultFont == nil {
		t.Fatal("expected default font to be loaded")
	}
}

func TestSupportedFormat(t *testing.T) {
	for _, f := range []string{"png", "PNG", "jpg", "jpeg", "gif", "bmp", "tif", "tiff", "svg", "webp"} {
		if !SupportedFormat(f) {
			t.Fatalf("expected %q to be supported", f)
		}
	}
	for _, f := range []string{"avif", "pdf", "image/png"} {
		if SupportedFormat(f) {
			t.Fatalf("expected %q to be unsupported", f)
		}
	}
}
