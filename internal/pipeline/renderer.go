package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dunamismax/chartflow/internal/domain"
	chart "github.com/wcharczuk/go-chart/v2"
)

var (
	ErrUnsupportedChartType = errors.New("unsupported chart type")
	// ErrRenderInput marks charts whose data the drawing code rejects or
	// panics on. Rendering the same input again fails the same way.
	ErrRenderInput = errors.New("chart input cannot be rendered")
)

type Renderer interface {
	Render(ctx context.Context, req domain.RenderRequest) ([]byte, error)
}

// ChartRenderer draws chart specs with go-chart. The zero value is usable
// once Startup has run; NewChartRenderer takes care of that.
type ChartRenderer struct{}

func NewChartRenderer() (*ChartRenderer, error) {
	if err := Startup(); err != nil {
		return nil, fmt.Errorf("start renderer: %w", err)
	}
	return &ChartRenderer{}, nil
}

func (r *ChartRenderer) Render(ctx context.Context, req domain.RenderRequest) (out []byte, err error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := req.ValidateDimensions(); err != nil {
		return nil, err
	}
	format := normalizeOutputFormat(req.OutputFormat())
	if !SupportedFormat(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	if err := registerBuiltins(); err != nil {
		return nil, fmt.Errorf("load chart font: %w", err)
	}

	kind := req.Chart.Kind()
	build, ok := builderFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChartType, req.Chart.Type)
	}

	// go-chart panics on some degenerate inputs (NaN ranges, zero-size boxes).
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("%w: render %s chart: %v", ErrRenderInput, kind, rec)
		}
	}()

	c, err := build(req.Chart, canvas{width: req.Width, height: req.Height, font: defaultFont})
	if err != nil {
		return nil, fmt.Errorf("%w: build %s chart: %w", ErrRenderInput, kind, err)
	}

	provider := chart.PNG
	if format == "svg" {
		provider = chart.SVG
	}

	var buf bytes.Buffer
	if err := c.Render(provider, &buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", kind, err)
	}
	if format == "svg" {
		return buf.Bytes(), nil
	}
	return encodeRendered(buf.Bytes(), format)
}
