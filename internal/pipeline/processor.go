package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/chartflow/internal/chartconfig"
	"github.com/dunamismax/chartflow/internal/domain"
	"github.com/dunamismax/chartflow/internal/storage"
)

type Request struct {
	JobID  string
	Render domain.RenderRequest
}

type Output struct {
	Format string
	Path   string
	Bytes  int
	Width  int
	Height int
}

type Emitter interface {
	Emit(ctx context.Context, jobID string, data []byte, format string) (Output, error)
}

// Processor runs the job path: apply the render defaults, draw the chart,
// then hand the encoded bytes to an emitter.
type Processor struct {
	renderer Renderer
	emitter  Emitter
}

func NewProcessor(renderer Renderer, emitter Emitter) *Processor {
	return &Processor{renderer: renderer, emitter: emitter}
}

func NewLocalProcessor(outputDir string) (*Processor, error) {
	renderer, err := NewChartRenderer()
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}
	dir, err := storage.NewLocalDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("build output dir: %w", err)
	}
	return NewProcessor(renderer, ObjectStoreEmitter{Storage: dir}), nil
}

func (p *Processor) Process(ctx context.Context, req Request) (Output, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Output{}, errors.New("job_id is required")
	}

	render := req.Render
	render.Chart = chartconfig.ApplyRenderDefaults(render.Chart)
	format := normalizeOutputFormat(render.OutputFormat())

	data, err := p.renderer.Render(ctx, render)
	if err != nil {
		return Output{}, fmt.Errorf("render stage: %w", err)
	}

	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	default:
	}

	out, err := p.emitter.Emit(ctx, req.JobID, data, format)
	if err != nil {
		return Output{}, fmt.Errorf("emit stage: %w", err)
	}
	out.Width = render.Width
	out.Height = render.Height
	return out, nil
}

func artifactName(jobID, format string) string {
	return fmt.Sprintf("%s.%s", sanitizePathToken(jobID), fileExtension(format))
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
