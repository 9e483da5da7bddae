package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/dunamismax/chartflow/internal/domain"
)

func BenchmarkProcessorBarPNG(b *testing.B) {
	benchmarkChart(b, barSpec, "png")
}

func BenchmarkProcessorLineJPEG(b *testing.B) {
	benchmarkChart(b, lineSpec, "jpeg")
}

func BenchmarkProcessorRadarPNG(b *testing.B) {
	benchmarkChart(b, radarSpec, "png")
}

func benchmarkChart(b *testing.B, raw, format string) {
	renderer := newTestRenderer(b)
	processor := NewProcessor(renderer, discardEmitter{})

	req := Request{
		Render: domain.RenderRequest{
			Width:  800,
			Height: 600,
			Format: format,
			Chart:  decodeSpec(b, raw),
		},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req.JobID = fmt.Sprintf("bench-%d", i)
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

type discardEmitter struct{}

func (discardEmitter) Emit(_ context.Context, _ string, data []byte, format string) (Output, error) {
	return Output{
		Format: normalizeOutputFormat(format),
		Bytes:  len(data),
	}, nil
}
