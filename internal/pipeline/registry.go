package pipeline

import (
	"io"
	"sync"

	"github.com/dunamismax/chartflow/internal/domain"
	"github.com/golang/freetype/truetype"
	chart "github.com/wcharczuk/go-chart/v2"
)

// renderable is satisfied by the go-chart chart types and by the radial
// charts drawn directly on a go-chart renderer.
type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

type canvas struct {
	width  int
	height int
	font   *truetype.Font
}

type chartBuilder func(spec domain.ChartSpec, cv canvas) (renderable, error)

var (
	registryOnce sync.Once
	builders     map[domain.ChartKind]chartBuilder
	defaultFont  *truetype.Font
	fontErr      error
)

// registerBuiltins runs once per process no matter how often it is called.
func registerBuiltins() error {
	registryOnce.Do(func() {
		builders = map[domain.ChartKind]chartBuilder{
			domain.ChartKindBar:       buildBarChart,
			domain.ChartKindLine:      buildLineChart,
			domain.ChartKindScatter:   buildScatterChart,
			domain.ChartKindBubble:    buildBubbleChart,
			domain.ChartKindPie:       buildPieChart,
			domain.ChartKindDoughnut:  buildDoughnutChart,
			domain.ChartKindPolarArea: buildPolarAreaChart,
			domain.ChartKindRadar:     buildRadarChart,
		}
		defaultFont, fontErr = chart.GetDefaultFont()
	})
	return fontErr
}

func builderFor(kind domain.ChartKind) (chartBuilder, bool) {
	b, ok := builders[kind]
	return b, ok
}
