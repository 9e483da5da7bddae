package chartconfig

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dunamismax/chartflow/internal/domain"
)

// URLBuilder assembles GET /api/chart URLs for a chart.
type URLBuilder struct {
	baseURL string
	chart   domain.ChartSpec
	width   int
	height  int
	format  string
}

func NewURLBuilder(baseURL string) *URLBuilder {
	return &URLBuilder{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		chart: domain.ChartSpec{
			Type: string(domain.ChartKindBar),
			Data: domain.ChartData{Datasets: []domain.Dataset{}},
		},
		format: domain.DefaultFormat,
	}
}

func (b *URLBuilder) Type(kind domain.ChartKind) *URLBuilder {
	b.chart.Type = string(kind)
	return b
}

func (b *URLBuilder) Data(data domain.ChartData) *URLBuilder {
	b.chart.Data = data
	return b
}

func (b *URLBuilder) Options(options map[string]any) *URLBuilder {
	b.chart.Options = options
	return b
}

func (b *URLBuilder) Chart(chart domain.ChartSpec) *URLBuilder {
	b.chart = chart
	return b
}

func (b *URLBuilder) Dimensions(width, height int) *URLBuilder {
	b.width = width
	b.height = height
	return b
}

func (b *URLBuilder) Format(format string) *URLBuilder {
	if strings.TrimSpace(format) != "" {
		b.format = strings.TrimSpace(format)
	}
	return b
}

func (b *URLBuilder) Build() (string, error) {
	body, err := json.Marshal(b.chart)
	if err != nil {
		return "", fmt.Errorf("marshal chart: %w", err)
	}

	params := url.Values{}
	params.Set("c", string(body))
	if b.width > 0 {
		params.Set("w", strconv.Itoa(b.width))
	}
	if b.height > 0 {
		params.Set("h", strconv.Itoa(b.height))
	}
	if b.format != domain.DefaultFormat {
		params.Set("f", b.format)
	}

	return b.baseURL + "/api/chart?" + params.Encode(), nil
}
