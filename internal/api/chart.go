package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dunamismax/chartflow/internal/chartconfig"
	"github.com/dunamismax/chartflow/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgMissingChart      = `Missing chart configuration parameter "c"`
	msgInvalidDimensions = "Invalid dimensions. Width and height must be between 50 and 4000 pixels."
	msgRenderFailed      = "Failed to generate chart"

	chartCacheControl = "public, max-age=3600"
)

// handleChart renders the chart described by the query string.
//
//	GET /api/chart?c=<config>&w=<width>&h=<height>&f=<format>
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	raw := query.Get("c")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgMissingChart})
		return
	}

	parsed, err := chartconfig.Parse(raw)
	if err != nil {
		var perr *chartconfig.ParseError
		if errors.As(err, &perr) {
			s.metrics.configStrategy.WithLabelValues("failed").Inc()
			writeJSON(w, http.StatusBadRequest, parseErrorBody(perr))
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.metrics.configStrategy.WithLabelValues(parsed.Strategy).Inc()

	width, okW := parseDimension(query.Get("w"), domain.DefaultWidth)
	height, okH := parseDimension(query.Get("h"), domain.DefaultHeight)
	req := domain.RenderRequest{
		Width:  width,
		Height: height,
		Format: query.Get("f"),
		Chart:  chartconfig.ApplyRenderDefaults(parsed.Chart),
	}
	if !okW || !okH || req.ValidateDimensions() != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidDimensions})
		return
	}
	format := req.OutputFormat()

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("chart.type", req.Chart.Type),
		attribute.String("chart.config_strategy", parsed.Strategy),
		attribute.String("chart.format", format),
		attribute.Int("chart.width", width),
		attribute.Int("chart.height", height),
	)

	startedAt := time.Now()
	data, err := s.renderer.Render(r.Context(), req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.renderDuration.WithLabelValues(req.Chart.Type, status).Observe(time.Since(startedAt).Seconds())

	if err != nil {
		s.logger.Printf("chart render failed type=%s size=%dx%d format=%s err=%v", req.Chart.Type, width, height, format, err)
		writeRenderFailure(w, err.Error())
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/"+format)
	h.Set("Cache-Control", chartCacheControl)
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Printf("chart response write failed err=%v", err)
	}
}

func (s *Server) handleChartPreflight(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

func parseErrorBody(perr *chartconfig.ParseError) map[string]string {
	return map[string]string{
		"error":      perr.Message,
		"received":   perr.Received,
		"suggestion": perr.Suggestion,
	}
}

func writeRenderFailure(w http.ResponseWriter, details string) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   msgRenderFailed,
		"details": details,
	})
}

// parseDimension reads an integer the way browsers' parseInt does: leading
// whitespace, an optional sign, then as many digits as are present. Trailing
// garbage is ignored ("640px" is 640). An empty value yields fallback; a
// value with no leading digits is reported as invalid.
func parseDimension(raw string, fallback int) (int, bool) {
	if raw == "" {
		return fallback, true
	}

	s := strings.TrimLeftFunc(raw, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	digits := strings.TrimLeft(s[:end], "0")
	if digits == "" {
		return 0, true
	}
	// Anything this long is out of range no matter its value.
	if len(digits) > 9 {
		return domain.MaxDimension + 1, true
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}
