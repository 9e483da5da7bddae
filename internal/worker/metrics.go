package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	rendersTotal       *prometheus.CounterVec
	renderDuration     *prometheus.HistogramVec
	activeRenders      prometheus.Gauge
	renderedBytesTotal *prometheus.CounterVec
	webhookFailures    *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		rendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartflow_worker_renders_total",
			Help: "Total render jobs by chart type and final status.",
		}, []string{"chart_type", "status"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chartflow_worker_render_duration_seconds",
			Help:    "Total duration of each render job, including upload.",
			Buckets: prometheus.DefBuckets,
		}, []string{"chart_type", "status"}),
		activeRenders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartflow_worker_active_renders",
			Help: "Current number of charts being rendered by the worker.",
		}),
		renderedBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartflow_worker_rendered_bytes_total",
			Help: "Total bytes of rendered chart artifacts by format.",
		}, []string{"format"}),
		webhookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartflow_worker_webhook_failures_total",
			Help: "Webhook deliveries that failed after all attempts.",
		}, []string{"event"}),
	}

	registry.MustRegister(
		m.rendersTotal,
		m.renderDuration,
		m.activeRenders,
		m.renderedBytesTotal,
		m.webhookFailures,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
