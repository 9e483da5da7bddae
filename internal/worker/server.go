package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/chartflow/internal/config"
	"github.com/dunamismax/chartflow/internal/domain"
	"github.com/dunamismax/chartflow/internal/pipeline"
	"github.com/dunamismax/chartflow/internal/queue"
	"github.com/dunamismax/chartflow/internal/store"
	"github.com/dunamismax/chartflow/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	processor     chartProcessor
	webhookClient webhookSender
	jobStore      store.JobStore
	metrics       *metrics
	tracer        trace.Tracer
}

type chartProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Output, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	processor chartProcessor,
	webhookClient webhookSender,
	jobStore store.JobStore,
) (*Server, error) {
	if processor == nil {
		return nil, errors.New("chart processor is required")
	}
	if jobStore == nil {
		return nil, errors.New("job store is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:           make(chan struct{}, max(1, workerCfg.MaxActiveRenders)),
		processor:     processor,
		webhookClient: webhookClient,
		jobStore:      jobStore,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("chartflow/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeRenderChart, s.handleRenderChart)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleRenderChart(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseRenderChartPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	kind := payload.Chart.Type

	ctx, span := s.tracer.Start(ctx, "worker.render_chart", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("chart.type", kind),
		attribute.String("chart.format", payload.Format),
		attribute.Int("chart.width", payload.Width),
		attribute.Int("chart.height", payload.Height),
	)
	defer span.End()
	defer func() {
		s.metrics.renderDuration.WithLabelValues(kind, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.rendersTotal.WithLabelValues(kind, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.metrics.activeRenders.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeRenders.Dec()
	}()

	s.logger.Printf(
		"rendering job_id=%s type=%s size=%dx%d format=%s",
		payload.JobID,
		kind,
		payload.Width,
		payload.Height,
		payload.Format,
	)
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusRendering)

	out, err := s.processor.Process(ctx, pipeline.Request{
		JobID:  payload.JobID,
		Render: payload.RenderRequest(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")

		permanent := isPermanent(err)
		if !permanent && !finalAttempt(ctx) {
			s.updateJobStatus(ctx, payload.JobID, domain.JobStatusQueued)
			return fmt.Errorf("render chart: %w", err)
		}

		if _, storeErr := s.jobStore.Fail(ctx, payload.JobID, err.Error()); storeErr != nil {
			s.logger.Printf("job fail update failed job_id=%s err=%v", payload.JobID, storeErr)
		}
		s.dispatchWebhook(ctx, payload, webhook.EventJobFailed, map[string]any{
			"job_id":       payload.JobID,
			"status":       domain.JobStatusFailed,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		if permanent {
			return fmt.Errorf("render chart: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("render chart: %w", err)
	}

	s.logger.Printf("rendered job_id=%s object_key=%s bytes=%d", payload.JobID, out.Path, out.Bytes)
	if _, err := s.jobStore.Complete(ctx, payload.JobID, out.Path, out.Bytes); err != nil {
		s.logger.Printf("job complete update failed job_id=%s err=%v", payload.JobID, err)
	}
	s.metrics.renderedBytesTotal.WithLabelValues(out.Format).Add(float64(out.Bytes))

	s.dispatchWebhook(ctx, payload, webhook.EventJobCompleted, map[string]any{
		"job_id":       payload.JobID,
		"status":       domain.JobStatusSucceeded,
		"object_key":   out.Path,
		"format":       out.Format,
		"bytes":        out.Bytes,
		"width":        out.Width,
		"height":       out.Height,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
	})

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "rendered")
	return nil
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

// dispatchWebhook never fails the task: the chart is already stored, and
// re-rendering would not help a receiver that is down.
func (s *Server) dispatchWebhook(ctx context.Context, payload queue.RenderChartPayload, event string, body map[string]any) {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.metrics.webhookFailures.WithLabelValues(event).Inc()
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
	}
}

// isPermanent reports errors that a retry would reproduce exactly.
func isPermanent(err error) bool {
	return errors.Is(err, pipeline.ErrUnsupportedChartType) ||
		errors.Is(err, pipeline.ErrUnsupportedFormat) ||
		errors.Is(err, pipeline.ErrRenderInput) ||
		errors.Is(err, domain.ErrInvalidDimensions)
}

func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}
