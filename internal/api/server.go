package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/chartflow/internal/pipeline"
	"github.com/dunamismax/chartflow/internal/queue"
	"github.com/dunamismax/chartflow/internal/ratelimit"
	"github.com/dunamismax/chartflow/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger              *log.Logger
	renderer            pipeline.Renderer
	queueClient         queueEnqueuer
	jobStore            store.JobStore
	artifacts           artifactStore
	rateLimiter         ratelimit.Limiter
	rateLimitUserHeader string
	publicURL           string
	presignTTL          time.Duration
	metrics             *metrics
	tracer              trace.Tracer
	mux                 *http.ServeMux
}

type queueEnqueuer interface {
	EnqueueRenderChart(ctx context.Context, payload queue.RenderChartPayload) (*asynq.TaskInfo, error)
}

type artifactStore interface {
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ReadObject(ctx context.Context, objectKey string) ([]byte, string, error)
}

// Options wires a Server. Renderer is required; the job endpoints are only
// mounted when both Queue and JobStore are set.
type Options struct {
	Logger              *log.Logger
	Renderer            pipeline.Renderer
	Queue               queueEnqueuer
	JobStore            store.JobStore
	Artifacts           artifactStore
	RateLimiter         ratelimit.Limiter
	RateLimitUserHeader string
	PublicURL           string
	PresignTTL          time.Duration
	Tracer              trace.Tracer
}

func NewServer(opts Options) (*Server, error) {
	if opts.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	if opts.Artifacts == nil {
		opts.Artifacts = unavailableArtifacts{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("chartflow/api")
	}
	if opts.RateLimitUserHeader == "" {
		opts.RateLimitUserHeader = "X-User-ID"
	}

	s := &Server{
		logger:              opts.Logger,
		renderer:            opts.Renderer,
		queueClient:         opts.Queue,
		jobStore:            opts.JobStore,
		artifacts:           opts.Artifacts,
		rateLimiter:         opts.RateLimiter,
		rateLimitUserHeader: opts.RateLimitUserHeader,
		publicURL:           opts.PublicURL,
		presignTTL:          opts.PresignTTL,
		metrics:             newMetrics(),
		tracer:              opts.Tracer,
		mux:                 http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

type unavailableArtifacts struct{}

func (unavailableArtifacts) PresignedGetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("artifact storage is unavailable")
}

func (unavailableArtifacts) ReadObject(_ context.Context, _ string) ([]byte, string, error) {
	return nil, "", errors.New("artifact storage is unavailable")
}

// Handler returns the mux wrapped in the middleware chain, outermost first:
// recover, tracing, metrics, rate limit.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = s.metrics.withHTTPMetrics(h)
	h = s.withTracing(h)
	h = s.withRecover(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())

	s.mux.HandleFunc("GET /api/chart", s.handleChart)
	s.mux.HandleFunc("OPTIONS /api/chart", s.handleChartPreflight)

	if s.queueClient != nil && s.jobStore != nil {
		s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
		s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
		s.mux.HandleFunc("GET /v1/jobs/{id}/image", s.handleJobImage)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.logger.Printf("panic recovered method=%s path=%s err=%v", r.Method, r.URL.Path, rec)
			if routeLabel(r.URL.Path) == "/api/chart" {
				writeRenderFailure(w, fmt.Sprint(rec))
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}()
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
