package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/chartflow/internal/chartconfig"
	"github.com/dunamismax/chartflow/internal/domain"
	"github.com/dunamismax/chartflow/internal/id"
	"github.com/dunamismax/chartflow/internal/pipeline"
	"github.com/dunamismax/chartflow/internal/queue"
	"github.com/dunamismax/chartflow/internal/storage"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	text, err := req.ChartText()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	parsed, err := chartconfig.Parse(text)
	if err != nil {
		var perr *chartconfig.ParseError
		if errors.As(err, &perr) {
			writeJSON(w, http.StatusBadRequest, parseErrorBody(perr))
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.metrics.configStrategy.WithLabelValues(parsed.Strategy).Inc()

	if err := parsed.Chart.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	render := req.RenderRequest(parsed.Chart)
	if err := render.ValidateDimensions(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidDimensions})
		return
	}
	if !pipeline.SupportedFormat(render.Format) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unsupported format: %s", render.Format)})
		return
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:         id.New(),
		Status:     domain.JobStatusQueued,
		Width:      render.Width,
		Height:     render.Height,
		Format:     render.Format,
		Chart:      render.Chart,
		WebhookURL: req.WebhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Printf("create job failed job_id=%s err=%v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job"})
		return
	}

	taskInfo, err := s.queueClient.EnqueueRenderChart(r.Context(), queue.PayloadForJob(job, now))
	if err != nil {
		s.logger.Printf("enqueue failed job_id=%s err=%v", job.ID, err)
		if _, failErr := s.jobStore.Fail(r.Context(), job.ID, "enqueue failed"); failErr != nil {
			s.logger.Printf("mark job failed job_id=%s err=%v", job.ID, failErr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	body := map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"status_url": fmt.Sprintf("/v1/jobs/%s", job.ID),
	}
	if chartURL, err := s.chartURL(job); err == nil {
		body["chart_url"] = chartURL
	} else {
		s.logger.Printf("build chart url failed job_id=%s err=%v", job.ID, err)
	}

	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	body := map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"width":      job.Width,
		"height":     job.Height,
		"format":     job.Format,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if job.Error != "" {
		body["error"] = job.Error
	}
	if job.Status == domain.JobStatusSucceeded {
		body["object_key"] = job.ObjectKey
		body["bytes"] = job.Bytes
		body["image_url"] = fmt.Sprintf("/v1/jobs/%s/image", job.ID)

		downloadURL, err := s.artifacts.PresignedGetURL(r.Context(), job.ObjectKey, s.presignTTL)
		switch {
		case err == nil:
			body["download_url"] = downloadURL
			body["download_url_expires_at"] = time.Now().UTC().Add(s.presignTTL)
		case errors.Is(err, storage.ErrPresignUnsupported):
		default:
			s.logger.Printf("presign download failed job_id=%s err=%v", job.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// handleJobImage streams the stored artifact for storage backends that
// cannot hand out presigned links.
func (s *Server) handleJobImage(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusSucceeded {
		writeJSON(w, http.StatusConflict, map[string]string{"error": fmt.Sprintf("job is %s", job.Status)})
		return
	}

	data, contentType, err := s.artifacts.ReadObject(r.Context(), job.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "chart artifact not found"})
			return
		}
		s.logger.Printf("read artifact failed job_id=%s err=%v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read chart"})
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", chartCacheControl)
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (domain.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return domain.Job{}, false
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return domain.Job{}, false
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return domain.Job{}, false
	}
	return job, true
}

func (s *Server) chartURL(job domain.Job) (string, error) {
	return chartconfig.NewURLBuilder(s.publicURL).
		Chart(job.Chart).
		Dimensions(job.Width, job.Height).
		Format(job.Format).
		Build()
}
