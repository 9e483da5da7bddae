package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/chartflow/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeRenderChart = "chart:render"

type RenderChartPayload struct {
	JobID       string           `json:"job_id"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Format      string           `json:"format"`
	Chart       domain.ChartSpec `json:"chart"`
	WebhookURL  string           `json:"webhook_url,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
}

func PayloadForJob(job domain.Job, requestedAt time.Time) RenderChartPayload {
	return RenderChartPayload{
		JobID:       job.ID,
		Width:       job.Width,
		Height:      job.Height,
		Format:      job.Format,
		Chart:       job.Chart,
		WebhookURL:  job.WebhookURL,
		RequestedAt: requestedAt,
	}
}

func (p RenderChartPayload) RenderRequest() domain.RenderRequest {
	return domain.RenderRequest{
		Width:  p.Width,
		Height: p.Height,
		Format: p.Format,
		Chart:  p.Chart,
	}
}

func NewRenderChartTask(payload RenderChartPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal render payload: %w", err)
	}
	return asynq.NewTask(TypeRenderChart, body), nil
}

func ParseRenderChartPayload(task *asynq.Task) (RenderChartPayload, error) {
	var payload RenderChartPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RenderChartPayload{}, fmt.Errorf("unmarshal render payload: %w", err)
	}
	if strings.TrimSpace(payload.JobID) == "" {
		return RenderChartPayload{}, errors.New("render payload is missing job_id")
	}
	return payload, nil
}
