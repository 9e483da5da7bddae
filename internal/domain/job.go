package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRendering = "rendering"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// CreateJobRequest asks for a chart to be rendered in the background and
// stored. Chart may be a JSON object or a string in any of the forms the
// chart endpoint accepts.
type CreateJobRequest struct {
	Chart      json.RawMessage `json:"chart"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
	Format     string          `json:"format,omitempty"`
	WebhookURL string          `json:"webhook_url,omitempty"`
}

type Job struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Format     string    `json:"format"`
	Chart      ChartSpec `json:"chart"`
	WebhookURL string    `json:"webhook_url,omitempty"`
	ObjectKey  string    `json:"object_key,omitempty"`
	Bytes      int       `json:"bytes,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r CreateJobRequest) Validate() error {
	if len(bytes.TrimSpace(r.Chart)) == 0 || bytes.Equal(bytes.TrimSpace(r.Chart), []byte("null")) {
		return errors.New("chart is required")
	}
	if r.WebhookURL != "" {
		u, err := url.Parse(r.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid webhook_url: %s", r.WebhookURL)
		}
	}
	return nil
}

// ChartText returns the chart configuration as raw text. A JSON string is
// unwrapped so that lenient notation can be submitted inside a JSON body.
func (r CreateJobRequest) ChartText() (string, error) {
	raw := bytes.TrimSpace(r.Chart)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid chart string: %w", err)
		}
		return s, nil
	}
	return string(raw), nil
}

func (r CreateJobRequest) RenderRequest(chart ChartSpec) RenderRequest {
	req := RenderRequest{
		Width:  r.Width,
		Height: r.Height,
		Format: strings.TrimSpace(r.Format),
		Chart:  chart,
	}
	if req.Width == 0 {
		req.Width = DefaultWidth
	}
	if req.Height == 0 {
		req.Height = DefaultHeight
	}
	if req.Format == "" {
		req.Format = DefaultFormat
	}
	return req
}

func (j Job) RenderRequest() RenderRequest {
	return RenderRequest{
		Width:  j.Width,
		Height: j.Height,
		Format: j.Format,
		Chart:  j.Chart,
	}
}

func (j Job) Finished() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
