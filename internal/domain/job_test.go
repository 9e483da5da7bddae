package domain

import (
	"encoding/json"
	"testing"
)

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		Chart:      json.RawMessage(`{"type":"bar","data":{"datasets":[{"data":[1]}]}}`),
		WebhookURL: "https://example.com/hook",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateJobRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	nullChart := CreateJobRequest{Chart: json.RawMessage("null")}
	if err := nullChart.Validate(); err == nil {
		t.Fatal("expected validation error for null chart")
	}

	badWebhook := CreateJobRequest{
		Chart:      json.RawMessage(`{}`),
		WebhookURL: "ftp://example.com/hook",
	}
	if err := badWebhook.Validate(); err == nil {
		t.Fatal("expected validation error for non-http webhook_url")
	}
}

func TestCreateJobRequestChartText(t *testing.T) {
	req := CreateJobRequest{Chart: json.RawMessage(`"{type:'bar'}"`)}
	text, err := req.ChartText()
	if err != nil {
		t.Fatalf("ChartText returned error: %v", err)
	}
	if text != "{type:'bar'}" {
		t.Fatalf("expected unwrapped string, got %q", text)
	}

	req = CreateJobRequest{Chart: json.RawMessage(` {"type":"line"}`)}
	text, err = req.ChartText()
	if err != nil {
		t.Fatalf("ChartText returned error: %v", err)
	}
	if text != `{"type":"line"}` {
		t.Fatalf("expected raw object text, got %q", text)
	}
}

func TestCreateJobRequestRenderRequestDefaults(t *testing.T) {
	req := CreateJobRequest{}.RenderRequest(ChartSpec{Type: "pie"})
	if req.Width != DefaultWidth || req.Height != DefaultHeight {
		t.Fatalf("expected %dx%d, got %dx%d", DefaultWidth, DefaultHeight, req.Width, req.Height)
	}
	if req.Format != DefaultFormat {
		t.Fatalf("expected format %s, got %s", DefaultFormat, req.Format)
	}
}
