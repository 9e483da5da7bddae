package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/chartflow/internal/domain"
)

func TestMemoryJobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	job := domain.Job{ID: "job-1", Status: domain.JobStatusQueued, Format: "png"}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.UpdateStatus(ctx, "job-1", domain.JobStatusRendering)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got.Status != domain.JobStatusRendering || !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected job after update %+v", got)
	}

	got, err = s.Complete(ctx, "job-1", "charts/job-1.png", 1234)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != domain.JobStatusSucceeded || got.ObjectKey != "charts/job-1.png" || got.Bytes != 1234 {
		t.Fatalf("unexpected completed job %+v", got)
	}

	stored, ok, err := s.Get(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !stored.Finished() {
		t.Fatal("expected stored job to be finished")
	}
}

func TestMemoryJobStore_Fail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	_ = s.Create(ctx, domain.Job{ID: "job-2", Status: domain.JobStatusRendering})

	got, err := s.Fail(ctx, "job-2", "render stage: boom")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if got.Status != domain.JobStatusFailed || got.Error != "render stage: boom" {
		t.Fatalf("unexpected failed job %+v", got)
	}
}

func TestMemoryJobStore_Missing(t *testing.T) {
	s := NewMemoryJobStore()

	if _, ok, err := s.Get(context.Background(), "nope"); ok || err != nil {
		t.Fatalf("expected missing job, got ok=%v err=%v", ok, err)
	}
	if _, err := s.UpdateStatus(context.Background(), "nope", domain.JobStatusFailed); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestOpen_EmptyDSNUsesMemory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), "  ")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := s.(*MemoryJobStore); !ok {
		t.Fatalf("expected *MemoryJobStore, got %T", s)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
