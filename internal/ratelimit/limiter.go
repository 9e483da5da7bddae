package ratelimit

import (
	"context"
	"strings"
	"time"
)

const defaultKeyPrefix = "chartflow:ratelimit"

// Limiter decides whether subject may make one more request now.
type Limiter interface {
	Allow(ctx context.Context, subject string) (Decision, error)
}

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func normalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "anonymous"
	}
	return subject
}
