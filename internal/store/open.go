package store

import (
	"context"
	"strings"
)

// Open returns a Postgres-backed store when dsn is set and an in-memory one
// otherwise. The returned close func is never nil.
func Open(ctx context.Context, dsn string) (JobStore, func() error, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewMemoryJobStore(), func() error { return nil }, nil
	}

	pg, err := NewPostgresJobStore(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
