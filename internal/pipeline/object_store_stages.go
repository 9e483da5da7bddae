package pipeline

import (
	"context"
	"errors"
	"path"
	"strings"
)

type ObjectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// ObjectStoreEmitter uploads rendered charts under <prefix>/<job id>.<ext>.
type ObjectStoreEmitter struct {
	Storage      ObjectWriter
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, jobID string, data []byte, format string) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}

	objectKey := ObjectKey(e.OutputPrefix, jobID, format)
	if err := e.Storage.WriteObject(ctx, objectKey, data, contentTypeForFormat(format)); err != nil {
		return Output{}, err
	}

	return Output{
		Format: normalizeOutputFormat(format),
		Path:   objectKey,
		Bytes:  len(data),
	}, nil
}

func ObjectKey(prefix, jobID, format string) string {
	return path.Join(defaultOutputPrefix(prefix), artifactName(jobID, format))
}

func defaultOutputPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "charts"
	}
	return prefix
}
