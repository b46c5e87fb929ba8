package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// FileSink appends records to a file as JSON lines. Each write is added as
// an event on the span in the caller's context.
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

// NewFileSink opens path for appending, creating it and its directory.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &FileSink{path: path, file: f, enc: enc}, nil
}

func (s *FileSink) Append(ctx context.Context, record *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return apperrors.ErrSinkClosed
	}
	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record to %s: %w", s.path, err)
	}

	trace.SpanFromContext(ctx).AddEvent("audit.file.write", trace.WithAttributes(
		attribute.String("audit.file.path", s.path),
		attribute.String("audit.record_id", record.ID.String()),
	))
	return nil
}

// Close syncs and closes the file. Later appends fail with ErrSinkClosed.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil
	if syncErr != nil {
		return fmt.Errorf("failed to sync audit log: %w", syncErr)
	}
	return closeErr
}
