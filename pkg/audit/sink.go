// Package audit defines where audit records go: the Sink interface, the
// decorators that make sinks resilient, and the per-entity policies that
// decide what is redacted before a record leaves the process.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// Sink persists or forwards audit records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, record *models.AuditRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, record *models.AuditRecord) error

func (f SinkFunc) Append(ctx context.Context, record *models.AuditRecord) error {
	return f(ctx, record)
}

// Discard is a Sink that drops every record.
var Discard Sink = SinkFunc(func(context.Context, *models.AuditRecord) error { return nil })

// MultiSink appends every record to all sinks concurrently. It fails if any
// sink fails, reporting all failures.
type MultiSink struct {
	sinks []Sink
	names []string
}

// NewMultiSink returns a fan-out sink. names label errors and may be nil.
func NewMultiSink(sinks []Sink, names []string) *MultiSink {
	return &MultiSink{sinks: sinks, names: names}
}

func (m *MultiSink) Append(ctx context.Context, record *models.AuditRecord) error {
	errs := make([]error, len(m.sinks))

	var g errgroup.Group
	for i, s := range m.sinks {
		g.Go(func() error {
			if err := s.Append(ctx, record); err != nil {
				errs[i] = fmt.Errorf("%s: %w", m.name(i), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for i, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.name(i), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) name(i int) string {
	if i < len(m.names) && m.names[i] != "" {
		return m.names[i]
	}
	return fmt.Sprintf("sink[%d]", i)
}
