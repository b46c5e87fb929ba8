package audit

import (
	"context"
	"io"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
	"github.com/ekaya-inc/ekaya-audit/pkg/retry"
)

// RetrySink retries transient append failures with backoff.
type RetrySink struct {
	inner Sink
	cfg   *retry.Config
}

// NewRetrySink wraps inner. A nil cfg uses retry.DefaultConfig.
func NewRetrySink(inner Sink, cfg *retry.Config) *RetrySink {
	return &RetrySink{inner: inner, cfg: cfg}
}

func (r *RetrySink) Append(ctx context.Context, record *models.AuditRecord) error {
	return retry.DoIfRetryable(ctx, r.cfg, func() error {
		return r.inner.Append(ctx, record)
	})
}

func (r *RetrySink) Close() error {
	return closeSink(r.inner)
}

func closeSink(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
