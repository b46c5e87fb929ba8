package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/logging"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// ErrQueueFull is returned by AsyncSink.Append when the buffer is full.
var ErrQueueFull = errors.New("audit queue full")

const defaultAsyncBuffer = 1024

// AsyncConfig configures AsyncSink.
type AsyncConfig struct {
	Buffer       int
	Workers      int
	WriteTimeout time.Duration // per-record deadline for the inner sink; 0 means none
}

// AsyncSink queues records and appends them to the inner sink from
// background workers. Append never blocks; when the queue is full the
// record is dropped and ErrQueueFull returned.
type AsyncSink struct {
	inner   Sink
	cfg     AsyncConfig
	logger  *zap.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan *models.AuditRecord
	wg     sync.WaitGroup
}

func NewAsyncSink(inner Sink, cfg AsyncConfig, logger *zap.Logger, metrics *Metrics) *AsyncSink {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultAsyncBuffer
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	s := &AsyncSink{
		inner:   inner,
		cfg:     cfg,
		logger:  logger.Named("audit-async"),
		metrics: metrics,
		queue:   make(chan *models.AuditRecord, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.run()
	}
	return s
}

func (s *AsyncSink) Append(_ context.Context, record *models.AuditRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return apperrors.ErrSinkClosed
	}
	select {
	case s.queue <- record:
		return nil
	default:
		s.metrics.IncAsyncDropped()
		return ErrQueueFull
	}
}

// Len returns the number of queued records.
func (s *AsyncSink) Len() int {
	return len(s.queue)
}

// Close stops accepting records, waits for the queue to drain and closes
// the inner sink.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return closeSink(s.inner)
}

// run appends queued records with a background context bounded by
// WriteTimeout.
func (s *AsyncSink) run() {
	defer s.wg.Done()
	for record := range s.queue {
		ctx := context.Background()
		cancel := func() {}
		if s.cfg.WriteTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		}
		if err := s.inner.Append(ctx, record); err != nil {
			s.metrics.IncSinkFailures(record.EntityType)
			s.logger.Error("Failed to append queued audit record",
				zap.String("record_id", record.ID.String()),
				zap.String("entity_type", record.EntityType),
				zap.String("action", string(record.Action)),
				zap.String("error", logging.SanitizeError(err)))
		}
		cancel()
	}
}
