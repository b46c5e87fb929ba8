package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures BreakerSink. Zero values use the defaults.
type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// BreakerSink opens after MaxFailures consecutive append failures and
// fails fast until Timeout has passed.
type BreakerSink struct {
	name    string
	inner   Sink
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerSink(name string, inner Sink, cfg BreakerConfig, logger *zap.Logger) *BreakerSink {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultBreakerMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultBreakerTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultBreakerInterval
	}
	logger = logger.Named("audit-breaker")

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "audit-sink:" + name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Audit sink circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerSink{name: name, inner: inner, breaker: cb}
}

func (b *BreakerSink) Append(ctx context.Context, record *models.AuditRecord) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Append(ctx, record)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("audit sink %q circuit open: %w", b.name, err)
	}
	return err
}

// State reports the breaker state.
func (b *BreakerSink) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerSink) Close() error {
	return closeSink(b.inner)
}
