// Package retry runs operations against audit sinks and databases with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0
	MaxSameErrorType int     // consecutive failures of one kind before giving up early; 0 disables
}

// DefaultConfig returns the defaults used for sink writes: 3 retries starting
// at 100ms, doubling up to 2s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}

type backoff struct {
	cfg   *Config
	delay time.Duration
}

func newBackoff(cfg *Config) *backoff {
	return &backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// wait sleeps for the current delay and grows it. It returns the context
// error if ctx ends first.
func (b *backoff) wait(ctx context.Context) error {
	d := b.delay
	if b.cfg.JitterFactor > 0 {
		d = time.Duration(float64(d) + float64(d)*b.cfg.JitterFactor*(rand.Float64()*2-1))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.delay = time.Duration(float64(b.delay) * b.cfg.Multiplier)
	if b.delay > b.cfg.MaxDelay {
		b.delay = b.cfg.MaxDelay
	}
	return nil
}

// Do executes fn until it succeeds or MaxRetries retries have failed, and
// returns the last error.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value, such as opening a
// connection pool.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := newBackoff(cfg)

	var result T
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if attempt < cfg.MaxRetries {
			if err := b.wait(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, lastErr
}

// DoIfRetryable retries only transient errors. A permanent error is
// returned at once, and so is a transient one that keeps recurring with the
// same classification MaxSameErrorType times.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := newBackoff(cfg)

	var lastErr error
	var lastKind string
	sameKind := 0

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		kind := classify(err)
		if kind == lastKind {
			sameKind++
			if cfg.MaxSameErrorType > 0 && sameKind >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", sameKind, kind, err)
			}
		} else {
			sameKind, lastKind = 1, kind
		}

		if attempt < cfg.MaxRetries {
			if err := b.wait(ctx); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// RetryableError lets an error declare whether it is transient.
type RetryableError interface {
	error
	IsRetryable() bool
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"network is unreachable",
	// kafka
	"not leader",
	"leader not available",
	"not enough replicas",
	"request timed out",
	// redis
	"loading",
	"tryagain",
	"clusterdown",
	// sqlite
	"database is locked",
	"sqlite_busy",
}

// IsRetryable reports whether err looks transient. Context cancellation is
// never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func classify(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"), strings.Contains(msg, "no such host"):
		return "connection"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "leader"), strings.Contains(msg, "replicas"):
		return "broker"
	case strings.Contains(msg, "locked"), strings.Contains(msg, "busy"), strings.Contains(msg, "deadlock"):
		return "contention"
	default:
		return "unknown"
	}
}
