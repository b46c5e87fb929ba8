package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-audit/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
}

func TestRetrySink_RetriesTransientErrors(t *testing.T) {
	inner := &recordingSink{errs: []error{
		errors.New("connection refused"),
		errors.New("i/o timeout"),
	}}
	sink := NewRetrySink(inner, fastRetry())

	require.NoError(t, sink.Append(context.Background(), testRecord()))
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 1, inner.count())
}

func TestRetrySink_PermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("duplicate key value violates unique constraint")
	inner := &recordingSink{errs: []error{permanent}}
	sink := NewRetrySink(inner, fastRetry())

	err := sink.Append(context.Background(), testRecord())
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, inner.calls)
}

func TestRetrySink_Close(t *testing.T) {
	inner := &recordingSink{}
	require.NoError(t, NewRetrySink(inner, nil).Close())
	assert.True(t, inner.closed)
}
