//go:build integration

package sinks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-audit/pkg/testhelpers"
)

func TestRedisStreamSink_Integration(t *testing.T) {
	r := testhelpers.GetTestRedis(t)
	ctx := context.Background()

	sink := newRedisStreamSink(r.Client, "audit-it", 100)
	record := updateRecord()
	require.NoError(t, sink.Append(ctx, record))

	entries, err := r.Client.XRange(ctx, "audit-it:employees", "-", "+").Result()
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	last := entries[len(entries)-1]
	assert.Equal(t, record.ID.String(), last.Values["record_id"])
	assert.Equal(t, "UPDATE", last.Values["action"])
}
