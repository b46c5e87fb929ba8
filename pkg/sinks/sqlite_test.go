package sinks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

func TestSQLiteSink_RoundTrip(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, ":memory:")
	require.NoError(t, err)
	defer sink.Close()

	update := updateRecord()
	view := &models.AuditRecord{
		ID:          update.ID,
		EntityType:  update.EntityType,
		EntityID:    update.EntityID,
		Action:      models.AuditActionView,
		Count:       1,
		PerformedBy: models.SystemActor,
		CreatedAt:   update.CreatedAt,
	}
	view.ID[15] ^= 0xff

	require.NoError(t, sink.Append(ctx, update))
	require.NoError(t, sink.Append(ctx, view))

	records, err := sink.ByEntity(ctx, models.EntityTypeEmployee, "e1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	got := records[0]
	assert.Equal(t, update.ID, got.ID)
	assert.Equal(t, models.AuditActionUpdate, got.Action)
	assert.True(t, update.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, canonical.Equal(update.OldData, got.OldData))
	assert.True(t, canonical.Equal(update.NewData, got.NewData))
	require.Len(t, got.Changes, 1)
	assert.True(t, canonical.Equal(canonical.String("Anna"), got.Changes[0].New))
	require.NoError(t, got.Validate())

	assert.Nil(t, records[1].OldData)
	assert.Nil(t, records[1].Changes)
	assert.Equal(t, 1, records[1].Count)
}

func TestSQLiteSink_DuplicateID(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, ":memory:")
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Append(ctx, updateRecord()))
	assert.Error(t, sink.Append(ctx, updateRecord()))
}
