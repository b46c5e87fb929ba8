package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
)

func TestAuditRecord_Validate(t *testing.T) {
	snapshot := canonical.NewMapBuilder(1).Set("name", canonical.String("Ann")).Build()

	tests := []struct {
		name    string
		record  AuditRecord
		wantErr error
	}{
		{name: "create", record: AuditRecord{Action: AuditActionCreate, NewData: snapshot}},
		{name: "create with old data", record: AuditRecord{Action: AuditActionCreate, OldData: snapshot, NewData: snapshot}, wantErr: apperrors.ErrMissingSnapshot},
		{name: "delete", record: AuditRecord{Action: AuditActionDelete, OldData: snapshot}},
		{name: "delete without old data", record: AuditRecord{Action: AuditActionDelete}, wantErr: apperrors.ErrMissingSnapshot},
		{name: "update", record: AuditRecord{Action: AuditActionUpdate, OldData: snapshot, NewData: snapshot, Changes: []FieldChange{}}},
		{name: "update without changes", record: AuditRecord{Action: AuditActionUpdate, OldData: snapshot, NewData: snapshot}, wantErr: apperrors.ErrMissingSnapshot},
		{name: "view", record: AuditRecord{Action: AuditActionView, Count: 1}},
		{name: "view with snapshot", record: AuditRecord{Action: AuditActionView, NewData: snapshot}, wantErr: apperrors.ErrInvalidValue},
		{name: "unknown action", record: AuditRecord{Action: "PATCH"}, wantErr: apperrors.ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFieldChange_JSON(t *testing.T) {
	changes := []FieldChange{
		{Path: "amount", Old: canonical.Int(100), New: canonical.Int(150)},
		{Path: "nickname", Old: canonical.Null()},
		{Path: "tags", New: canonical.NewList(canonical.String("x"))},
	}

	data, err := json.Marshal(changes)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"path":"amount","old":100,"new":150},
		{"path":"nickname","old":null},
		{"path":"tags","new":["x"]}
	]`, string(data))

	var decoded []FieldChange
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)

	assert.True(t, canonical.Equal(canonical.Int(150), decoded[0].New))
	assert.True(t, canonical.Equal(canonical.Null(), decoded[1].Old), "explicit null survives")
	assert.Nil(t, decoded[1].New, "absent stays absent")
	assert.Nil(t, decoded[2].Old)
}

func TestAuditRecord_JSON(t *testing.T) {
	record := AuditRecord{
		EntityType:  EntityTypeEmployee,
		Action:      AuditActionUpdate,
		EntityID:    "e1",
		OldData:     canonical.NewMapBuilder(1).Set("name", canonical.String("Ann")).Build(),
		NewData:     canonical.NewMapBuilder(1).Set("name", canonical.String("Anna")).Build(),
		Changes:     []FieldChange{{Path: "name", Old: canonical.String("Ann"), New: canonical.String("Anna")}},
		PerformedBy: "hr-admin",
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded AuditRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, record.Action, decoded.Action)
	assert.Equal(t, "hr-admin", decoded.PerformedBy)
	assert.True(t, canonical.Equal(record.OldData, decoded.OldData))
	assert.True(t, canonical.Equal(record.NewData, decoded.NewData))
	require.Len(t, decoded.Changes, 1)
	assert.Equal(t, "name", decoded.Changes[0].Path)

	var create AuditRecord
	require.NoError(t, json.Unmarshal([]byte(`{"action":"CREATE","old_data":null,"new_data":{"a":1},"changes":null}`), &create))
	assert.Nil(t, create.OldData)
	assert.Nil(t, create.Changes)
	assert.NoError(t, create.Validate())
}
