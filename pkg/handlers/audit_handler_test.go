package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/audit"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
	"github.com/ekaya-inc/ekaya-audit/pkg/repositories"
	"github.com/ekaya-inc/ekaya-audit/pkg/services"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestMux(t *testing.T, withReader bool) (*http.ServeMux, *repositories.MemoryAuditRepository) {
	t.Helper()
	repo := repositories.NewMemoryAuditRepository()
	svc := services.NewAuditService(repo, zap.NewNop(),
		services.WithPolicies(audit.NewPolicySet([]string{"ssn"}, []string{"updatedAt"})))

	var reader AuditReader
	if withReader {
		reader = repo
	}
	mux := http.NewServeMux()
	NewAuditHandler(svc, reader, zap.NewNop()).RegisterRoutes(mux)
	return mux, repo
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestAuditHandler_CreateRecord_Update(t *testing.T) {
	mux, repo := newTestMux(t, true)

	rec, env := do(t, mux, http.MethodPost, "/api/audit/records", `{
		"action": "update",
		"entity_type": "Employee",
		"entity_id": "e1",
		"before": {"name": "Ann", "ssn": "111", "updatedAt": "a"},
		"after": {"name": "Anna", "ssn": "222", "updatedAt": "b"},
		"performed_by": "hr-admin"
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var record models.AuditRecord
	require.NoError(t, json.Unmarshal(env.Data, &record))
	assert.Equal(t, models.AuditActionUpdate, record.Action)
	assert.Equal(t, "hr-admin", record.PerformedBy)
	require.Len(t, record.Changes, 1)
	assert.Equal(t, "name", record.Changes[0].Path)
	assert.NotContains(t, string(env.Data), "ssn")
	assert.Equal(t, 1, repo.Len())
}

func TestAuditHandler_CreateRecord_Errors(t *testing.T) {
	mux, repo := newTestMux(t, false)

	tests := []struct {
		name      string
		body      string
		status    int
		errorCode string
	}{
		{"invalid action", `{"action":"PURGE","entity_type":"Employee"}`, http.StatusBadRequest, "invalid_action"},
		{"missing entity type", `{"action":"CREATE"}`, http.StatusBadRequest, "invalid_request"},
		{"missing snapshot", `{"action":"DELETE","entity_type":"Employee","entity_id":"e1"}`, http.StatusUnprocessableEntity, "missing_snapshot"},
		{"null after", `{"action":"CREATE","entity_type":"Employee","entity_id":"e1","after":null}`, http.StatusUnprocessableEntity, "missing_snapshot"},
		{"malformed body", `{"action":`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, mux, http.MethodPost, "/api/audit/records", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.errorCode, env.Error)
		})
	}
	assert.Equal(t, 0, repo.Len())
}

func TestAuditHandler_CreateRecord_ListView(t *testing.T) {
	mux, _ := newTestMux(t, false)

	rec, env := do(t, mux, http.MethodPost, "/api/audit/records", `{"action":"VIEW","entity_type":"Employee","count":25}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var record models.AuditRecord
	require.NoError(t, json.Unmarshal(env.Data, &record))
	assert.Equal(t, models.AuditActionView, record.Action)
	assert.Equal(t, 25, record.Count)
	assert.Empty(t, record.EntityID)
}

func TestAuditHandler_Diff(t *testing.T) {
	mux, _ := newTestMux(t, false)

	rec, env := do(t, mux, http.MethodPost, "/api/audit/diff", `{
		"before": {"name": "Ann", "password": "a", "tags": ["x"]},
		"after": {"name": "Ann", "password": "b", "tags": ["x", "y"]},
		"redact": ["password"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"path":"tags.1","new":"y"}]`, string(env.Data))

	rec, env = do(t, mux, http.MethodPost, "/api/audit/diff", `{"before":{"a":1},"after":{"a":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestAuditHandler_Merge(t *testing.T) {
	mux, _ := newTestMux(t, false)

	rec, env := do(t, mux, http.MethodPost, "/api/audit/merge", `{
		"original": {"name": "Ann", "address": {"city": "Oslo", "zip": "0150"}},
		"update": {"name": "", "address": {"city": "Bergen"}}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"","address":{"city":"Bergen","zip":"0150"}}`, string(env.Data))

	rec, env = do(t, mux, http.MethodPost, "/api/audit/merge", `{"original":{"address":{"city":"Oslo"}},"update":{"address":["Oslo"]}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "shape_mismatch", env.Error)
}

func TestAuditHandler_History(t *testing.T) {
	mux, _ := newTestMux(t, true)

	for _, body := range []string{
		`{"action":"CREATE","entity_type":"Employee","entity_id":"e1","after":{"name":"Ann"}}`,
		`{"action":"CREATE","entity_type":"Employee","entity_id":"e2","after":{"name":"Bob"}}`,
		`{"action":"DELETE","entity_type":"Employee","entity_id":"e1","before":{"name":"Ann"}}`,
	} {
		rec, _ := do(t, mux, http.MethodPost, "/api/audit/records", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := do(t, mux, http.MethodGet, "/api/audit/entities/Employee/e1/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []models.AuditRecord
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "e1", r.EntityID)
	}

	rec, env = do(t, mux, http.MethodGet, "/api/audit/records?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records = nil
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Len(t, records, 2)

	rec, env = do(t, mux, http.MethodGet, "/api/audit/records/"+records[0].ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one models.AuditRecord
	require.NoError(t, json.Unmarshal(env.Data, &one))
	assert.Equal(t, records[0].ID, one.ID)
}

func TestAuditHandler_History_Errors(t *testing.T) {
	mux, _ := newTestMux(t, true)

	rec, env := do(t, mux, http.MethodGet, "/api/audit/records/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error)

	rec, env = do(t, mux, http.MethodGet, "/api/audit/records/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_record_id", env.Error)

	rec, env = do(t, mux, http.MethodGet, "/api/audit/records?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_limit", env.Error)
}

func TestAuditHandler_NoReader(t *testing.T) {
	mux, _ := newTestMux(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/records", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
