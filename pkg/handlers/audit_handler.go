package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
	"github.com/ekaya-inc/ekaya-audit/pkg/reconcile"
	"github.com/ekaya-inc/ekaya-audit/pkg/services"
)

// AuditReader is the read side of an audit store.
type AuditReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error)
	GetByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditRecord, error)
	GetRecent(ctx context.Context, limit int) ([]*models.AuditRecord, error)
}

// AuditHandler serves record, merge, diff and history endpoints.
type AuditHandler struct {
	auditService services.AuditService
	reader       AuditReader
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler. reader may be nil, in which
// case the history endpoints are not registered.
func NewAuditHandler(auditService services.AuditService, reader AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		reader:       reader,
		logger:       logger,
	}
}

// RegisterRoutes registers the audit handler's routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/audit"

	mux.HandleFunc("POST "+base+"/records", h.CreateRecord)
	mux.HandleFunc("POST "+base+"/diff", h.Diff)
	mux.HandleFunc("POST "+base+"/merge", h.Merge)

	if h.reader != nil {
		mux.HandleFunc("GET "+base+"/records", h.ListRecent)
		mux.HandleFunc("GET "+base+"/records/{id}", h.GetRecord)
		mux.HandleFunc("GET "+base+"/entities/{type}/{id}/records", h.ListEntityRecords)
	}
}

type recordRequest struct {
	Action      string          `json:"action"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	PerformedBy string          `json:"performed_by,omitempty"`
	Count       int             `json:"count,omitempty"`
}

type diffRequest struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
	Skip   []string        `json:"skip,omitempty"`
	Redact []string        `json:"redact,omitempty"`
}

type mergeRequest struct {
	Original json.RawMessage `json:"original"`
	Update   json.RawMessage `json:"update"`
}

// CreateRecord handles POST /api/audit/records
func (h *AuditHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.EntityType == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "entity_type is required")
		return
	}

	action := models.AuditAction(strings.ToUpper(req.Action))
	if !action.IsValid() {
		ErrorResponse(w, http.StatusBadRequest, "invalid_action", "action must be CREATE, UPDATE, DELETE or VIEW")
		return
	}

	if action == models.AuditActionView && req.EntityID == "" && req.Count > 0 {
		record := h.auditService.RecordList(r.Context(), req.EntityType, req.Count)
		h.writeRecord(w, record)
		return
	}

	before, ok := h.parseSnapshot(w, "before", req.Before)
	if !ok {
		return
	}
	after, ok := h.parseSnapshot(w, "after", req.After)
	if !ok {
		return
	}

	record, err := h.auditService.Record(r.Context(), action, req.EntityID, before, after, req.EntityType, req.PerformedBy)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMissingSnapshot):
			ErrorResponse(w, http.StatusUnprocessableEntity, "missing_snapshot", err.Error())
		case errors.Is(err, apperrors.ErrInvalidAction):
			ErrorResponse(w, http.StatusBadRequest, "invalid_action", err.Error())
		default:
			h.logger.Error("Failed to build audit record",
				zap.String("entity_type", req.EntityType),
				zap.String("action", string(action)),
				zap.Error(err))
			ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to build audit record")
		}
		return
	}
	h.writeRecord(w, record)
}

func (h *AuditHandler) writeRecord(w http.ResponseWriter, record *models.AuditRecord) {
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: record}); err != nil {
		h.logger.Error("Failed to write audit record response", zap.Error(err))
	}
}

// Diff handles POST /api/audit/diff
func (h *AuditHandler) Diff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	before, ok := h.parseSnapshot(w, "before", req.Before)
	if !ok {
		return
	}
	after, ok := h.parseSnapshot(w, "after", req.After)
	if !ok {
		return
	}

	changes := reconcile.RedactChanges(reconcile.Diff(before, after, req.Skip...), reconcile.NewFieldSet(req.Redact...))
	if changes == nil {
		changes = []models.FieldChange{}
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: changes}); err != nil {
		h.logger.Error("Failed to write diff response", zap.Error(err))
	}
}

// Merge handles POST /api/audit/merge
func (h *AuditHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	original, ok := h.parseSnapshot(w, "original", req.Original)
	if !ok {
		return
	}
	update, ok := h.parseSnapshot(w, "update", req.Update)
	if !ok {
		return
	}

	merged, err := reconcile.Merge(original, update)
	if err != nil {
		if errors.Is(err, apperrors.ErrShapeMismatch) {
			ErrorResponse(w, http.StatusUnprocessableEntity, "shape_mismatch", err.Error())
			return
		}
		h.logger.Error("Failed to merge documents", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to merge documents")
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: merged}); err != nil {
		h.logger.Error("Failed to write merge response", zap.Error(err))
	}
}

// GetRecord handles GET /api/audit/records/{id}
func (h *AuditHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_record_id", "Invalid record ID format")
		return
	}

	record, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			ErrorResponse(w, http.StatusNotFound, "not_found", "Audit record not found")
			return
		}
		h.logger.Error("Failed to get audit record",
			zap.String("record_id", id.String()),
			zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get audit record")
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: record}); err != nil {
		h.logger.Error("Failed to write audit record response", zap.Error(err))
	}
}

// ListEntityRecords handles GET /api/audit/entities/{type}/{id}/records
func (h *AuditHandler) ListEntityRecords(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entityType, entityID := r.PathValue("type"), r.PathValue("id")

	records, err := h.reader.GetByEntity(r.Context(), entityType, entityID, limit)
	if err != nil {
		h.logger.Error("Failed to list audit records",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list audit records")
		return
	}
	h.writeRecords(w, records)
}

// ListRecent handles GET /api/audit/records
func (h *AuditHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	records, err := h.reader.GetRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list recent audit records", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list audit records")
		return
	}
	h.writeRecords(w, records)
}

func (h *AuditHandler) writeRecords(w http.ResponseWriter, records []*models.AuditRecord) {
	if records == nil {
		records = []*models.AuditRecord{}
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: records}); err != nil {
		h.logger.Error("Failed to write audit records response", zap.Error(err))
	}
}

// parseSnapshot decodes an optional JSON document. Absent input yields nil.
// On error it writes a 400 response and returns false.
func (h *AuditHandler) parseSnapshot(w http.ResponseWriter, name string, raw json.RawMessage) (canonical.Node, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	n, err := canonical.FromJSON(raw)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_document", "Invalid JSON in "+name)
		return nil, false
	}
	return n, true
}

// parseLimit reads the optional ?limit= query parameter. Zero means the
// store's default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
