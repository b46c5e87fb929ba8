package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/audit"
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/logging"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
	"github.com/ekaya-inc/ekaya-audit/pkg/reconcile"
)

const tracerName = "github.com/ekaya-inc/ekaya-audit/pkg/services"

// AuditService builds audit records for business operations and hands them
// to a sink. Snapshots are encoded, diffed and redacted per entity type
// before they leave the service. Sink failures never reach the caller.
type AuditService interface {
	// Record builds a CREATE, UPDATE or DELETE record. before is required for
	// UPDATE and DELETE, after for CREATE and UPDATE; nil, or a value that
	// encodes to null, counts as absent. An empty performedBy falls back to
	// the actor in ctx. VIEW is delegated to RecordView.
	Record(ctx context.Context, action models.AuditAction, entityID string, before, after any, entityType, performedBy string) (*models.AuditRecord, error)

	// RecordView builds a VIEW record for a single read, without encoding.
	RecordView(ctx context.Context, entityID, entityType string) *models.AuditRecord

	// RecordList builds a VIEW record for a list read of count rows.
	RecordList(ctx context.Context, entityType string, count int) *models.AuditRecord
}

// Option configures an AuditService.
type Option func(*auditService)

// WithPolicies sets the per-entity-type redact and skip names.
func WithPolicies(p *audit.PolicySet) Option {
	return func(s *auditService) { s.policies = p }
}

// WithMetrics records counters and encode timings to m.
func WithMetrics(m *audit.Metrics) Option {
	return func(s *auditService) { s.metrics = m }
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *auditService) { s.now = now }
}

// WithIDGenerator overrides the record ID source.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *auditService) { s.newID = newID }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *auditService) { s.tracer = t }
}

type auditService struct {
	sink     audit.Sink
	logger   *zap.Logger
	policies *audit.PolicySet
	metrics  *audit.Metrics
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() uuid.UUID
}

// NewAuditService creates a new AuditService writing to sink.
func NewAuditService(sink audit.Sink, logger *zap.Logger, opts ...Option) AuditService {
	s := &auditService{
		sink:     sink,
		logger:   logger.Named("audit-service"),
		policies: audit.NewPolicySet(nil, nil),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = audit.Discard
	}
	return s
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, action models.AuditAction, entityID string, before, after any, entityType, performedBy string) (*models.AuditRecord, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidAction, action)
	}
	if action == models.AuditActionView {
		return s.RecordView(ctx, entityID, entityType), nil
	}

	ctx, span := s.tracer.Start(ctx, "audit.Record", trace.WithAttributes(
		attribute.String("audit.action", string(action)),
		attribute.String("audit.entity_type", entityType),
		attribute.String("audit.entity_id", entityID),
	))
	defer span.End()

	start := time.Now()
	policy := s.policies.For(entityType)

	var oldData, newData canonical.Node
	var changes []models.FieldChange

	switch action {
	case models.AuditActionCreate:
		newData = s.encodeSnapshot(after, entityType, "after")
		if newData == nil {
			return nil, s.missing(span, action, "after")
		}
	case models.AuditActionDelete:
		oldData = s.encodeSnapshot(before, entityType, "before")
		if oldData == nil {
			return nil, s.missing(span, action, "before")
		}
	case models.AuditActionUpdate:
		oldData = s.encodeSnapshot(before, entityType, "before")
		newData = s.encodeSnapshot(after, entityType, "after")
		if oldData == nil || newData == nil {
			return nil, s.missing(span, action, "before and after")
		}
		changes = reconcile.DiffSet(oldData, newData, policy.Skip)
		if changes == nil {
			changes = []models.FieldChange{}
		}
	}

	record := s.newRecord(ctx, action, entityType, entityID, performedBy)
	if oldData != nil {
		record.OldData = reconcile.Redact(oldData, policy.Redact)
	}
	if newData != nil {
		record.NewData = reconcile.Redact(newData, policy.Redact)
	}
	record.Changes = reconcile.RedactChanges(changes, policy.Redact)
	s.metrics.ObserveEncode(time.Since(start))

	span.SetAttributes(
		attribute.String("audit.record_id", record.ID.String()),
		attribute.Int("audit.change_count", len(record.Changes)),
	)
	if err := s.append(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sink append failed")
	}
	return record, nil
}

func (s *auditService) RecordView(ctx context.Context, entityID, entityType string) *models.AuditRecord {
	record := s.newRecord(ctx, models.AuditActionView, entityType, entityID, "")
	record.Count = 1
	_ = s.append(ctx, record)
	return record
}

func (s *auditService) RecordList(ctx context.Context, entityType string, count int) *models.AuditRecord {
	if count < 0 {
		count = 0
	}
	record := s.newRecord(ctx, models.AuditActionView, entityType, "", "")
	record.Count = count
	_ = s.append(ctx, record)
	return record
}

func (s *auditService) newRecord(ctx context.Context, action models.AuditAction, entityType, entityID, performedBy string) *models.AuditRecord {
	if performedBy == "" {
		performedBy = models.ActorFromContext(ctx)
	}
	record := &models.AuditRecord{
		ID:          s.newID(),
		EntityType:  entityType,
		Action:      action,
		EntityID:    entityID,
		PerformedBy: performedBy,
		CreatedAt:   s.now().UTC(),
	}
	if prov, ok := models.GetProvenance(ctx); ok {
		record.Source = prov.Source.String()
	}
	return record
}

// append hands record to the sink. Failures, including panics, are logged
// and counted, then returned only for span reporting.
func (s *auditService) append(ctx context.Context, record *models.AuditRecord) (err error) {
	s.metrics.IncRecords(string(record.Action), record.EntityType)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit sink panicked: %v", r)
			s.logger.Error("Audit sink panicked",
				zap.String("record_id", record.ID.String()),
				zap.String("entity_type", record.EntityType),
				zap.String("action", string(record.Action)),
				zap.Any("panic", r))
			s.metrics.IncSinkFailures(record.EntityType)
		}
	}()

	if err = s.sink.Append(ctx, record); err != nil {
		s.logger.Error("Failed to append audit record",
			zap.String("record_id", record.ID.String()),
			zap.String("entity_type", record.EntityType),
			zap.String("entity_id", record.EntityID),
			zap.String("action", string(record.Action)),
			zap.String("error", logging.SanitizeError(err)))
		s.metrics.IncSinkFailures(record.EntityType)
	}
	return err
}

func (s *auditService) missing(span trace.Span, action models.AuditAction, which string) error {
	err := fmt.Errorf("%w: %s requires %s", apperrors.ErrMissingSnapshot, action, which)
	span.RecordError(err)
	span.SetStatus(codes.Error, "missing snapshot")
	return err
}

// encodeSnapshot encodes v, treating nil and values that encode to null as
// absent. A snapshot that is nothing but an encoder sentinel is kept and
// logged at debug level.
func (s *auditService) encodeSnapshot(v any, entityType, which string) canonical.Node {
	n := canonical.Encode(v)
	sc, ok := n.(canonical.Scalar)
	if !ok {
		return n
	}
	if sc.IsNull() {
		return nil
	}
	if sc.IsSentinel() {
		s.logger.Debug("Snapshot encoded to a placeholder",
			zap.String("entity_type", entityType),
			zap.String("snapshot", which),
			zap.String("value_type", fmt.Sprintf("%T", v)))
	}
	return n
}
