package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// LogSink writes audit records to a zap logger in the "audit_trail"
// namespace, one entry per record, for SIEM pipelines that ingest
// application logs.
//
// The full record is serialized into the event_json field; the identifying
// columns are repeated as separate fields for filtering.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit_trail")}
}

func (s *LogSink) Append(_ context.Context, record *models.AuditRecord) error {
	eventJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	s.logger.Info("Audit record",
		zap.String("event_json", string(eventJSON)),
		zap.String("record_id", record.ID.String()),
		zap.String("entity_type", record.EntityType),
		zap.String("entity_id", record.EntityID),
		zap.String("action", string(record.Action)),
		zap.String("performed_by", record.PerformedBy),
		zap.Int("change_count", len(record.Changes)))
	return nil
}
