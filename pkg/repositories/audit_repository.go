package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/database"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// DefaultLimit bounds queries called with a non-positive limit.
const DefaultLimit = 100

// AuditRepository provides data access for the audit trail. Records are
// append-only; there is no update or delete.
type AuditRepository interface {
	// Append inserts a record. It satisfies audit.Sink.
	Append(ctx context.Context, record *models.AuditRecord) error

	// GetByID returns one record or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error)

	// GetByEntity returns the records of one entity, newest first.
	GetByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditRecord, error)

	// GetRecent returns the newest records across all entities.
	GetRecent(ctx context.Context, limit int) ([]*models.AuditRecord, error)
}

type auditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(db *database.DB) AuditRepository {
	return &auditRepository{db: db}
}

var _ AuditRepository = (*auditRepository)(nil)

const auditColumns = `id, entity_type, entity_id, action, old_data, new_data, changes, count, performed_by, source, created_at`

func (r *auditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	oldJSON, err := nodeJSON(record.OldData)
	if err != nil {
		return fmt.Errorf("failed to marshal old_data: %w", err)
	}
	newJSON, err := nodeJSON(record.NewData)
	if err != nil {
		return fmt.Errorf("failed to marshal new_data: %w", err)
	}

	var changesJSON []byte
	if record.Changes != nil {
		changesJSON, err = json.Marshal(record.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO audit_records (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		record.EntityType,
		record.EntityID,
		string(record.Action),
		oldJSON,
		newJSON,
		changesJSON,
		record.Count,
		record.PerformedBy,
		record.Source,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

func (r *auditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE id = $1`

	record, err := scanAuditRecord(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("audit record %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *auditRepository) GetByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, entityType, entityID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records by entity: %w", err)
	}
	return collectAuditRecords(rows)
}

func (r *auditRepository) GetRecent(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_records
		ORDER BY created_at DESC, id
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent audit records: %w", err)
	}
	return collectAuditRecords(rows)
}

func collectAuditRecords(rows pgx.Rows) ([]*models.AuditRecord, error) {
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

func scanAuditRecord(row pgx.Row) (*models.AuditRecord, error) {
	var record models.AuditRecord
	var action string
	var oldJSON, newJSON, changesJSON []byte

	err := row.Scan(
		&record.ID,
		&record.EntityType,
		&record.EntityID,
		&action,
		&oldJSON,
		&newJSON,
		&changesJSON,
		&record.Count,
		&record.PerformedBy,
		&record.Source,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}
	record.Action = models.AuditAction(action)
	record.CreatedAt = record.CreatedAt.UTC()

	if record.OldData, err = jsonNode(oldJSON); err != nil {
		return nil, fmt.Errorf("failed to decode old_data: %w", err)
	}
	if record.NewData, err = jsonNode(newJSON); err != nil {
		return nil, fmt.Errorf("failed to decode new_data: %w", err)
	}
	if changesJSON != nil {
		record.Changes = []models.FieldChange{}
		if err := json.Unmarshal(changesJSON, &record.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
	}

	return &record, nil
}

// nodeJSON returns nil for an absent node so the column is stored as NULL.
func nodeJSON(n canonical.Node) ([]byte, error) {
	if n == nil {
		return nil, nil
	}
	return json.Marshal(n)
}

func jsonNode(data []byte) (canonical.Node, error) {
	if data == nil {
		return nil, nil
	}
	return canonical.FromJSON(data)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
