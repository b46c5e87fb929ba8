package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS audit_records (
		id           TEXT PRIMARY KEY,
		entity_type  TEXT NOT NULL,
		entity_id    TEXT NOT NULL DEFAULT '',
		action       TEXT NOT NULL,
		old_data     TEXT,
		new_data     TEXT,
		changes      TEXT,
		count        INTEGER NOT NULL DEFAULT 0,
		performed_by TEXT NOT NULL DEFAULT '',
		source       TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_records_entity
		ON audit_records (entity_type, entity_id, created_at);
`

// SQLiteSink stores records in a local SQLite database, for single-node
// deployments and the CLI.
type SQLiteSink struct {
	conn *sql.DB
}

// NewSQLiteSink opens or creates the database at path. ":memory:" is
// accepted.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return &SQLiteSink{conn: conn}, nil
}

func (s *SQLiteSink) Append(ctx context.Context, record *models.AuditRecord) error {
	oldData, err := nullableJSON(record.OldData)
	if err != nil {
		return fmt.Errorf("failed to marshal old_data: %w", err)
	}
	newData, err := nullableJSON(record.NewData)
	if err != nil {
		return fmt.Errorf("failed to marshal new_data: %w", err)
	}
	var changes sql.NullString
	if record.Changes != nil {
		b, err := json.Marshal(record.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
		changes = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, entity_type, entity_id, action, old_data, new_data, changes,
			count, performed_by, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(),
		record.EntityType,
		record.EntityID,
		string(record.Action),
		oldData,
		newData,
		changes,
		record.Count,
		record.PerformedBy,
		record.Source,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// ByEntity returns the stored records of one entity in insertion order.
func (s *SQLiteSink) ByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, old_data, new_data, changes,
		       count, performed_by, source, created_at
		FROM audit_records
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY rowid`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		var (
			r                         models.AuditRecord
			id, action, createdAt     string
			oldData, newData, changes sql.NullString
		)
		if err := rows.Scan(&id, &r.EntityType, &r.EntityID, &action, &oldData, &newData, &changes,
			&r.Count, &r.PerformedBy, &r.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid record id %q: %w", id, err)
		}
		r.Action = models.AuditAction(action)
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
		}
		if r.OldData, err = nodeFromNullString(oldData); err != nil {
			return nil, fmt.Errorf("failed to decode old_data: %w", err)
		}
		if r.NewData, err = nodeFromNullString(newData); err != nil {
			return nil, fmt.Errorf("failed to decode new_data: %w", err)
		}
		if changes.Valid {
			r.Changes = []models.FieldChange{}
			if err := json.Unmarshal([]byte(changes.String), &r.Changes); err != nil {
				return nil, fmt.Errorf("failed to decode changes: %w", err)
			}
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.conn.Close()
}

func nullableJSON(n canonical.Node) (sql.NullString, error) {
	if n == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nodeFromNullString(s sql.NullString) (canonical.Node, error) {
	if !s.Valid {
		return nil, nil
	}
	return canonical.FromJSON([]byte(s.String))
}
