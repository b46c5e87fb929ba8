package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
)

// AuditAction is the kind of business operation an audit record describes.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionView   AuditAction = "VIEW"
)

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete, AuditActionView:
		return true
	default:
		return false
	}
}

// AuditRecord is a single immutable entry in the audit trail. Snapshots are
// redacted canonical trees; they hold no reference to the entity they came
// from.
type AuditRecord struct {
	ID         uuid.UUID   `json:"id" yaml:"id"`
	EntityType string      `json:"entity_type" yaml:"entity_type"`
	Action     AuditAction `json:"action" yaml:"action"`
	EntityID   string      `json:"entity_id" yaml:"entity_id"`

	OldData canonical.Node `json:"old_data,omitempty" yaml:"old_data,omitempty"`
	NewData canonical.Node `json:"new_data,omitempty" yaml:"new_data,omitempty"`

	// Changes is nil for every action but UPDATE. An UPDATE that changed
	// nothing carries an empty, non-nil slice.
	Changes []FieldChange `json:"changes" yaml:"changes"`

	// Count is the number of entities read, set on VIEW records only.
	Count int `json:"count,omitempty" yaml:"count,omitempty"`

	PerformedBy string    `json:"performed_by" yaml:"performed_by"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks the snapshot invariants for the record's action.
func (r *AuditRecord) Validate() error {
	if !r.Action.IsValid() {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidAction, r.Action)
	}
	hasOld, hasNew := r.OldData != nil, r.NewData != nil

	switch r.Action {
	case AuditActionCreate:
		if hasOld || !hasNew || r.Changes != nil {
			return fmt.Errorf("%w: CREATE requires new data only", apperrors.ErrMissingSnapshot)
		}
	case AuditActionDelete:
		if !hasOld || hasNew || r.Changes != nil {
			return fmt.Errorf("%w: DELETE requires old data only", apperrors.ErrMissingSnapshot)
		}
	case AuditActionUpdate:
		if !hasOld || !hasNew || r.Changes == nil {
			return fmt.Errorf("%w: UPDATE requires old data, new data and changes", apperrors.ErrMissingSnapshot)
		}
	case AuditActionView:
		if hasOld || hasNew || r.Changes != nil {
			return fmt.Errorf("%w: VIEW carries no snapshots", apperrors.ErrInvalidValue)
		}
	}
	return nil
}

// UnmarshalJSON decodes a record written by MarshalJSON, rebuilding the
// snapshots as canonical trees. A null snapshot decodes as absent.
func (r *AuditRecord) UnmarshalJSON(data []byte) error {
	type plain AuditRecord
	var raw struct {
		plain
		OldData json.RawMessage `json:"old_data"`
		NewData json.RawMessage `json:"new_data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = AuditRecord(raw.plain)
	var err error
	if r.OldData, err = snapshotFromJSON(raw.OldData); err != nil {
		return fmt.Errorf("failed to decode old_data: %w", err)
	}
	if r.NewData, err = snapshotFromJSON(raw.NewData); err != nil {
		return fmt.Errorf("failed to decode new_data: %w", err)
	}
	return nil
}

func snapshotFromJSON(raw json.RawMessage) (canonical.Node, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return canonical.FromJSON(raw)
}

// FieldChange is one differing path between two snapshots. A nil Old or New
// means the path did not exist on that side.
type FieldChange struct {
	Path string         `json:"path" yaml:"path"`
	Old  canonical.Node `json:"old,omitempty" yaml:"old,omitempty"`
	New  canonical.Node `json:"new,omitempty" yaml:"new,omitempty"`
}

func (c *FieldChange) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path string          `json:"path"`
		Old  json.RawMessage `json:"old"`
		New  json.RawMessage `json:"new"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Path = raw.Path
	c.Old, c.New = nil, nil
	if len(raw.Old) > 0 {
		n, err := canonical.FromJSON(raw.Old)
		if err != nil {
			return fmt.Errorf("failed to decode old value of %q: %w", raw.Path, err)
		}
		c.Old = n
	}
	if len(raw.New) > 0 {
		n, err := canonical.FromJSON(raw.New)
		if err != nil {
			return fmt.Errorf("failed to decode new value of %q: %w", raw.Path, err)
		}
		c.New = n
	}
	return nil
}
