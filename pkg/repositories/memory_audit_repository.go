package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// MemoryAuditRepository keeps records in process memory. It backs the
// "memory" sink and tests.
type MemoryAuditRepository struct {
	mu      sync.RWMutex
	records []*models.AuditRecord
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

var _ AuditRepository = (*MemoryAuditRepository)(nil)

func (r *MemoryAuditRepository) Append(_ context.Context, record *models.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.ID == record.ID {
			return fmt.Errorf("audit record %s already exists", record.ID)
		}
	}
	r.records = append(r.records, record)
	return nil
}

func (r *MemoryAuditRepository) GetByID(_ context.Context, id uuid.UUID) (*models.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, fmt.Errorf("audit record %s: %w", id, apperrors.ErrNotFound)
}

func (r *MemoryAuditRepository) GetByEntity(_ context.Context, entityType, entityID string, limit int) ([]*models.AuditRecord, error) {
	return r.newest(limit, func(record *models.AuditRecord) bool {
		return record.EntityType == entityType && record.EntityID == entityID
	}), nil
}

func (r *MemoryAuditRepository) GetRecent(_ context.Context, limit int) ([]*models.AuditRecord, error) {
	return r.newest(limit, func(*models.AuditRecord) bool { return true }), nil
}

// Len returns the number of stored records.
func (r *MemoryAuditRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// newest returns matching records ordered by CreatedAt descending; records
// with equal timestamps come latest-appended first.
func (r *MemoryAuditRepository) newest(limit int, match func(*models.AuditRecord) bool) []*models.AuditRecord {
	r.mu.RLock()
	var out []*models.AuditRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if match(r.records[i]) {
			out = append(out, r.records[i])
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}
