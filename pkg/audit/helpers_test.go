package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

func testRecord() *models.AuditRecord {
	return &models.AuditRecord{
		ID:          uuid.New(),
		EntityType:  models.EntityTypeEmployee,
		EntityID:    "e1",
		Action:      models.AuditActionView,
		Count:       1,
		PerformedBy: models.SystemActor,
		CreatedAt:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

// recordingSink stores appended records and fails with the queued errors
// first.
type recordingSink struct {
	mu      sync.Mutex
	records []*models.AuditRecord
	errs    []error
	calls   int
	closed  bool
}

func (s *recordingSink) Append(_ context.Context, record *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
