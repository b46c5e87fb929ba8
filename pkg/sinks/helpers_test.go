package sinks

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

func updateRecord() *models.AuditRecord {
	return &models.AuditRecord{
		ID:         uuid.MustParse("0b5c7a4e-7f0e-4d7c-9a57-55c1b1f0a001"),
		EntityType: models.EntityTypeEmployee,
		EntityID:   "e1",
		Action:     models.AuditActionUpdate,
		OldData:    canonical.NewMapBuilder(1).Set("name", canonical.String("Ann")).Build(),
		NewData:    canonical.NewMapBuilder(1).Set("name", canonical.String("Anna")).Build(),
		Changes: []models.FieldChange{
			{Path: "name", Old: canonical.String("Ann"), New: canonical.String("Anna")},
		},
		PerformedBy: "hr-admin",
		Source:      "api",
		CreatedAt:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}
