package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

func TestMergeValues_Employee(t *testing.T) {
	stored := models.Employee{
		FirstName: "Ann",
		LastName:  "Lee",
		Age:       30,
		Positions: []models.Position{{Title: "Engineer", Level: 2}},
		Salary:    &models.Salary{Amount: 100, Currency: "EUR"},
	}
	stored.Employment = &models.EmploymentInformation{
		Employee:   &stored,
		Department: "R&D",
		Status:     models.EmploymentStatusActive,
	}

	patch := models.Employee{
		Age:    31,
		Salary: &models.Salary{Amount: 150},
	}

	merged, err := MergeValues(stored, patch)
	require.NoError(t, err)

	assert.Equal(t, "Ann", merged.FirstName)
	assert.Equal(t, 31, merged.Age)
	require.NotNil(t, merged.Salary)
	assert.Equal(t, int64(150), merged.Salary.Amount)
	assert.Equal(t, "EUR", merged.Salary.Currency)
	assert.Equal(t, []models.Position{{Title: "Engineer", Level: 2}}, merged.Positions)
	require.NotNil(t, merged.Employment)
	assert.Equal(t, "R&D", merged.Employment.Department)
	require.NotNil(t, merged.Employment.Employee)
	assert.Equal(t, "Ann", merged.Employment.Employee.FirstName)

	// Inputs are untouched.
	assert.Equal(t, 30, stored.Age)
	assert.Equal(t, int64(100), stored.Salary.Amount)
}

func TestMergeValues_PositionsReplacedWhole(t *testing.T) {
	stored := models.Employee{FirstName: "Ann", Positions: []models.Position{{Title: "Dev"}, {Title: "Lead"}}}
	patch := models.Employee{Positions: []models.Position{{Title: "Head", Level: 4}}}

	merged, err := MergeValues(stored, patch)
	require.NoError(t, err)
	assert.Equal(t, []models.Position{{Title: "Head", Level: 4}}, merged.Positions)
}

func TestMergeInto_KeepsBackReference(t *testing.T) {
	stored := &models.Employee{FirstName: "Ann", Age: 30}
	stored.Employment = &models.EmploymentInformation{Employee: stored, Department: "R&D"}

	var merged models.Employee
	require.NoError(t, MergeInto(&merged, stored, &models.Employee{Age: 31}))

	assert.Equal(t, 31, merged.Age)
	require.NotNil(t, merged.Employment)
	assert.Same(t, &merged, merged.Employment.Employee)
}

func TestMergeInto_ShapeMismatch(t *testing.T) {
	var merged models.Employee
	err := MergeInto(&merged, &models.Employee{FirstName: "Ann"}, badEmployee{})
	require.Error(t, err)
	var shapeErr *ShapeMismatchError
	assert.ErrorAs(t, err, &shapeErr)
}

// badEmployee encodes firstName as a list.
type badEmployee struct{}

func (badEmployee) ToCanonical(e *canonical.Encoder) canonical.Node {
	return e.Object(nil, func(b *canonical.MapBuilder) {
		b.Set("firstName", canonical.NewList(canonical.String("x")))
	})
}
