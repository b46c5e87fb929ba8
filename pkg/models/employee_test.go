package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
)

func newLinkedEmployee() *Employee {
	emp := &Employee{
		ID:        uuid.MustParse("0d9b2b8e-2f7c-4a53-9d57-6a4a1d0b7e11"),
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "ann@example.com",
		SSN:       "123-45-6789",
		Age:       30,
		Positions: []Position{{Title: "Engineer", Level: 2}},
		Salary:    &Salary{Amount: 100, Currency: "EUR"},
		UpdatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	emp.Employment = &EmploymentInformation{
		ID:         uuid.MustParse("5a3f0c1e-77e2-4b7b-8f1e-2c9d1f6a0b22"),
		Employee:   emp,
		Department: "R&D",
		Status:     EmploymentStatusActive,
		StartDate:  time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC),
	}
	return emp
}

func TestEmployee_ToCanonicalDeclarationOrder(t *testing.T) {
	m, ok := canonical.Encode(newLinkedEmployee()).(canonical.Map)
	require.True(t, ok)

	assert.Equal(t, []string{
		"id", "firstName", "lastName", "email", "ssn", "age",
		"manager", "employment", "positions", "salary", "updatedAt",
	}, m.Keys())
}

func TestEmployee_BackReferenceEncodesAsCycle(t *testing.T) {
	m := canonical.Encode(newLinkedEmployee()).(canonical.Map)

	employment, _ := m.Get("employment")
	employee, ok := employment.(canonical.Map).Get("employee")
	require.True(t, ok)

	s, ok := employee.(canonical.Scalar)
	require.True(t, ok)
	assert.True(t, s.IsCycle())
}

func TestEmployee_FromCanonicalRestoresGraph(t *testing.T) {
	original := newLinkedEmployee()

	var decoded Employee
	require.NoError(t, decoded.FromCanonical(canonical.Encode(original)))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, "Ann", decoded.FirstName)
	assert.Equal(t, 30, decoded.Age)
	require.NotNil(t, decoded.Employment)
	assert.Same(t, &decoded, decoded.Employment.Employee)
	assert.Equal(t, EmploymentStatusActive, decoded.Employment.Status)
	assert.Equal(t, []Position{{Title: "Engineer", Level: 2}}, decoded.Positions)
	require.NotNil(t, decoded.Salary)
	assert.Equal(t, int64(100), decoded.Salary.Amount)
	assert.True(t, decoded.UpdatedAt.Equal(original.UpdatedAt))
}

func TestEmployee_FromCanonicalKeepsForeignEmploymentEmployee(t *testing.T) {
	other := &Employee{ID: uuid.MustParse("9c1e7a0d-3b4f-4e8a-a1d2-7f6e5d4c3b21"), FirstName: "Bob"}
	emp := &Employee{
		ID:         uuid.MustParse("0d9b2b8e-2f7c-4a53-9d57-6a4a1d0b7e11"),
		FirstName:  "Ann",
		Employment: &EmploymentInformation{Employee: other, Department: "R&D"},
	}

	var decoded Employee
	require.NoError(t, decoded.FromCanonical(canonical.Encode(emp)))

	require.NotNil(t, decoded.Employment)
	require.NotNil(t, decoded.Employment.Employee)
	assert.NotSame(t, &decoded, decoded.Employment.Employee)
	assert.Equal(t, other.ID, decoded.Employment.Employee.ID)
	assert.Equal(t, "Bob", decoded.Employment.Employee.FirstName)
}

func TestEmployee_ZeroFieldsEncodeAsNull(t *testing.T) {
	m := canonical.Encode(&Employee{Age: 31}).(canonical.Map)

	for _, key := range []string{"id", "firstName", "manager", "positions", "salary", "updatedAt"} {
		v, _ := m.Get(key)
		assert.True(t, canonical.Equal(canonical.Null(), v), "key %s", key)
	}
	age, _ := m.Get("age")
	assert.True(t, canonical.Equal(canonical.Int(31), age))
}

func TestEmployee_FromCanonicalRejectsBadID(t *testing.T) {
	node := canonical.NewMapBuilder(1).Set("id", canonical.String("not-a-uuid")).Build()

	var e Employee
	assert.Error(t, e.FromCanonical(node))
}
