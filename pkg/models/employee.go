package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
)

// Entity type names used as audit policy keys.
const (
	EntityTypeEmployee   = "Employee"
	EntityTypeEmployment = "EmploymentInformation"
	EntityTypeSalary     = "Salary"
)

// EmploymentStatus is the lifecycle state of an employment.
type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "ACTIVE"
	EmploymentStatusOnLeave    EmploymentStatus = "ON_LEAVE"
	EmploymentStatusTerminated EmploymentStatus = "TERMINATED"
)

func (s EmploymentStatus) String() string {
	return string(s)
}

// Employee is the root of the sample HR graph. Employment points back at
// the employee, so encoding relies on cycle detection.
type Employee struct {
	ID         uuid.UUID
	FirstName  string
	LastName   string
	Email      string
	SSN        string
	Age        int
	Manager    *Employee
	Employment *EmploymentInformation
	Positions  []Position
	Salary     *Salary
	UpdatedAt  time.Time
}

// EmploymentInformation holds the contract data of one employee.
type EmploymentInformation struct {
	ID         uuid.UUID
	Employee   *Employee
	Department string
	Status     EmploymentStatus
	StartDate  time.Time
}

// Position is a role held by an employee. Positions have no identity of
// their own.
type Position struct {
	Title string
	Level int
}

// Salary is the current compensation of an employee.
type Salary struct {
	Amount        int64
	Currency      string
	EffectiveFrom time.Time
}

// Zero fields encode as null, so a partially filled Employee merges onto a
// stored one without clobbering it.
func (e *Employee) ToCanonical(enc *canonical.Encoder) canonical.Node {
	if e == nil {
		return canonical.Null()
	}
	return enc.Object(e, func(b *canonical.MapBuilder) {
		b.Field("id", optionalID(e.ID))
		b.FieldOmitZero("firstName", e.FirstName)
		b.FieldOmitZero("lastName", e.LastName)
		b.FieldOmitZero("email", e.Email)
		b.FieldOmitZero("ssn", e.SSN)
		b.FieldOmitZero("age", e.Age)
		b.Field("manager", e.Manager)
		b.Field("employment", e.Employment)
		b.Set("positions", canonical.ListOf(enc, e.Positions))
		b.Field("salary", e.Salary)
		b.FieldOmitZero("updatedAt", e.UpdatedAt)
	})
}

func (e *Employee) FromCanonical(n canonical.Node) error {
	r := canonical.Read(n)

	id, err := parseOptionalID(r.String("id"))
	if err != nil {
		return err
	}
	*e = Employee{
		ID:        id,
		FirstName: r.String("firstName"),
		LastName:  r.String("lastName"),
		Email:     r.String("email"),
		SSN:       r.String("ssn"),
		Age:       int(r.Int("age")),
		UpdatedAt: r.Time("updatedAt"),
	}

	if node := r.Node("manager"); node != nil {
		e.Manager = &Employee{}
		if err := e.Manager.FromCanonical(node); err != nil {
			return fmt.Errorf("manager: %w", err)
		}
	}
	if node := r.Node("employment"); node != nil {
		e.Employment = &EmploymentInformation{}
		if err := e.Employment.FromCanonical(node); err != nil {
			return fmt.Errorf("employment: %w", err)
		}
		// A back-reference encodes as a cycle marker and decodes as nil.
		if e.Employment.Employee == nil {
			e.Employment.Employee = e
		}
	}
	if list, ok := r.List("positions"); ok {
		e.Positions = make([]Position, list.Len())
		for i := range e.Positions {
			if err := e.Positions[i].FromCanonical(list.At(i)); err != nil {
				return fmt.Errorf("positions.%d: %w", i, err)
			}
		}
	}
	if node := r.Node("salary"); node != nil {
		e.Salary = &Salary{}
		if err := e.Salary.FromCanonical(node); err != nil {
			return fmt.Errorf("salary: %w", err)
		}
	}
	return r.Err()
}

func (ei *EmploymentInformation) ToCanonical(enc *canonical.Encoder) canonical.Node {
	if ei == nil {
		return canonical.Null()
	}
	return enc.Object(ei, func(b *canonical.MapBuilder) {
		b.Field("id", optionalID(ei.ID))
		b.Field("employee", ei.Employee)
		b.FieldOmitZero("department", ei.Department)
		b.FieldOmitZero("status", ei.Status)
		b.FieldOmitZero("startDate", ei.StartDate)
	})
}

func (ei *EmploymentInformation) FromCanonical(n canonical.Node) error {
	r := canonical.Read(n)

	id, err := parseOptionalID(r.String("id"))
	if err != nil {
		return err
	}
	*ei = EmploymentInformation{
		ID:         id,
		Department: r.String("department"),
		Status:     EmploymentStatus(r.String("status")),
		StartDate:  r.Time("startDate"),
	}
	if node := r.Node("employee"); node != nil {
		ei.Employee = &Employee{}
		if err := ei.Employee.FromCanonical(node); err != nil {
			return fmt.Errorf("employee: %w", err)
		}
	}
	return r.Err()
}

func (p Position) ToCanonical(enc *canonical.Encoder) canonical.Node {
	return enc.Object(nil, func(b *canonical.MapBuilder) {
		b.FieldOmitZero("title", p.Title)
		b.FieldOmitZero("level", p.Level)
	})
}

func (p *Position) FromCanonical(n canonical.Node) error {
	r := canonical.Read(n)
	p.Title = r.String("title")
	p.Level = int(r.Int("level"))
	return r.Err()
}

func (s *Salary) ToCanonical(enc *canonical.Encoder) canonical.Node {
	if s == nil {
		return canonical.Null()
	}
	return enc.Object(s, func(b *canonical.MapBuilder) {
		b.FieldOmitZero("amount", s.Amount)
		b.FieldOmitZero("currency", s.Currency)
		b.FieldOmitZero("effectiveFrom", s.EffectiveFrom)
	})
}

func (s *Salary) FromCanonical(n canonical.Node) error {
	r := canonical.Read(n)
	s.Amount = r.Int("amount")
	s.Currency = r.String("currency")
	s.EffectiveFrom = r.Time("effectiveFrom")
	return r.Err()
}

func optionalID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func parseOptionalID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
