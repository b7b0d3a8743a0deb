package payroll

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// TableName is the remote table this store mirrors.
const TableName = "payroll"

// Employee is a payroll row. EPFEmployer is the stored employer EPF amount,
// used in reports in place of the statutory rate calculation.
type Employee struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	BasicSalary float64 `db:"basic_salary" json:"basic_salary"`
	EPFEmployer float64 `db:"epf_employer" json:"epf_employer"`
}

// NewEmployee carries the caller-supplied fields for employee creation.
type NewEmployee struct {
	Name        string  `json:"name" validate:"required"`
	BasicSalary float64 `json:"basic_salary" validate:"gte=0"`
	EPFEmployer float64 `json:"epf_employer" validate:"gte=0"`
}

// Validate checks field constraints.
func (n NewEmployee) Validate(v *validator.Validate) error {
	return v.Struct(n)
}

// EmployeeUpdate carries a partial employee edit. Nil fields are untouched.
type EmployeeUpdate struct {
	Name        *string  `json:"name,omitempty"`
	BasicSalary *float64 `json:"basic_salary,omitempty" validate:"omitempty,gte=0"`
	EPFEmployer *float64 `json:"epf_employer,omitempty" validate:"omitempty,gte=0"`
}

// ErrEmployeeNotFound is returned for lookups of unknown employee ids.
var ErrEmployeeNotFound = fmt.Errorf("payroll: employee %w", shared.ErrNotFound)
