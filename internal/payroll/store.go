package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
	"github.com/ngshijun/clinic-inventory-manager/internal/mirror"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Store mirrors the payroll table ordered by employee name.
type Store struct {
	logger *slog.Logger
	table  gateway.Table[Employee]
	audit  AuditPort
	status shared.Status
	mirror *mirror.Mirror[Employee]
}

// NewStore constructs the payroll store. audit may be nil.
func NewStore(logger *slog.Logger, table gateway.Table[Employee], audit AuditPort) *Store {
	coll := collate.New(language.English)
	return &Store{
		logger: logger,
		table:  table,
		audit:  audit,
		mirror: mirror.New(mirror.Config[Employee]{
			Key: func(e Employee) string { return e.ID },
			Less: func(a, b Employee) bool {
				if c := coll.CompareString(a.Name, b.Name); c != 0 {
					return c < 0
				}
				return a.ID < b.ID
			},
		}),
	}
}

// FetchAll replaces the local collection. The previous collection stays
// available on failure.
func (s *Store) FetchAll(ctx context.Context) error {
	s.status.Begin()
	rows, err := s.table.Select(ctx, gateway.Query{
		Order: &gateway.Order{Column: "name"},
	})
	if err != nil {
		err = fmt.Errorf("payroll: fetch employees: %w", err)
		s.status.Fail(err)
		return err
	}
	s.mirror.Replace(rows)
	s.status.End()
	return nil
}

// Add creates an employee.
func (s *Store) Add(ctx context.Context, in NewEmployee) (Employee, error) {
	s.status.Begin()
	row, err := s.table.Insert(ctx, gateway.Fields{
		"name":         in.Name,
		"basic_salary": in.BasicSalary,
		"epf_employer": in.EPFEmployer,
	})
	if err != nil {
		err = fmt.Errorf("payroll: add employee: %w", err)
		s.status.Fail(err)
		return Employee{}, err
	}
	s.mirror.Apply(gateway.Event[Employee]{Type: gateway.EventInsert, New: &row})
	s.recordAudit(ctx, "payroll:add", row.ID, map[string]any{"name": row.Name})
	s.status.End()
	return row, nil
}

// Update edits an employee. Nil fields in upd are untouched.
func (s *Store) Update(ctx context.Context, employeeID string, upd EmployeeUpdate) error {
	s.status.Begin()
	if _, ok := s.mirror.Get(employeeID); !ok {
		s.status.Fail(ErrEmployeeNotFound)
		return ErrEmployeeNotFound
	}
	fields := gateway.Fields{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.BasicSalary != nil {
		fields["basic_salary"] = *upd.BasicSalary
	}
	if upd.EPFEmployer != nil {
		fields["epf_employer"] = *upd.EPFEmployer
	}
	if len(fields) == 0 {
		s.status.End()
		return nil
	}
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", employeeID)}, fields)
	if err != nil {
		err = fmt.Errorf("payroll: update %s: %w", employeeID, err)
		s.status.Fail(err)
		return err
	}
	s.mirror.Apply(gateway.Event[Employee]{Type: gateway.EventUpdate, New: &row})
	s.recordAudit(ctx, "payroll:update", employeeID, nil)
	s.status.End()
	return nil
}

// Remove deletes an employee.
func (s *Store) Remove(ctx context.Context, employeeID string) error {
	s.status.Begin()
	if err := s.table.Delete(ctx, []gateway.Filter{gateway.Eq("id", employeeID)}); err != nil {
		err = fmt.Errorf("payroll: delete %s: %w", employeeID, err)
		s.status.Fail(err)
		return err
	}
	old := Employee{ID: employeeID}
	if e, ok := s.mirror.Get(employeeID); ok {
		old = e
	}
	s.mirror.Apply(gateway.Event[Employee]{Type: gateway.EventDelete, Old: &old})
	s.recordAudit(ctx, "payroll:delete", employeeID, nil)
	s.status.End()
	return nil
}

// Get performs a local lookup only.
func (s *Store) Get(employeeID string) (Employee, error) {
	if e, ok := s.mirror.Get(employeeID); ok {
		return e, nil
	}
	return Employee{}, ErrEmployeeNotFound
}

// Search matches the query against employee names, case-insensitive. An
// empty query returns everything.
func (s *Store) Search(query string) []Employee {
	if query == "" {
		return s.mirror.Snapshot()
	}
	q := strings.ToLower(query)
	return s.mirror.Find(func(e Employee) bool {
		return strings.Contains(strings.ToLower(e.Name), q)
	})
}

// TotalEmployees returns the employee headcount.
func (s *Store) TotalEmployees() int { return s.mirror.Len() }

// TotalBasicSalary sums all basic salaries.
func (s *Store) TotalBasicSalary() float64 {
	var sum float64
	for _, e := range s.mirror.Snapshot() {
		sum += e.BasicSalary
	}
	return sum
}

// Report computes a payroll line per employee plus the run summary.
func (s *Store) Report() ([]Line, Summary) {
	employees := s.mirror.Snapshot()
	lines := make([]Line, 0, len(employees))
	for _, e := range employees {
		lines = append(lines, BuildLine(e))
	}
	return lines, Summarize(lines)
}

// Loading reports whether a store operation is in flight.
func (s *Store) Loading() bool { return s.status.Loading() }

// LastError returns the last recorded operation error, empty when none.
func (s *Store) LastError() string { return s.status.Err() }

// Run consumes the change feed until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	sub, err := s.table.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("payroll: subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			s.mirror.Apply(evt)
		}
	}
}

func (s *Store) recordAudit(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   TableName,
		EntityID: entityID,
		Meta:     meta,
	})
}
