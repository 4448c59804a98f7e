package employees

import (
	"context"
	"strings"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/extension"
)

// SeedNames are the names of the sample employees, in insertion order
var SeedNames = []string{"abc", "bca", "cab", "xyz", "dan", "eva", "tom", "sam", "kai", "amy", "joe", "mark"}

// Service stores employees with their extended fields
type Service struct {
	saver  *extension.Saver
	points *extension.PointRegistry
}

// NewService creates an employee service
func NewService(saver *extension.Saver, points *extension.PointRegistry) *Service {
	return &Service{saver: saver, points: points}
}

func (s *Service) point() (string, error) {
	p, ok := s.points.ByTarget(Entity)
	if !ok {
		return "", apperrors.Configuration("employees.Service", "no extension point for %s", Entity)
	}
	return p.Name, nil
}

// Create stores a new employee in the caller's space and returns its id
func (s *Service) Create(ctx context.Context, e *Employee) (int64, error) {
	if err := validate(e); err != nil {
		return 0, err
	}
	point, err := s.point()
	if err != nil {
		return 0, err
	}
	if e.SpaceID == "" {
		e.SpaceID = contextkeys.GetSpace(ctx)
	}
	id, err := s.saver.Create(ctx, point, e)
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// Get loads an employee with the caller's extended fields. Employees of
// another space are not found.
func (s *Service) Get(ctx context.Context, id int64) (*Employee, error) {
	point, err := s.point()
	if err != nil {
		return nil, err
	}
	var e Employee
	if err := s.saver.Get(ctx, point, id, &e); err != nil {
		return nil, err
	}
	if space := contextkeys.GetSpace(ctx); space != "" && e.SpaceID != space {
		return nil, apperrors.NotFound("employees.Get", "employee %d", id)
	}
	return &e, nil
}

// Update replaces an employee. Extended fields absent from e keep their
// stored values.
func (s *Service) Update(ctx context.Context, id int64, e *Employee) error {
	if err := validate(e); err != nil {
		return err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	point, err := s.point()
	if err != nil {
		return err
	}
	e.ID = id
	e.SpaceID = current.SpaceID
	return s.saver.Update(ctx, point, id, e)
}

// Delete removes an employee and its extended values
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	point, err := s.point()
	if err != nil {
		return err
	}
	return s.saver.Delete(ctx, point, id)
}

// Seed inserts the sample employees: salaries 100 to 1200, alternating
// between the two spaces. It returns the new ids.
func (s *Service) Seed(ctx context.Context, evenSpace, oddSpace string) ([]int64, error) {
	ids := make([]int64, 0, len(SeedNames))
	for i, name := range SeedNames {
		space := evenSpace
		if i%2 == 1 {
			space = oddSpace
		}
		id, err := s.Create(ctx, &Employee{Name: name, Salary: float64((i + 1) * 100), SpaceID: space})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func validate(e *Employee) error {
	if e == nil || strings.TrimSpace(e.Name) == "" {
		return apperrors.InvalidArgument("employees.validate", "name is required")
	}
	if e.Salary < 0 {
		return apperrors.InvalidArgument("employees.validate", "salary must not be negative")
	}
	return nil
}
