package employees

import (
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/query"
	"github.com/platinummonkey/adminkit/pkg/search"
)

const (
	// Entity is the entity type and record store name of employees
	Entity = "Employee"
	// PointName is the extension point of employees
	PointName = "Employee"
	// QueryName is the registered employee search
	QueryName = "empSearch"
	// Table is the SQL table backing employees
	Table = "employees"
)

// DDL creates the employees table. Markers are expanded by sqlstore.
const DDL = `CREATE TABLE IF NOT EXISTS employees (
	id {{serial}},
	name VARCHAR(255) NOT NULL DEFAULT '',
	salary DOUBLE PRECISION NOT NULL DEFAULT 0,
	space_id VARCHAR(255) NOT NULL DEFAULT ''
)`

// IndexDDL indexes the tenant column
const IndexDDL = `CREATE INDEX IF NOT EXISTS employees_space_idx ON employees (space_id)`

// Employee is an extendable employee record
type Employee struct {
	ID       int64             `db:"id" json:"id" column:"Id,backend"`
	Name     string            `db:"name" json:"name" column:"Name,required"`
	Salary   float64           `db:"salary" json:"salary" column:"Salary,format=%.2f"`
	SpaceID  string            `db:"space_id" json:"space_id" column:"Space,hidden"`
	Extended map[string]string `db:"-" json:"extended,omitempty"`
}

// SearchEntity implements search.Searchable
func (Employee) SearchEntity() string { return Entity }

// GetExtendedFields implements extension.ExtendableRecord
func (e *Employee) GetExtendedFields() map[string]string { return e.Extended }

// SetExtendedFields implements extension.ExtendableRecord
func (e *Employee) SetExtendedFields(v map[string]string) { e.Extended = v }

// Query is the query model of empSearch. Blank fields do not filter.
type Query struct {
	Name      string   `json:"name" search:"name,op=like,ignorecase"`
	MinSalary *float64 `json:"min_salary" search:"path=salary,op=ge"`
	MaxSalary *float64 `json:"max_salary" search:"path=salary,op=le"`
}

// SearchEntity implements search.Searchable
func (Query) SearchEntity() string { return Entity }

// Register declares the Employee extension point, unless a manifest
// already did, and the empSearch query. Call it before points.Freeze.
func Register(points *extension.PointRegistry, queries *search.Registry) error {
	if _, ok := points.ByTarget(Entity); !ok {
		if err := points.Register(PointName, Entity); err != nil {
			return err
		}
	}
	return queries.Register(search.QueryDefinition{
		Name:        QueryName,
		QueryModel:  Query{},
		ResultModel: Employee{},
		OrderBy:     []query.Order{{Field: "id", Dir: query.Asc}},
	})
}
