// Package employees is the sample extendable module: an Employee entity
// with the "Employee" extension point and the "empSearch" query.
//
// Employee implements extension.ExtendableRecord, so tenants can attach
// their own fields, and both Employee and Query implement
// search.Searchable. Register wires the point and the query into the boot
// registries; Service persists employees and their extended values in one
// transaction through extension.Saver.
//
// SQL backends need the table:
//
//	db.RegisterTable(employees.Entity, employees.Table)
//	db.Migrate(ctx, employees.DDL, employees.IndexDDL)
package employees
