// Package search runs named, tenant-isolated queries over admin entities.
//
// # Overview
//
// Queries are registered once at boot from two tagged structs: a query
// model whose `search` tags describe filter conditions and a result model
// whose `column` tags describe the result table.
//
//	type EmployeeQuery struct {
//	    Name       string  `search:"name,op=like,ignorecase"`
//	    MinSalary  float64 `search:"path=salary,op=ge"`
//	    Department string  `search:"department,ctx=user.department"`
//	}
//
//	type EmployeeRow struct {
//	    ID     int64   `db:"id" column:"ID,required"`
//	    Name   string  `db:"name" column:"Name,required"`
//	    Salary float64 `db:"salary" column:"Salary,format=%.0f"`
//	}
//
// Unset fields of the query model (zero values, blank strings, empty
// slices) produce no condition. A pointer to a zero value is set.
//
// # Pipeline
//
// Engine.Search resolves the query, asks the Authorizer, runs query
// customizers, builds the predicate, ANDs the tenant filter on the space
// column, applies the user's column settings, executes through the
// Executor and runs result customizers. SearchFormatted and Export render
// the page as display strings.
//
// # Columns
//
// Static columns come from the result model. Extension-enabled entities add
// one column per extension field label; fields of different extensions that
// share a label collapse into a "mixed:<label>" column whose value is taken
// from the caller's active extension.
package search
