/*
Package sqlstore persists extension metadata, extension values, user search
settings and entity records in PostgreSQL or SQLite.

A single DB value implements extension.Repository, extension.ValueRepository,
search.SettingsRepository, search.Executor, storage.RecordStore and
storage.TxRunner. Queries are written with ? placeholders and rebound for the
connection's dialect.

# Transactions

InTx stores the transaction in the context. Every method called with that
context joins it, so services can compose repository calls atomically:

	err := db.InTx(ctx, func(ctx context.Context) error {
		if err := db.CreateExtension(ctx, ext); err != nil {
			return err
		}
		return db.CreateField(ctx, field)
	})

Unique conflicts on inserts are detected with ON CONFLICT DO NOTHING so a
PostgreSQL transaction stays usable after a ConstraintViolation.

# Searching

Execute renders the predicate tree into SQL over the registered entity
table. Conditions on "ext." paths become EXISTS subqueries over the value
table restricted to the candidate extensions. A blank stored value counts
as null.

	db.RegisterTable("Employee", "employees")
	res, err := db.Execute(ctx, &search.ExecRequest{
		Entity:     "Employee",
		ResultType: reflect.TypeOf(Employee{}),
		Predicate:  query.Eq("space_id", "acme"),
		Page:       query.Page{Limit: 25},
	})

Only plain columns are sortable. Results always get an id tie-break so
paging is stable.
*/
package sqlstore
