package sqlstore

import (
	"context"
	"database/sql"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/search"
	"github.com/platinummonkey/adminkit/pkg/storage"
)

var (
	_ storage.RecordStore = (*DB)(nil)
	_ storage.TxRunner    = (*DB)(nil)
	_ search.Executor     = (*DB)(nil)
)

// Insert stores a record in its entity's table and returns the id. A record
// carrying a non-zero id keeps it.
func (d *DB) Insert(ctx context.Context, entity string, record interface{}) (int64, error) {
	const op = "sqlstore.Insert"
	table, err := d.table(entity)
	if err != nil {
		return 0, apperrors.Configuration(op, "%v", err)
	}
	cols, err := storage.RecordColumns(record)
	if err != nil {
		return 0, apperrors.InvalidArgument(op, "%v", err)
	}

	explicitID := storage.RecordID(record)
	if explicitID != 0 {
		cols = append([]storage.Column{{Name: storage.IDColumn, Value: explicitID}}, cols...)
	}
	names := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		names[i] = quote(c.Name)
		args[i] = c.Value
	}

	var id int64
	err = d.queryRow(ctx, `INSERT INTO `+table+` (`+strings.Join(names, ", ")+`) VALUES (`+placeholders(len(cols))+`) RETURNING id`,
		args...).Scan(&id)
	if err != nil {
		return 0, classify(op, err)
	}

	if explicitID != 0 && d.dialect == Postgres {
		// explicit ids do not advance the serial sequence
		_, err := d.exec(ctx, `SELECT setval(pg_get_serial_sequence('`+table+`', 'id'), (SELECT MAX(id) FROM `+table+`))`)
		if err != nil {
			return 0, classify(op, err)
		}
	}
	storage.SetRecordID(record, id)
	return id, nil
}

// Update replaces the stored columns of a record
func (d *DB) Update(ctx context.Context, entity string, id int64, record interface{}) error {
	const op = "sqlstore.Update"
	table, err := d.table(entity)
	if err != nil {
		return apperrors.Configuration(op, "%v", err)
	}
	cols, err := storage.RecordColumns(record)
	if err != nil {
		return apperrors.InvalidArgument(op, "%v", err)
	}
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = quote(c.Name) + " = ?"
		args = append(args, c.Value)
	}
	args = append(args, id)

	res, err := d.exec(ctx, `UPDATE `+table+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return classify(op, err)
	}
	return expectRow(op, res, "%s %d", entity, id)
}

// Delete removes a record
func (d *DB) Delete(ctx context.Context, entity string, id int64) error {
	const op = "sqlstore.Delete"
	table, err := d.table(entity)
	if err != nil {
		return apperrors.Configuration(op, "%v", err)
	}
	res, err := d.exec(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return classify(op, err)
	}
	return expectRow(op, res, "%s %d", entity, id)
}

// Get loads a record into dst
func (d *DB) Get(ctx context.Context, entity string, id int64, dst interface{}) error {
	const op = "sqlstore.Get"
	table, err := d.table(entity)
	if err != nil {
		return apperrors.Configuration(op, "%v", err)
	}
	rows, err := d.query(ctx, `SELECT * FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return classify(op, err)
	}
	maps, err := scanMaps(rows)
	if err != nil {
		return classify(op, err)
	}
	if len(maps) == 0 {
		return apperrors.NotFound(op, "%s %d", entity, id)
	}
	if err := storage.AssignColumns(dst, maps[0]); err != nil {
		return apperrors.Persistence(op, err)
	}
	return nil
}

// scanMaps reads every row into a column-name keyed map and closes rows
func scanMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			m[strings.ToLower(c)] = values[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Execute runs a prepared search: one COUNT over the filter, one page
// query and one batch load of the requested extended values
func (d *DB) Execute(ctx context.Context, req *search.ExecRequest) (*search.ExecResult, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.Execute",
		trace.WithAttributes(
			attribute.String("db.system", string(d.dialect)),
			attribute.String("search.query", req.Query),
			attribute.String("search.entity", req.Entity),
		),
	)
	defer span.End()

	result, err := d.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("search.total", result.Total))
	span.SetStatus(codes.Ok, "search completed")
	return result, nil
}

func (d *DB) execute(ctx context.Context, req *search.ExecRequest) (*search.ExecResult, error) {
	const op = "sqlstore.Execute"
	table, err := d.table(req.Entity)
	if err != nil {
		return nil, apperrors.Configuration(op, "%v", err)
	}

	candidates := req.ExtensionIDs
	if req.ActiveExtensionID != 0 {
		candidates = []int64{req.ActiveExtensionID}
	}
	wb := &whereBuilder{dialect: d.dialect, extensionIDs: candidates}
	where, err := wb.build(req.Predicate)
	if err != nil {
		return nil, apperrors.InvalidArgument(op, "%v", err)
	}
	order, err := orderBy(req.OrderBy)
	if err != nil {
		return nil, apperrors.InvalidArgument(op, "%v", err)
	}

	result := &search.ExecResult{}
	if err := d.queryRow(ctx, `SELECT COUNT(*) FROM `+table+` t WHERE `+where, wb.args...).Scan(&result.Total); err != nil {
		return nil, classify(op, err)
	}
	if result.Total == 0 {
		return result, nil
	}

	q := `SELECT t.* FROM ` + table + ` t WHERE ` + where + order
	args := append([]interface{}(nil), wb.args...)
	switch {
	case !req.Page.Unbounded():
		q += ` LIMIT ? OFFSET ?`
		args = append(args, req.Page.Limit, req.Page.Offset)
	case req.Page.Offset > 0 && d.dialect == SQLite:
		q += ` LIMIT -1 OFFSET ?`
		args = append(args, req.Page.Offset)
	case req.Page.Offset > 0:
		q += ` OFFSET ?`
		args = append(args, req.Page.Offset)
	}

	rows, err := d.query(ctx, q, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	maps, err := scanMaps(rows)
	if err != nil {
		return nil, classify(op, err)
	}

	for _, m := range maps {
		for _, f := range req.ExcludedFields {
			if f != storage.IDColumn {
				delete(m, f)
			}
		}
		out := reflect.New(req.ResultType).Interface()
		if err := storage.AssignColumns(out, m); err != nil {
			return nil, apperrors.Persistence(op, err)
		}
		result.Rows = append(result.Rows, out)
	}

	if err := d.fillExtended(ctx, req, result.Rows); err != nil {
		return nil, err
	}
	return result, nil
}

// fillExtended loads the requested extension values into rows implementing
// ExtendableRecord. Values of the active extension win on shared names.
func (d *DB) fillExtended(ctx context.Context, req *search.ExecRequest, rows []interface{}) error {
	if len(req.ExtendedFields) == 0 {
		return nil
	}
	records := make(map[int64]extension.ExtendableRecord, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		rec, ok := r.(extension.ExtendableRecord)
		if !ok {
			return nil
		}
		id := storage.RecordID(r)
		records[id] = rec
		ids = append(ids, id)
		rec.SetExtendedFields(map[string]string{})
	}

	wanted := make(map[int64]map[string]bool)
	var extIDs []int64
	for _, ef := range req.ExtendedFields {
		if wanted[ef.ExtensionID] == nil {
			wanted[ef.ExtensionID] = make(map[string]bool)
			extIDs = append(extIDs, ef.ExtensionID)
		}
		wanted[ef.ExtensionID][ef.Name] = true
	}

	values, err := d.loadExtended(ctx, extIDs, ids)
	if err != nil {
		return err
	}
	for _, active := range []bool{false, true} {
		for _, v := range values {
			if (v.extensionID == req.ActiveExtensionID) != active || !wanted[v.extensionID][v.name] {
				continue
			}
			if rec, ok := records[v.entityID]; ok {
				rec.GetExtendedFields()[v.name] = v.value
			}
		}
	}
	return nil
}
