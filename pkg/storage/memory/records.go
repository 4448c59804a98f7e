package memory

import (
	"context"
	"reflect"
	"sort"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/query"
	"github.com/platinummonkey/adminkit/pkg/search"
	"github.com/platinummonkey/adminkit/pkg/storage"
)

// Insert stores a record of an entity type and returns its id. A record
// carrying a non-zero id keeps it.
func (s *Store) Insert(ctx context.Context, entity string, record interface{}) (int64, error) {
	const op = "memory.Insert"
	cols, err := storage.RecordColumns(record)
	if err != nil {
		return 0, apperrors.InvalidArgument(op, "%v", err)
	}

	var id int64
	err = s.write(ctx, func(d *data) error {
		rows := d.records[entity]
		if rows == nil {
			rows = make(map[int64]row)
			d.records[entity] = rows
		}

		seq := "records:" + entity
		id = storage.RecordID(record)
		switch {
		case id == 0:
			id = d.next(seq)
		case rows[id] != nil:
			return apperrors.ConstraintViolation(op, nil, "%s %d exists", entity, id)
		case id > d.seq[seq]:
			d.seq[seq] = id
		}
		rows[id] = newRow(id, cols)
		return nil
	})
	if err != nil {
		return 0, err
	}
	storage.SetRecordID(record, id)
	return id, nil
}

func newRow(id int64, cols []storage.Column) row {
	r := make(row, len(cols)+1)
	for _, c := range cols {
		r[c.Name] = c.Value
	}
	r[storage.IDColumn] = id
	return r
}

// Update replaces the stored columns of a record
func (s *Store) Update(ctx context.Context, entity string, id int64, record interface{}) error {
	const op = "memory.Update"
	cols, err := storage.RecordColumns(record)
	if err != nil {
		return apperrors.InvalidArgument(op, "%v", err)
	}
	return s.write(ctx, func(d *data) error {
		if d.records[entity][id] == nil {
			return apperrors.NotFound(op, "%s %d", entity, id)
		}
		d.records[entity][id] = newRow(id, cols)
		return nil
	})
}

// Delete removes a record
func (s *Store) Delete(ctx context.Context, entity string, id int64) error {
	return s.write(ctx, func(d *data) error {
		if d.records[entity][id] == nil {
			return apperrors.NotFound("memory.Delete", "%s %d", entity, id)
		}
		delete(d.records[entity], id)
		return nil
	})
}

// Get loads a record into dst
func (s *Store) Get(ctx context.Context, entity string, id int64, dst interface{}) error {
	return s.read(func(d *data) error {
		r := d.records[entity][id]
		if r == nil {
			return apperrors.NotFound("memory.Get", "%s %d", entity, id)
		}
		return storage.AssignColumns(dst, r)
	})
}

// Execute filters, sorts and pages the rows of req.Entity. Conditions on
// "ext." paths read the value of the first candidate extension field with
// that name that has a value for the row, active extension first.
func (s *Store) Execute(ctx context.Context, req *search.ExecRequest) (*search.ExecResult, error) {
	result := &search.ExecResult{}
	err := s.read(func(d *data) error {
		ext := d.extendedIndex(req)

		var matched []row
		for _, r := range d.records[req.Entity] {
			id, _ := r[storage.IDColumn].(int64)
			getter := query.GetterFunc(func(path string) (interface{}, bool) {
				if name, ok := query.ExtendedField(path); ok {
					return ext.value(name, id)
				}
				return query.Lookup(map[string]interface{}(r), path)
			})
			if query.Match(req.Predicate, getter) {
				matched = append(matched, r)
			}
		}

		sortRows(matched, req.OrderBy)
		result.Total = int64(len(matched))
		start, end := req.Page.Window(len(matched))

		excluded := make(map[string]bool, len(req.ExcludedFields))
		for _, f := range req.ExcludedFields {
			excluded[f] = true
		}
		for _, r := range matched[start:end] {
			out, err := d.materialize(req, r, excluded)
			if err != nil {
				return err
			}
			result.Rows = append(result.Rows, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *data) materialize(req *search.ExecRequest, r row, excluded map[string]bool) (interface{}, error) {
	values := make(map[string]interface{}, len(r))
	for k, v := range r {
		if !excluded[k] || k == storage.IDColumn {
			values[k] = v
		}
	}
	out := reflect.New(req.ResultType).Interface()
	if err := storage.AssignColumns(out, values); err != nil {
		return nil, apperrors.Persistence("memory.Execute", err)
	}

	rec, ok := out.(extension.ExtendableRecord)
	if !ok {
		return out, nil
	}
	id, _ := r[storage.IDColumn].(int64)
	extended := make(map[string]string)
	// active extension last so its values win on shared names
	for _, active := range []bool{false, true} {
		for _, ef := range req.ExtendedFields {
			if (ef.ExtensionID == req.ActiveExtensionID) != active {
				continue
			}
			if v, ok := d.valueOf(ef.ExtensionID, ef.Name, id); ok {
				extended[ef.Name] = v
			}
		}
	}
	rec.SetExtendedFields(extended)
	return out, nil
}

func (d *data) valueOf(extensionID int64, name string, entityID int64) (string, bool) {
	for _, f := range d.fields {
		if f.ExtensionID != extensionID || f.Name != name {
			continue
		}
		for _, v := range d.values {
			if v.FieldID == f.ID && v.EntityID == entityID {
				return v.Value, true
			}
		}
	}
	return "", false
}

// extendedIndex maps field names to candidate field ids and values
type extendedIndex struct {
	fields map[string][]int64
	values map[int64]map[int64]string // field id -> entity id -> value
}

func (d *data) extendedIndex(req *search.ExecRequest) extendedIndex {
	candidates := req.ExtensionIDs
	if req.ActiveExtensionID != 0 {
		candidates = []int64{req.ActiveExtensionID}
	}
	rank := make(map[int64]int, len(candidates))
	for i, id := range candidates {
		rank[id] = i
	}

	idx := extendedIndex{fields: make(map[string][]int64), values: make(map[int64]map[int64]string)}
	for _, id := range sortedIDs(d.fields, func(f *extension.Field) bool {
		_, ok := rank[f.ExtensionID]
		return ok
	}) {
		f := d.fields[id]
		idx.fields[f.Name] = append(idx.fields[f.Name], f.ID)
		idx.values[f.ID] = make(map[int64]string)
	}
	for name, ids := range idx.fields {
		sort.SliceStable(ids, func(i, j int) bool {
			return rank[d.fields[ids[i]].ExtensionID] < rank[d.fields[ids[j]].ExtensionID]
		})
		idx.fields[name] = ids
	}
	for _, v := range d.values {
		if byEntity, ok := idx.values[v.FieldID]; ok {
			byEntity[v.EntityID] = v.Value
		}
	}
	return idx
}

func (x extendedIndex) value(name string, entityID int64) (interface{}, bool) {
	for _, fid := range x.fields[name] {
		if v, ok := x.values[fid][entityID]; ok {
			return v, true
		}
	}
	return nil, false
}

// sortRows orders rows by the given keys, nulls first, ties by id
func sortRows(rows []row, order []query.Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			a, b := rows[i][o.Field], rows[j][o.Field]
			cmp := compareNullable(a, b)
			if cmp == 0 {
				continue
			}
			if o.Dir == query.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		ai, _ := rows[i][storage.IDColumn].(int64)
		bi, _ := rows[j][storage.IDColumn].(int64)
		return ai < bi
	})
}

func compareNullable(a, b interface{}) int {
	aNil, bNil := isNil(a), isNil(b)
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return -1
	case bNil:
		return 1
	}
	cmp, _ := query.Compare(a, b)
	return cmp
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
