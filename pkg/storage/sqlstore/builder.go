package sqlstore

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/platinummonkey/adminkit/pkg/query"
)

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func quote(ident string) string {
	return `"` + ident + `"`
}

// whereBuilder renders a predicate tree as a SQL boolean expression over
// table alias t, collecting arguments in order
type whereBuilder struct {
	dialect Dialect
	// extensionIDs are the candidates for "ext." paths
	extensionIDs []int64
	args         []interface{}
}

func (b *whereBuilder) build(p query.Predicate) (string, error) {
	switch n := p.(type) {
	case nil:
		return "1=1", nil
	case query.Condition:
		return b.condition(n)
	case query.Group:
		if len(n.Items) == 0 {
			if n.Join == query.Or {
				return "1=0", nil
			}
			return "1=1", nil
		}
		parts := make([]string, 0, len(n.Items))
		for _, item := range n.Items {
			s, err := b.build(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		sep := " AND "
		if n.Join == query.Or {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	}
	return "", fmt.Errorf("unsupported predicate %T", p)
}

func (b *whereBuilder) condition(c query.Condition) (string, error) {
	if name, ok := query.ExtendedField(c.Path); ok {
		return b.extended(name, c)
	}
	if !validIdentifier(c.Path) {
		return "", fmt.Errorf("invalid column %q", c.Path)
	}
	return b.compare("t."+quote(c.Path), c, false)
}

// compare renders col <op> value. text marks columns known to hold text,
// which are cast to a number when compared against one.
func (b *whereBuilder) compare(col string, c query.Condition, text bool) (string, error) {
	switch c.Op {
	case query.OpIsNull:
		return col + " IS NULL", nil
	case query.OpNotNull:
		return col + " IS NOT NULL", nil
	case query.OpLike:
		b.args = append(b.args, fmt.Sprint(c.Value))
		expr := "CAST(" + col + " AS TEXT)"
		if c.IgnoreCase {
			return "LOWER(" + expr + ") LIKE LOWER(?)", nil
		}
		return expr + " LIKE ?", nil
	case query.OpIn:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice {
			return b.compare(col, query.Condition{Path: c.Path, Op: query.OpEQ, Value: c.Value, IgnoreCase: c.IgnoreCase}, text)
		}
		if rv.Len() == 0 {
			return "1=0", nil
		}
		target := col
		if c.IgnoreCase {
			target = "LOWER(" + col + ")"
		}
		marks := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v := rv.Index(i).Interface()
			if c.IgnoreCase {
				marks[i] = "LOWER(?)"
			} else {
				marks[i] = "?"
			}
			b.args = append(b.args, b.arg(v, text))
		}
		return target + " IN (" + strings.Join(marks, ", ") + ")", nil
	}

	ops := map[query.Operator]string{
		query.OpEQ: "=", query.OpNE: "<>",
		query.OpGT: ">", query.OpGE: ">=",
		query.OpLT: "<", query.OpLE: "<=",
	}
	sqlOp, ok := ops[c.Op]
	if !ok {
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}

	if text && isNumeric(c.Value) {
		col = "CAST(" + col + " AS " + b.numericType() + ")"
		text = false
	}
	if c.IgnoreCase && (c.Op == query.OpEQ || c.Op == query.OpNE) {
		b.args = append(b.args, fmt.Sprint(c.Value))
		return "LOWER(" + col + ") " + sqlOp + " LOWER(?)", nil
	}
	b.args = append(b.args, b.arg(c.Value, text))
	return col + " " + sqlOp + " ?", nil
}

// arg converts a condition value for a text column to its stored form
func (b *whereBuilder) arg(v interface{}, text bool) interface{} {
	if text {
		return fmt.Sprint(v)
	}
	return v
}

func (b *whereBuilder) numericType() string {
	if b.dialect == Postgres {
		return "NUMERIC"
	}
	return "REAL"
}

func isNumeric(v interface{}) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// extended renders a condition on an extension field as an EXISTS
// subquery over the candidate extensions' values. A missing or blank value
// is null.
func (b *whereBuilder) extended(name string, c query.Condition) (string, error) {
	if len(b.extensionIDs) == 0 {
		if c.Op == query.OpIsNull {
			return "1=1", nil
		}
		return "1=0", nil
	}

	b.args = append(b.args, name)
	for _, id := range b.extensionIDs {
		b.args = append(b.args, id)
	}
	exists := `EXISTS (SELECT 1 FROM ext_values v JOIN ext_fields f ON f.id = v.field_id
		WHERE v.entity_id = t.id AND f.name = ? AND f.extension_id IN (` + placeholders(len(b.extensionIDs)) + `)
		AND v.value <> ''`

	switch c.Op {
	case query.OpIsNull:
		return "NOT " + exists + ")", nil
	case query.OpNotNull:
		return exists + ")", nil
	}
	cond, err := b.compare("v.value", c, true)
	if err != nil {
		return "", err
	}
	return exists + " AND " + cond + ")", nil
}

// orderBy renders ORDER BY keys; only plain columns are sortable
func orderBy(order []query.Order) (string, error) {
	if len(order) == 0 {
		return " ORDER BY t.id", nil
	}
	keys := make([]string, 0, len(order)+1)
	hasID := false
	for _, o := range order {
		if !validIdentifier(o.Field) {
			return "", fmt.Errorf("invalid sort column %q", o.Field)
		}
		dir := "ASC"
		if o.Dir == query.Desc {
			dir = "DESC"
		}
		keys = append(keys, "t."+quote(o.Field)+" "+dir)
		hasID = hasID || o.Field == "id"
	}
	if !hasID {
		keys = append(keys, "t.id ASC")
	}
	return " ORDER BY " + strings.Join(keys, ", "), nil
}
