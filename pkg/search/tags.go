package search

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/platinummonkey/adminkit/pkg/query"
)

// ConditionSpec is the compiled form of one `search` tag
type ConditionSpec struct {
	Field       string // Go field name on the query model
	Index       []int
	Path        string
	Op          query.Operator
	IgnoreCase  bool
	ContextPath string
	Join        query.Join
	Siblings    []SiblingCondition
}

// SiblingCondition is an extra condition on another path fed by the same value
type SiblingCondition struct {
	Path string
	Op   query.Operator
}

// parseConditionTag compiles a query-model field tag:
//
//	search:"path=name,op=like,ignorecase,ctx=user.department,group=or,also=email:like;login:eq"
//
// A leading token without "=" is the path. The path defaults to the
// field's db/json name and the operator to EQ.
func parseConditionTag(f reflect.StructField, tag string) (ConditionSpec, error) {
	spec := ConditionSpec{
		Field: f.Name,
		Index: f.Index,
		Path:  query.FieldName(f),
		Op:    query.OpEQ,
		Join:  query.And,
	}

	for i, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		if !hasValue {
			if key == "ignorecase" {
				spec.IgnoreCase = true
				continue
			}
			if i == 0 {
				spec.Path = key
				continue
			}
			return spec, fmt.Errorf("field %s: unknown flag %q", f.Name, key)
		}

		switch key {
		case "path":
			spec.Path = value
		case "op":
			op, err := query.ParseOperator(value)
			if err != nil {
				return spec, fmt.Errorf("field %s: %w", f.Name, err)
			}
			spec.Op = op
		case "ctx":
			spec.ContextPath = value
		case "group":
			j, err := query.ParseJoin(value)
			if err != nil {
				return spec, fmt.Errorf("field %s: %w", f.Name, err)
			}
			spec.Join = j
		case "also":
			for _, s := range strings.Split(value, ";") {
				path, opName, _ := strings.Cut(s, ":")
				op := query.OpEQ
				if opName != "" {
					var err error
					if op, err = query.ParseOperator(opName); err != nil {
						return spec, fmt.Errorf("field %s: %w", f.Name, err)
					}
				}
				if path == "" {
					return spec, fmt.Errorf("field %s: empty sibling path", f.Name)
				}
				spec.Siblings = append(spec.Siblings, SiblingCondition{Path: path, Op: op})
			}
		default:
			return spec, fmt.Errorf("field %s: unknown option %q", f.Name, key)
		}
	}

	if spec.Path == "" || spec.Path == "-" {
		return spec, fmt.Errorf("field %s: condition has no target path", f.Name)
	}
	if spec.Op.Unary() && indirect(f.Type).Kind() != reflect.Bool {
		return spec, fmt.Errorf("field %s: %s conditions need a bool field", f.Name, spec.Op)
	}
	return spec, nil
}

// parseColumnTag compiles a result-model field tag:
//
//	column:"Salary,format=%.2f"
//	column:"Internal id,backend"
//	column:"Department,hidden,path=department.name"
//
// The leading token is the label (defaults to the Go field name). Columns
// are displayed unless flagged hidden or backend; required columns are
// always displayed.
func parseColumnTag(f reflect.StructField, tag string) (Column, error) {
	col := Column{
		Label:     f.Name,
		Path:      query.FieldName(f),
		Type:      columnType(f.Type),
		Displayed: true,
	}

	for i, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, value, hasValue := strings.Cut(part, "=")
		if i == 0 && !hasValue {
			if part != "" {
				col.Label = part
			}
			continue
		}
		switch {
		case key == "required" && !hasValue:
			col.Required = true
		case key == "hidden" && !hasValue:
			col.Displayed = false
		case key == "backend" && !hasValue:
			col.Backend = true
			col.Displayed = false
		case key == "display" && !hasValue:
			col.Displayed = true
		case key == "format":
			col.Format = value
		case key == "path":
			col.Path = value
		case part == "":
		default:
			return col, fmt.Errorf("field %s: unknown column option %q", f.Name, part)
		}
	}

	if col.Path == "" || col.Path == "-" {
		return col, fmt.Errorf("field %s: column has no path", f.Name)
	}
	if col.Required {
		col.Displayed = true
		col.Backend = false
	}
	col.Key = col.Path
	return col, nil
}

var timeType = reflect.TypeOf(time.Time{})

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Column types of static columns
const (
	TypeString  = "STRING"
	TypeInteger = "INTEGER"
	TypeDecimal = "DECIMAL"
	TypeBoolean = "BOOLEAN"
	TypeDate    = "DATE"
	TypeObject  = "OBJECT"
)

func columnType(t reflect.Type) string {
	t = indirect(t)
	if t == timeType {
		return TypeDate
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeDecimal
	case reflect.Bool:
		return TypeBoolean
	case reflect.String:
		return TypeString
	}
	return TypeObject
}
