package search

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/query"
)

// BuildPredicate turns a populated query model into a filter tree. Blank
// fields are skipped; fields tagged ctx= read their value from the request
// attributes instead of the model. Top-level conditions are AND-ed.
func BuildPredicate(ctx context.Context, desc *QueryDescriptor, params interface{}) (query.Predicate, error) {
	model, err := desc.CheckParams(params)
	if err != nil {
		return nil, err
	}

	var preds []query.Predicate
	for _, cond := range desc.Conditions {
		var value interface{}
		if cond.ContextPath != "" {
			v, ok := contextkeys.LookupAttribute(ctx, cond.ContextPath)
			if !ok {
				continue
			}
			value = v
		} else {
			if !model.IsValid() {
				continue
			}
			value = model.FieldByIndex(cond.Index).Interface()
		}

		value, ok := normalize(value)
		if !ok {
			continue
		}
		if cond.Op.Unary() {
			if b, isBool := value.(bool); !isBool || !b {
				continue
			}
			value = nil
		}

		conds := []query.Predicate{makeCondition(cond.Path, cond.Op, value, cond.IgnoreCase)}
		for _, s := range cond.Siblings {
			conds = append(conds, makeCondition(s.Path, s.Op, value, cond.IgnoreCase))
		}
		if cond.Join == query.Or {
			preds = append(preds, query.Any(conds...))
		} else {
			preds = append(preds, query.All(conds...))
		}
	}
	return query.All(preds...), nil
}

// CheckParams returns the dereferenced query model, or InvalidArgument when
// params is not the registered query model type. nil params and nil
// pointers yield an invalid Value and no error.
func (d *QueryDescriptor) CheckParams(params interface{}) (reflect.Value, error) {
	if params == nil {
		return reflect.Value{}, nil
	}
	model := reflect.ValueOf(params)
	for model.Kind() == reflect.Ptr {
		if model.IsNil() {
			return reflect.Value{}, nil
		}
		model = model.Elem()
	}
	if model.Type() != d.QueryType {
		return reflect.Value{}, apperrors.InvalidArgument("search.CheckParams",
			"query %q expects %s, got %T", d.Name, d.QueryType, params)
	}
	return model, nil
}

func makeCondition(path string, op query.Operator, value interface{}, ignoreCase bool) query.Condition {
	if s, ok := value.(string); ok {
		value = query.Pattern(s, op)
	}
	return query.Condition{Path: path, Op: op, Value: value, IgnoreCase: ignoreCase}
}

// normalize dereferences pointers and reports whether the value is set.
// Nil pointers, blank strings and empty slices are unset. Zero values of
// non-pointer fields are unset too; a pointer to a zero value is set, so
// filtering on 0 or false needs a pointer field.
func normalize(v interface{}) (interface{}, bool) {
	rv := reflect.ValueOf(v)
	viaPointer := false
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil, false
		}
		if rv.Kind() == reflect.Ptr {
			viaPointer = true
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if s == "" {
			return nil, false
		}
		return s, true
	case reflect.Slice, reflect.Array, reflect.Map:
		if rv.Len() == 0 {
			return nil, false
		}
		if rv.Kind() == reflect.Map {
			return rv.Interface(), true
		}
		items := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i)
			for item.Kind() == reflect.Ptr || item.Kind() == reflect.Interface {
				if item.IsNil() {
					break
				}
				item = item.Elem()
			}
			if (item.Kind() == reflect.Ptr || item.Kind() == reflect.Interface) && item.IsNil() {
				continue
			}
			items = append(items, item.Interface())
		}
		if len(items) == 0 {
			return nil, false
		}
		return items, true
	}

	if t, ok := rv.Interface().(time.Time); ok && t.IsZero() {
		return nil, false
	}
	if !viaPointer && rv.IsZero() {
		return nil, false
	}
	return rv.Interface(), true
}
