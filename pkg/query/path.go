package query

import (
	"reflect"
	"strings"
	"sync"
)

// FieldName returns the storage name of a struct field: the db tag, then
// the json tag, then the lower-cased field name. "-" means the field is
// not addressable by path.
func FieldName(f reflect.StructField) string {
	for _, key := range []string{"db", "json"} {
		if tag, ok := f.Tag.Lookup(key); ok {
			name := strings.Split(tag, ",")[0]
			if name == "-" {
				return "-"
			}
			if name != "" {
				return name
			}
		}
	}
	return strings.ToLower(f.Name)
}

var fieldIndexCache sync.Map // map[reflect.Type]map[string][]int

func fieldIndex(t reflect.Type) map[string][]int {
	if cached, ok := fieldIndexCache.Load(t); ok {
		return cached.(map[string][]int)
	}
	index := make(map[string][]int)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := FieldName(f)
		if name == "-" {
			continue
		}
		index[name] = f.Index
		index[strings.ToLower(f.Name)] = f.Index
	}
	fieldIndexCache.Store(t, index)
	return index
}

// Lookup resolves a dotted path against a struct (or pointer to struct).
// Each segment matches a field by FieldName or case-insensitively by Go
// name. Nil pointers along the path yield (nil, true).
func Lookup(v interface{}, path string) (interface{}, bool) {
	rv := reflect.ValueOf(v)
	for _, segment := range strings.Split(path, ".") {
		for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
			if rv.IsNil() {
				return nil, true
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Struct:
			idx, ok := fieldIndex(rv.Type())[segment]
			if !ok {
				idx, ok = fieldIndex(rv.Type())[strings.ToLower(segment)]
			}
			if !ok {
				return nil, false
			}
			rv = rv.FieldByIndex(idx)
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			mv := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
			if !mv.IsValid() {
				return nil, false
			}
			rv = mv
		default:
			return nil, false
		}
	}
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}
	return rv.Interface(), true
}

// Columns lists the addressable top-level field names of a struct type in
// declaration order.
func Columns(t reflect.Type) []string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if name := FieldName(f); name != "-" {
			cols = append(cols, name)
		}
	}
	return cols
}
