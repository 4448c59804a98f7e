package storage

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/platinummonkey/adminkit/pkg/query"
)

// IDColumn is the primary key column of every entity table
const IDColumn = "id"

// Column is one named value of a record
type Column struct {
	Name  string
	Value interface{}
}

func structValue(record interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("record must be a non-nil pointer to a struct, got %T", record)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("record must be a non-nil pointer to a struct, got %T", record)
	}
	return rv, nil
}

// RecordColumns lists the db-tagged columns of a record in declaration
// order. The id column is excluded; fields tagged db:"-" and fields without
// a db tag are skipped.
func RecordColumns(record interface{}) ([]Column, error) {
	rv, err := structValue(record)
	if err != nil {
		return nil, err
	}
	t := rv.Type()
	var cols []Column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if _, ok := f.Tag.Lookup("db"); !ok {
			continue
		}
		name := query.FieldName(f)
		if name == "-" || name == IDColumn {
			continue
		}
		cols = append(cols, Column{Name: name, Value: rv.Field(i).Interface()})
	}
	return cols, nil
}

// RecordID returns the value of the record's id column, 0 when absent
func RecordID(record interface{}) int64 {
	v, ok := query.Lookup(record, IDColumn)
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}

// SetRecordID stores id in the record's id column when it has one
func SetRecordID(record interface{}, id int64) {
	_ = AssignColumns(record, map[string]interface{}{IDColumn: id})
}

// AssignColumns copies row values into the record fields with matching
// storage names. Driver representations are converted: []byte to string,
// integers to bool, strings to time, and numeric widths to the field type.
func AssignColumns(record interface{}, row map[string]interface{}) error {
	rv, err := structValue(record)
	if err != nil {
		return err
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := query.FieldName(f)
		if name == "-" {
			continue
		}
		v, ok := row[name]
		if !ok {
			continue
		}
		if err := assign(rv.Field(i), v); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

func assign(dst reflect.Value, v interface{}) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(v)
	for src.Kind() == reflect.Ptr {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		src = src.Elem()
	}

	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src.Interface()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if b, ok := src.Interface().([]byte); ok && dst.Kind() != reflect.Slice {
		src = reflect.ValueOf(string(b))
	}

	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
		return nil
	case dst.Type() == timeType && src.Kind() == reflect.String:
		ts, err := parseTime(src.String())
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(ts))
		return nil
	case dst.Kind() == reflect.Bool && isInteger(src.Kind()):
		dst.SetBool(src.Convert(reflect.TypeOf(int64(0))).Int() != 0)
		return nil
	case dst.Kind() == reflect.String && src.Kind() == reflect.String:
		dst.SetString(src.String())
		return nil
	case isNumber(dst.Kind()) && src.Kind() == reflect.String:
		f, err := strconv.ParseFloat(src.String(), 64)
		if err != nil {
			return err
		}
		src = reflect.ValueOf(f)
	}

	if isNumber(dst.Kind()) && isNumber(src.Kind()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}
