package search

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/query"
)

// DefaultDecimalFormat renders DECIMAL values without a column format
const DefaultDecimalFormat = "%.2f"

// Header describes one column of a formatted table
type Header struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
	Type    string `json:"type"`
}

// Table is a page of results rendered as display strings
type Table struct {
	Query    string     `json:"query"`
	Headers  []Header   `json:"headers"`
	Rows     [][]string `json:"rows"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// formatter renders rows for the columns of one settings snapshot
type formatter struct {
	columns  []Column
	activeID int64
	log      *logrus.Entry
	warned   map[string]bool
}

func newFormatter(settings *Settings, activeID int64, log *logrus.Entry) *formatter {
	cols := make([]Column, 0, len(settings.Columns))
	for _, c := range settings.Columns {
		if !c.Backend {
			cols = append(cols, c)
		}
	}
	return &formatter{columns: cols, activeID: activeID, log: log, warned: make(map[string]bool)}
}

func (f *formatter) headers() []Header {
	headers := make([]Header, len(f.columns))
	for i, c := range f.columns {
		headers[i] = Header{Key: c.Key, Label: c.Label, Visible: c.Visible(), Type: c.Type}
	}
	return headers
}

func (f *formatter) row(row interface{}) []string {
	out := make([]string, len(f.columns))
	var extended map[string]string
	if rec, ok := row.(extension.ExtendableRecord); ok {
		extended = rec.GetExtendedFields()
	}

	for i, c := range f.columns {
		if !c.Fetched() {
			continue
		}
		if !c.Extended {
			v, _ := query.Lookup(row, c.Path)
			out[i] = FormatValue(v, c.Format)
			continue
		}
		src, ok := f.source(c)
		if !ok {
			continue
		}
		out[i] = FormatExtended(extended[src.Field], extension.FieldType(src.Type), c.Format)
	}
	return out
}

// source picks the extension field feeding a column: the active
// extension's source for mixed columns, falling back to the first source.
func (f *formatter) source(c Column) (ColumnSource, bool) {
	if len(c.Sources) == 0 {
		return ColumnSource{}, false
	}
	if !c.Mixed {
		return c.Sources[0], true
	}
	for _, s := range c.Sources {
		if s.ExtensionID == f.activeID {
			return s, true
		}
	}
	if !f.warned[c.Key] {
		f.warned[c.Key] = true
		f.log.WithFields(logrus.Fields{
			"column":              c.Key,
			"active_extension_id": f.activeID,
			"fallback_extension":  c.Sources[0].Extension,
		}).Warn("no active extension for mixed column, using first source")
	}
	return c.Sources[0], true
}

// FormatValue renders a static column value. Times use the column format
// as a layout (default 2006-01-02); floats use it as a printf verb
// (default %.2f); structs, maps and slices render as JSON.
func FormatValue(v interface{}, format string) string {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return ""
	}
	v = rv.Interface()

	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		if format == "" {
			format = extension.DateLayout
		}
		return t.Format(format)
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	}

	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		if format == "" {
			format = DefaultDecimalFormat
		}
		return fmt.Sprintf(format, rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if format != "" {
			return fmt.Sprintf(format, rv.Int())
		}
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if format != "" {
			return fmt.Sprintf(format, rv.Uint())
		}
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}

// FormatExtended renders a stored extension value. Values that do not parse
// as their declared type are shown as stored.
func FormatExtended(raw string, t extension.FieldType, format string) string {
	if raw == "" {
		return ""
	}
	switch t {
	case extension.FieldTypeDate:
		if format == "" {
			return raw
		}
		if d, err := extension.ParseDate(raw); err == nil {
			return d.Format(format)
		}
	case extension.FieldTypeDecimal:
		if d, err := extension.ParseDecimal(raw); err == nil {
			if format == "" {
				format = DefaultDecimalFormat
			}
			return fmt.Sprintf(format, d)
		}
	case extension.FieldTypeBoolean:
		if b, err := extension.ParseBoolean(raw); err == nil {
			return strconv.FormatBool(b)
		}
	case extension.FieldTypeMultiLineString:
		return strings.ReplaceAll(raw, "\r\n", "\n")
	}
	return raw
}
