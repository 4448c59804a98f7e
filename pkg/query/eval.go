package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Getter resolves a condition path for in-memory evaluation
type Getter interface {
	Get(path string) (interface{}, bool)
}

// GetterFunc adapts a function to Getter
type GetterFunc func(path string) (interface{}, bool)

// Get calls f(path)
func (f GetterFunc) Get(path string) (interface{}, bool) {
	return f(path)
}

// Match evaluates p against g. A nil predicate matches everything.
func Match(p Predicate, g Getter) bool {
	switch n := p.(type) {
	case nil:
		return true
	case Condition:
		return matchCondition(n, g)
	case Group:
		if n.Join == Or {
			for _, item := range n.Items {
				if Match(item, g) {
					return true
				}
			}
			return len(n.Items) == 0
		}
		for _, item := range n.Items {
			if !Match(item, g) {
				return false
			}
		}
		return true
	}
	return false
}

func matchCondition(c Condition, g Getter) bool {
	value, found := g.Get(c.Path)
	if found {
		value = deref(value)
	}
	isNull := !found || value == nil || value == ""

	switch c.Op {
	case OpIsNull:
		return isNull
	case OpNotNull:
		return !isNull
	}
	if !found || value == nil {
		return false
	}

	switch c.Op {
	case OpLike:
		return MatchLike(toString(value), toString(c.Value), c.IgnoreCase)
	case OpIn:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice {
			return equal(value, c.Value, c.IgnoreCase)
		}
		for i := 0; i < rv.Len(); i++ {
			if equal(value, rv.Index(i).Interface(), c.IgnoreCase) {
				return true
			}
		}
		return false
	case OpEQ:
		return equal(value, c.Value, c.IgnoreCase)
	case OpNE:
		return !equal(value, c.Value, c.IgnoreCase)
	}

	cmp, ok := Compare(value, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	}
	return false
}

func equal(a, b interface{}, ignoreCase bool) bool {
	if cmp, ok := Compare(a, b); ok {
		if cmp == 0 {
			return true
		}
		_, aStr := deref(a).(string)
		_, bStr := deref(b).(string)
		if !ignoreCase || !aStr || !bStr {
			return false
		}
	}
	if ignoreCase {
		return strings.EqualFold(toString(a), toString(b))
	}
	return toString(a) == toString(b)
}

// Compare orders two values. Numbers compare numerically (strings are
// parsed when the other side is numeric), times chronologically, and
// everything else by string form. ok is false when the values cannot be
// ordered against each other.
func Compare(a, b interface{}) (int, bool) {
	a, b = deref(a), deref(b)
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return cmpFloat(af, bf), true
		}
	}
	if at, aok := toTime(a); aok {
		if bt, bok := toTime(b); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			}
			return 0, true
		}
	}
	if _, ok := a.(bool); ok {
		if toString(a) == toString(b) {
			return 0, true
		}
		return 0, false
	}
	return strings.Compare(toString(a), toString(b)), true
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func deref(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toString(v interface{}) string {
	switch s := deref(v).(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.Format("2006-01-02")
	default:
		return fmt.Sprint(s)
	}
}
