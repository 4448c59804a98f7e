package query

import (
	"fmt"
	"strings"
)

// Operator is a comparison applied by a Condition
type Operator string

const (
	OpEQ      Operator = "EQ"
	OpNE      Operator = "NE"
	OpLike    Operator = "LIKE"
	OpGT      Operator = "GT"
	OpGE      Operator = "GE"
	OpLT      Operator = "LT"
	OpLE      Operator = "LE"
	OpIn      Operator = "IN"
	OpIsNull  Operator = "ISNULL"
	OpNotNull Operator = "NOTNULL"
)

var operators = map[string]Operator{
	"EQ":      OpEQ,
	"=":       OpEQ,
	"NE":      OpNE,
	"!=":      OpNE,
	"LIKE":    OpLike,
	"GT":      OpGT,
	">":       OpGT,
	"GE":      OpGE,
	">=":      OpGE,
	"LT":      OpLT,
	"<":       OpLT,
	"LE":      OpLE,
	"<=":      OpLE,
	"IN":      OpIn,
	"ISNULL":  OpIsNull,
	"NOTNULL": OpNotNull,
}

// ParseOperator parses an operator name case-insensitively
func ParseOperator(s string) (Operator, error) {
	op, ok := operators[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

// IsPartialMatch reports whether the operator compares against a pattern
func (o Operator) IsPartialMatch() bool {
	return o == OpLike
}

// Unary reports whether the operator takes no value
func (o Operator) Unary() bool {
	return o == OpIsNull || o == OpNotNull
}

// Join combines the items of a Group
type Join string

const (
	And Join = "AND"
	Or  Join = "OR"
)

// ParseJoin parses "and"/"or"; empty defaults to And
func ParseJoin(s string) (Join, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AND":
		return And, nil
	case "OR":
		return Or, nil
	}
	return "", fmt.Errorf("unknown group join %q", s)
}

// Predicate is a node of a filter tree: a Condition or a Group
type Predicate interface {
	predicate()
}

// Condition compares the value at Path with Value.
//
// Paths name a column of the result entity ("name", "department.name") or an
// extended field, prefixed with ExtendedPrefix ("ext.field1").
type Condition struct {
	Path       string
	Op         Operator
	Value      interface{}
	IgnoreCase bool
}

// Group joins child predicates with AND or OR
type Group struct {
	Join  Join
	Items []Predicate
}

func (Condition) predicate() {}
func (Group) predicate()     {}

// ExtendedPrefix marks a Condition path as an extended (EAV) field
const ExtendedPrefix = "ext."

// ExtendedField returns the field name of an extended path
func ExtendedField(path string) (string, bool) {
	if strings.HasPrefix(path, ExtendedPrefix) {
		return strings.TrimPrefix(path, ExtendedPrefix), true
	}
	return "", false
}

// All joins predicates with AND, dropping nils. It returns nil for no
// predicates and the predicate itself for exactly one.
func All(items ...Predicate) Predicate {
	return join(And, items)
}

// Any joins predicates with OR, dropping nils
func Any(items ...Predicate) Predicate {
	return join(Or, items)
}

func join(j Join, items []Predicate) Predicate {
	kept := make([]Predicate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if g, ok := item.(Group); ok && g.Join == j {
			kept = append(kept, g.Items...)
			continue
		}
		kept = append(kept, item)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Group{Join: j, Items: kept}
}

// Eq builds an equality condition
func Eq(path string, value interface{}) Condition {
	return Condition{Path: path, Op: OpEQ, Value: value}
}

// Walk visits every Condition in p depth-first
func Walk(p Predicate, fn func(Condition)) {
	switch n := p.(type) {
	case Condition:
		fn(n)
	case Group:
		for _, item := range n.Items {
			Walk(item, fn)
		}
	}
}

// String renders a predicate for logs
func String(p Predicate) string {
	switch n := p.(type) {
	case nil:
		return "TRUE"
	case Condition:
		if n.Op.Unary() {
			return fmt.Sprintf("%s %s", n.Path, n.Op)
		}
		return fmt.Sprintf("%s %s %v", n.Path, n.Op, n.Value)
	case Group:
		parts := make([]string, 0, len(n.Items))
		for _, item := range n.Items {
			parts = append(parts, String(item))
		}
		return "(" + strings.Join(parts, " "+string(n.Join)+" ") + ")"
	}
	return "?"
}
