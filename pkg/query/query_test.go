package query

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type department struct {
	Name string `json:"name"`
}

type person struct {
	ID         int64       `db:"id"`
	Name       string      `db:"name"`
	Salary     float64     `db:"salary"`
	HiredOn    time.Time   `db:"hired_on"`
	Active     bool        `json:"active"`
	Department *department `json:"department"`
	Secret     string      `db:"-"`
}

func TestPattern(t *testing.T) {
	tests := []struct {
		in   string
		op   Operator
		want string
	}{
		{"abc", OpLike, "%abc%"},
		{"ab*", OpLike, "ab%"},
		{"%a%", OpLike, "%a%"},
		{"*a*", OpLike, "%a%"},
		{"ab*", OpEQ, "ab%"},
		{"abc", OpEQ, "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pattern(tt.in, tt.op), "%s %s", tt.in, tt.op)
	}
}

func TestMatchLike(t *testing.T) {
	assert.True(t, MatchLike("abc", "%a%", false))
	assert.True(t, MatchLike("cab", "%a%", false))
	assert.False(t, MatchLike("xyz", "%a%", false))
	assert.True(t, MatchLike("abc", "a_c", false))
	assert.False(t, MatchLike("abbc", "a_c", false))
	assert.True(t, MatchLike("ABC", "abc", true))
	assert.False(t, MatchLike("ABC", "abc", false))
	assert.True(t, MatchLike("mississippi", "%iss%pi", false))
	assert.True(t, MatchLike("", "%", false))
	assert.False(t, MatchLike("", "_", false))
}

func TestParseOperator(t *testing.T) {
	op, err := ParseOperator("like")
	require.NoError(t, err)
	assert.Equal(t, OpLike, op)

	op, err = ParseOperator(">=")
	require.NoError(t, err)
	assert.Equal(t, OpGE, op)

	_, err = ParseOperator("between")
	assert.Error(t, err)
}

func TestAllAndAnyFlatten(t *testing.T) {
	assert.Nil(t, All())
	assert.Nil(t, All(nil, nil))

	c := Eq("name", "abc")
	assert.Equal(t, c, All(nil, c))

	p := All(All(c, Eq("id", 1)), Eq("salary", 2))
	g, ok := p.(Group)
	require.True(t, ok)
	assert.Equal(t, And, g.Join)
	assert.Len(t, g.Items, 3)

	mixed := All(Any(c, Eq("id", 1)), Eq("salary", 2))
	g = mixed.(Group)
	assert.Len(t, g.Items, 2)
	assert.Equal(t, "((name EQ abc OR id EQ 1) AND salary EQ 2)", String(mixed))
}

func TestLookup(t *testing.T) {
	p := &person{ID: 7, Name: "abc", Department: &department{Name: "ops"}}

	v, ok := Lookup(p, "name")
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	v, ok = Lookup(p, "Name")
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	v, ok = Lookup(p, "department.name")
	require.True(t, ok)
	assert.Equal(t, "ops", v)

	_, ok = Lookup(p, "secret")
	assert.False(t, ok, "db:\"-\" hides the field")

	_, ok = Lookup(p, "missing")
	assert.False(t, ok)

	v, ok = Lookup(&person{}, "department.name")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "salary", "hired_on", "active", "department"}, Columns(reflect.TypeOf(person{})))
}

func TestMatch(t *testing.T) {
	hired := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	p := &person{ID: 3, Name: "Dana", Salary: 300, HiredOn: hired, Active: true}
	getter := GetterFunc(func(path string) (interface{}, bool) {
		if name, ok := ExtendedField(path); ok {
			if name == "level" {
				return "5", true
			}
			return nil, false
		}
		return Lookup(p, path)
	})

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"nil matches", nil, true},
		{"eq", Eq("id", 3), true},
		{"eq string number", Eq("id", "3"), true},
		{"ne", Condition{Path: "name", Op: OpNE, Value: "Dana"}, false},
		{"like case sensitive", Condition{Path: "name", Op: OpLike, Value: "%an%"}, true},
		{"like miss", Condition{Path: "name", Op: OpLike, Value: "da%"}, false},
		{"like ignore case", Condition{Path: "name", Op: OpLike, Value: "da%", IgnoreCase: true}, true},
		{"eq ignore case", Condition{Path: "name", Op: OpEQ, Value: "dana", IgnoreCase: true}, true},
		{"ge", Condition{Path: "salary", Op: OpGE, Value: 300.0}, true},
		{"gt", Condition{Path: "salary", Op: OpGT, Value: 300}, false},
		{"lt date", Condition{Path: "hired_on", Op: OpLT, Value: "2021-01-01"}, true},
		{"in", Condition{Path: "id", Op: OpIn, Value: []int{1, 3}}, true},
		{"in miss", Condition{Path: "id", Op: OpIn, Value: []int{1, 2}}, false},
		{"bool", Eq("active", true), true},
		{"is null nested", Condition{Path: "department", Op: OpIsNull}, true},
		{"not null", Condition{Path: "name", Op: OpNotNull}, true},
		{"extended numeric", Condition{Path: "ext.level", Op: OpGE, Value: "4"}, true},
		{"extended missing is null", Condition{Path: "ext.other", Op: OpIsNull}, true},
		{"extended missing eq", Eq("ext.other", "x"), false},
		{"or group", Any(Eq("id", 1), Eq("name", "Dana")), true},
		{"and group", All(Eq("id", 1), Eq("name", "Dana")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.p, getter))
		})
	}
}

func TestPageWindow(t *testing.T) {
	start, end := Page{Offset: 0, Limit: 3}.Window(9)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)

	start, end = Page{Offset: 6, Limit: 5}.Window(9)
	assert.Equal(t, 6, start)
	assert.Equal(t, 9, end)

	start, end = Page{Offset: 20, Limit: 5}.Window(9)
	assert.Equal(t, 9, start)
	assert.Equal(t, 9, end)

	start, end = Page{}.Window(9)
	assert.Equal(t, 0, start)
	assert.Equal(t, 9, end)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("salary desc")
	require.NoError(t, err)
	assert.Equal(t, Order{Field: "salary", Dir: Desc}, o)

	o, err = ParseOrder("id")
	require.NoError(t, err)
	assert.Equal(t, Asc, o.Dir)

	_, err = ParseOrder("id sideways")
	assert.Error(t, err)
}
