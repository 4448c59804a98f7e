package query

import (
	"fmt"
	"strings"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order sorts results by a field
type Order struct {
	Field string    `json:"field"`
	Dir   Direction `json:"dir"`
}

// ParseOrder parses "field" or "field DESC"
func ParseOrder(s string) (Order, error) {
	parts := strings.Fields(s)
	switch len(parts) {
	case 1:
		return Order{Field: parts[0], Dir: Asc}, nil
	case 2:
		dir := Direction(strings.ToUpper(parts[1]))
		if dir != Asc && dir != Desc {
			return Order{}, fmt.Errorf("invalid sort direction %q", parts[1])
		}
		return Order{Field: parts[0], Dir: dir}, nil
	}
	return Order{}, fmt.Errorf("invalid order %q", s)
}

// Page is an offset/limit window. A non-positive Limit means unbounded.
type Page struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Unbounded reports whether the page fetches all rows
func (p Page) Unbounded() bool {
	return p.Limit <= 0
}

// Window returns the [start, end) slice bounds of the page over n rows
func (p Page) Window(n int) (int, int) {
	start := p.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if p.Unbounded() {
		return start, n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
