package query

import "strings"

const (
	// Wildcard is the user-facing "any sequence" token
	Wildcard = "*"
	// StorageWildcard is the pattern token understood by the storage layer
	StorageWildcard = "%"
)

// TranslateWildcards replaces user wildcards with storage wildcards
func TranslateWildcards(s string) string {
	return strings.ReplaceAll(s, Wildcard, StorageWildcard)
}

// Pattern prepares a string value for op. Wildcards are translated and,
// for partial-match operators, a value without any wildcard is wrapped so
// that it matches anywhere.
func Pattern(s string, op Operator) string {
	s = TranslateWildcards(s)
	if op.IsPartialMatch() && !strings.Contains(s, StorageWildcard) {
		s = StorageWildcard + s + StorageWildcard
	}
	return s
}

// MatchLike evaluates a LIKE pattern where % matches any sequence and _
// matches a single character.
func MatchLike(value, pattern string, ignoreCase bool) bool {
	if ignoreCase {
		value = strings.ToLower(value)
		pattern = strings.ToLower(pattern)
	}
	v := []rune(value)
	p := []rune(pattern)

	// greedy scan, backtracking to the most recent %
	vi, pi := 0, 0
	star, mark := -1, 0
	for vi < len(v) {
		switch {
		case pi < len(p) && (p[pi] == '_' || p[pi] == v[vi]) && p[pi] != '%':
			vi++
			pi++
		case pi < len(p) && p[pi] == '%':
			star = pi
			mark = vi
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			vi = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}
