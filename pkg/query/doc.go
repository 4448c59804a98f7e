// Package query is the storage-neutral filter model used by search.
//
// A filter is a tree of Predicates: Conditions (path, operator, value)
// joined by AND/OR Groups. Storage backends translate the tree into their
// own query language; the in-memory backend evaluates it with Match.
//
// # Wildcards
//
// Users type "*" for "any sequence". Pattern translates it to the storage
// token "%" and wraps LIKE values that carry no wildcard at all:
//
//	query.Pattern("abc", query.OpLike)  // "%abc%"
//	query.Pattern("ab*", query.OpLike)  // "ab%"
//	query.Pattern("ab*", query.OpEQ)    // "ab%"
package query
