package search

import (
	"context"
	"reflect"

	"github.com/platinummonkey/adminkit/pkg/query"
)

// ExtendedField names an extension field to load into result rows
type ExtendedField struct {
	ExtensionID int64
	Name        string
}

// ExecRequest is the fully prepared query handed to an Executor
type ExecRequest struct {
	Query      string
	Entity     string
	ResultType reflect.Type // struct type of result rows

	Predicate query.Predicate
	Page      query.Page
	OrderBy   []query.Order

	// ExtensionIDs are the extensions whose fields "ext." condition paths
	// refer to. ActiveExtensionID, when non-zero, takes precedence.
	ExtensionIDs      []int64
	ActiveExtensionID int64

	// ExtendedFields are loaded into rows implementing ExtendableRecord
	ExtendedFields []ExtendedField

	// ExcludedFields are static columns no caller will display. The space
	// column is never excluded.
	ExcludedFields []string
}

// ExecResult holds one page of rows and the unpaged total
type ExecResult struct {
	Rows  []interface{}
	Total int64
}

// Executor runs a prepared query against the persistence layer. Rows are
// pointers to new values of ExecRequest.ResultType.
type Executor interface {
	Execute(ctx context.Context, req *ExecRequest) (*ExecResult, error)
}

// SettingsRepository persists per-user search settings. LoadSettings
// returns an apperrors.ErrNotFound error when the user has none.
type SettingsRepository interface {
	LoadSettings(ctx context.Context, userID, queryName string) (*Settings, error)
	SaveSettings(ctx context.Context, settings *Settings) error
}

// Authorization methods
const (
	MethodSearch = "search"
	MethodTable  = "table"
	MethodExport = "export"
)

// AuthRequest describes a search the caller wants to run
type AuthRequest struct {
	Entity string
	Query  string
	Method string
	UserID string
	Space  string
	Params interface{}
}

// Authorizer decides whether a search may run
type Authorizer interface {
	IsAuthorized(ctx context.Context, req AuthRequest) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer
type AuthorizerFunc func(ctx context.Context, req AuthRequest) (bool, error)

// IsAuthorized calls f(ctx, req)
func (f AuthorizerFunc) IsAuthorized(ctx context.Context, req AuthRequest) (bool, error) {
	return f(ctx, req)
}

// SpaceResolver returns the caller's tenant partition; "" means unpartitioned
type SpaceResolver interface {
	CurrentSpace(ctx context.Context) string
}

// SpaceResolverFunc adapts a function to SpaceResolver
type SpaceResolverFunc func(ctx context.Context) string

// CurrentSpace calls f(ctx)
func (f SpaceResolverFunc) CurrentSpace(ctx context.Context) string {
	return f(ctx)
}

// QueryCustomizer may rewrite the query model before the predicate is built
type QueryCustomizer interface {
	CustomizeQuery(ctx context.Context, queryName string, params interface{}) error
}

// ResultCustomizer may rewrite the rows of a page after execution
type ResultCustomizer interface {
	CustomizeResults(ctx context.Context, queryName string, rows []interface{}) ([]interface{}, error)
}
