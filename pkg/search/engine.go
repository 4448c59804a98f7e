package search

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/query"
)

var searchTracer = otel.Tracer("adminkit/search/engine")

// DefaultMaxPageSize caps the page size a request may ask for
const DefaultMaxPageSize = 1000

// SearchRequest is one search invocation
type SearchRequest struct {
	Query string
	// Params is the populated query model (pointer or value); nil searches
	// without filters
	Params   interface{}
	Page     int
	PageSize int
	FetchAll bool
	OrderBy  []query.Order
}

// SearchResult is one page of model rows
type SearchResult struct {
	Query    string
	Rows     []interface{}
	Total    int64
	Page     int
	PageSize int
	Settings *Settings
}

// Engine runs named queries: resolve, authorize, customize, build the
// predicate, isolate the tenant, apply settings, execute, post-process and
// optionally format.
type Engine struct {
	registry    *Registry
	settings    *SettingsResolver
	meta        *extension.MetadataService
	executor    Executor
	authorizer  Authorizer
	spaces      SpaceResolver
	customizer  QueryCustomizer
	metrics     *observability.Metrics
	maxPageSize int
	log         *logrus.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithAuthorizer sets the authorization collaborator. Without one every
// search is allowed.
func WithAuthorizer(a Authorizer) EngineOption {
	return func(e *Engine) { e.authorizer = a }
}

// WithSpaceResolver overrides the context-based tenant resolver
func WithSpaceResolver(s SpaceResolver) EngineOption {
	return func(e *Engine) { e.spaces = s }
}

// WithQueryCustomizer sets a customizer applied to every query model
func WithQueryCustomizer(c QueryCustomizer) EngineOption {
	return func(e *Engine) { e.customizer = c }
}

// WithMetadata enables active-extension resolution for extended queries
func WithMetadata(meta *extension.MetadataService) EngineOption {
	return func(e *Engine) { e.meta = meta }
}

// WithMetrics records search executions in Prometheus
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxPageSize overrides DefaultMaxPageSize
func WithMaxPageSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxPageSize = n
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(log *logrus.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates a search engine
func NewEngine(registry *Registry, settings *SettingsResolver, executor Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:    registry,
		settings:    settings,
		executor:    executor,
		spaces:      SpaceResolverFunc(contextkeys.GetSpace),
		maxPageSize: DefaultMaxPageSize,
		log:         logrus.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the query registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Settings returns the settings resolver
func (e *Engine) Settings() *SettingsResolver {
	return e.settings
}

// run is one pass through the pipeline, shared by Search and SearchFormatted
type run struct {
	desc     *QueryDescriptor
	settings *Settings
	active   *extension.Extension
	result   *SearchResult
}

// Search executes a named query and returns model rows
func (e *Engine) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	r, err := e.execute(ctx, req, MethodSearch)
	if err != nil {
		return nil, err
	}
	return r.result, nil
}

// SearchFormatted executes a named query and renders the page as display
// strings according to the caller's settings
func (e *Engine) SearchFormatted(ctx context.Context, req *SearchRequest) (*Table, error) {
	return e.table(ctx, req, MethodTable)
}

// Export renders every matching row, ignoring paging
func (e *Engine) Export(ctx context.Context, req *SearchRequest) (*Table, error) {
	all := *req
	all.FetchAll = true
	return e.table(ctx, &all, MethodExport)
}

func (e *Engine) table(ctx context.Context, req *SearchRequest, method string) (*Table, error) {
	r, err := e.execute(ctx, req, method)
	if err != nil {
		return nil, err
	}

	var activeID int64
	if r.active != nil {
		activeID = r.active.ID
	}
	f := newFormatter(r.settings, activeID, observability.FromContext(ctx, e.log).WithField("query", req.Query))

	table := &Table{
		Query:    req.Query,
		Headers:  f.headers(),
		Rows:     make([][]string, 0, len(r.result.Rows)),
		Total:    r.result.Total,
		Page:     r.result.Page,
		PageSize: r.result.PageSize,
	}
	for _, row := range r.result.Rows {
		table.Rows = append(table.Rows, f.row(row))
	}
	return table, nil
}

func (e *Engine) execute(ctx context.Context, req *SearchRequest, method string) (*run, error) {
	ctx, span := searchTracer.Start(ctx, "Engine.Search",
		trace.WithAttributes(
			attribute.String("search.query", req.Query),
			attribute.String("search.method", method),
			attribute.Int("search.page", req.Page),
			attribute.Int("search.page_size", req.PageSize),
			attribute.Bool("search.fetch_all", req.FetchAll),
		),
	)
	defer span.End()

	start := time.Now()
	r, err := e.pipeline(ctx, req, method)
	status := "success"
	rows := 0
	if err != nil {
		status = statusOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		rows = len(r.result.Rows)
		span.SetAttributes(
			attribute.Int64("search.total", r.result.Total),
			attribute.Int("search.rows", rows),
		)
		span.SetStatus(codes.Ok, "search completed")
	}
	e.metrics.RecordSearch(req.Query, status, time.Since(start), rows)
	return r, err
}

func statusOf(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.ErrNotFound:
		return "not_found"
	case apperrors.ErrUnauthorized:
		return "unauthorized"
	case apperrors.ErrInvalidArgument:
		return "invalid"
	case apperrors.ErrConfiguration:
		return "configuration"
	}
	return "error"
}

func (e *Engine) pipeline(ctx context.Context, req *SearchRequest, method string) (*run, error) {
	const op = "search.Engine"
	log := observability.FromContext(ctx, e.log).WithField("query", req.Query)

	// Resolve
	desc, err := e.registry.Lookup(req.Query)
	if err != nil {
		return nil, err
	}
	if _, err := desc.CheckParams(req.Params); err != nil {
		return nil, err
	}

	// Authorize
	userID := contextkeys.GetUserID(ctx)
	space := e.spaces.CurrentSpace(ctx)
	if e.authorizer != nil {
		ok, err := e.authorizer.IsAuthorized(ctx, AuthRequest{
			Entity: desc.Entity,
			Query:  desc.Name,
			Method: method,
			UserID: userID,
			Space:  space,
			Params: req.Params,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.Unauthorized(op, "user %q may not %s %q", userID, method, desc.Name)
		}
	}

	// Customize the query model
	params := req.Params
	if params == nil {
		params, _ = e.registry.NewParams(desc.Name)
	}
	if e.customizer != nil {
		if err := e.customizer.CustomizeQuery(ctx, desc.Name, params); err != nil {
			return nil, err
		}
	}
	if desc.QueryCustomizer != nil {
		if err := desc.QueryCustomizer.CustomizeQuery(ctx, desc.Name, params); err != nil {
			return nil, err
		}
	}

	// Build the predicate
	pred, err := BuildPredicate(ctx, desc, params)
	if err != nil {
		return nil, err
	}

	// Tenant isolation
	if space != "" {
		pred = query.All(pred, query.Eq(desc.SpaceField, space))
	}

	// Apply settings
	settings, err := e.settings.UserSettings(ctx, userID, desc.Name)
	if err != nil {
		return nil, err
	}
	if req.Page < 0 || req.PageSize < 0 {
		return nil, apperrors.InvalidArgument(op, "page and page size must not be negative")
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = settings.PageSize
	}
	if pageSize > e.maxPageSize {
		pageSize = e.maxPageSize
	}
	if pageSize > 0 && req.Page > math.MaxInt/pageSize {
		return nil, apperrors.InvalidArgument(op, "page %d is out of range", req.Page)
	}
	page := query.Page{Offset: req.Page * pageSize, Limit: pageSize}
	if req.FetchAll {
		page = query.Page{}
	}

	order := req.OrderBy
	if len(order) == 0 {
		order = desc.OrderBy
	}
	if len(order) == 0 {
		order = []query.Order{{Field: "id", Dir: query.Asc}}
	}

	exec := &ExecRequest{
		Query:      desc.Name,
		Entity:     desc.Entity,
		ResultType: desc.ResultType,
		Predicate:  pred,
		Page:       page,
		OrderBy:    order,
	}
	for _, c := range settings.Columns {
		if c.Extended {
			if c.Fetched() {
				for _, s := range c.Sources {
					exec.ExtendedFields = append(exec.ExtendedFields, ExtendedField{ExtensionID: s.ExtensionID, Name: s.Field})
				}
			}
		} else if !c.Fetched() && c.Path != desc.SpaceField {
			exec.ExcludedFields = append(exec.ExcludedFields, c.Path)
		}
	}

	active, err := e.activeExtension(ctx, desc)
	if err != nil {
		return nil, err
	}
	if active != nil {
		exec.ActiveExtensionID = active.ID
		exec.ExtensionIDs = []int64{active.ID}
	} else {
		exec.ExtensionIDs = extensionIDs(settings)
	}

	log.WithFields(logrus.Fields{
		"predicate": query.String(pred),
		"offset":    page.Offset,
		"limit":     page.Limit,
	}).Debug("executing search")

	// Execute
	executor := desc.Executor
	if executor == nil {
		executor = e.executor
	}
	if executor == nil {
		return nil, apperrors.Configuration(op, "no executor for query %q", desc.Name)
	}
	result, err := executor.Execute(ctx, exec)
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}

	// Customize results
	rows := result.Rows
	if desc.Customizer != nil {
		rows, err = desc.Customizer.CustomizeResults(ctx, desc.Name, rows)
		if err != nil {
			return nil, err
		}
	}

	if req.FetchAll {
		pageSize = 0
	}
	return &run{
		desc:     desc,
		settings: settings,
		active:   active,
		result: &SearchResult{
			Query:    desc.Name,
			Rows:     rows,
			Total:    result.Total,
			Page:     req.Page,
			PageSize: pageSize,
			Settings: settings,
		},
	}, nil
}

// activeExtension returns the caller's extension for an extension-enabled
// query, or nil when there is none
func (e *Engine) activeExtension(ctx context.Context, desc *QueryDescriptor) (*extension.Extension, error) {
	if !desc.Extendable() || e.meta == nil {
		return nil, nil
	}
	ext, err := e.meta.ResolveExtension(ctx, desc.PointName, false)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	return ext, err
}

func extensionIDs(settings *Settings) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, c := range settings.Columns {
		for _, s := range c.Sources {
			if !seen[s.ExtensionID] {
				seen[s.ExtensionID] = true
				ids = append(ids, s.ExtensionID)
			}
		}
	}
	return ids
}
