package search

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
)

// DefaultPageSize is used when neither the request nor the settings set one
const DefaultPageSize = 25

// ColumnSource is one extension field backing a dynamic or mixed column
type ColumnSource struct {
	ExtensionID int64  `json:"extension_id"`
	Extension   string `json:"extension"`
	Field       string `json:"field"`
	Type        string `json:"type"`
}

// Column is one column of a query's result table
type Column struct {
	// Key is the column identity: the path of a static column,
	// "ext:<extension>.<field>" for a dynamic one and "mixed:<label>" for a
	// mixed one
	Key       string         `json:"key"`
	Label     string         `json:"label"`
	Path      string         `json:"path,omitempty"`
	Type      string         `json:"type"`
	Format    string         `json:"format,omitempty"`
	Required  bool           `json:"required"`
	Displayed bool           `json:"displayed"`
	Backend   bool           `json:"backend"`
	Extended  bool           `json:"extended"`
	Mixed     bool           `json:"mixed"`
	Sources   []ColumnSource `json:"sources,omitempty"`
}

// Fetched reports whether the column's data must be loaded
func (c Column) Fetched() bool {
	return c.Required || c.Displayed || c.Backend
}

// Visible reports whether the column is shown to the user
func (c Column) Visible() bool {
	return !c.Backend && (c.Required || c.Displayed)
}

func (c Column) clone() Column {
	c.Sources = append([]ColumnSource(nil), c.Sources...)
	return c
}

// Settings is a user's column selection for one query
type Settings struct {
	UserID   string   `json:"user_id"`
	Query    string   `json:"query"`
	Columns  []Column `json:"columns"`
	PageSize int      `json:"page_size"`
}

// Clone returns a deep copy
func (s *Settings) Clone() *Settings {
	c := *s
	c.Columns = make([]Column, len(s.Columns))
	for i, col := range s.Columns {
		c.Columns[i] = col.clone()
	}
	return &c
}

// SettingsResolver computes column sets and reconciles stored user
// settings with the current schema
type SettingsResolver struct {
	registry *Registry
	meta     *extension.MetadataService
	repo     SettingsRepository
	pageSize int
	log      *logrus.Logger

	mu       sync.Mutex
	defaults map[string]*Settings

	// generations is bumped by Invalidate; a computation that started
	// under an older generation does not store its result
	generations map[string]uint64
}

// SettingsOption configures a SettingsResolver
type SettingsOption func(*SettingsResolver)

// WithDefaultPageSize overrides DefaultPageSize
func WithDefaultPageSize(n int) SettingsOption {
	return func(r *SettingsResolver) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// NewSettingsResolver creates a resolver. meta may be nil when no query
// is extension-enabled; repo may be nil when settings are not persisted.
func NewSettingsResolver(registry *Registry, meta *extension.MetadataService, repo SettingsRepository, log *logrus.Logger, opts ...SettingsOption) *SettingsResolver {
	if log == nil {
		log = logrus.New()
	}
	r := &SettingsResolver{
		registry: registry,
		meta:     meta,
		repo:     repo,
		pageSize: DefaultPageSize,
		log:      log,
		defaults: make(map[string]*Settings),

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	if meta != nil {
		meta.OnChange(r.InvalidateEntity)
	}
	return r
}

// ComputeAllColumns lists the static columns of a query followed by one
// column per extension field label. Fields of different extensions that
// share a label collapse into one mixed column.
func (r *SettingsResolver) ComputeAllColumns(ctx context.Context, queryName string) ([]Column, error) {
	desc, err := r.registry.Lookup(queryName)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(desc.Columns))
	for _, c := range desc.Columns {
		columns = append(columns, c.clone())
	}
	if !desc.Extendable() || r.meta == nil {
		return columns, nil
	}

	exts, err := r.meta.ListExtensions(ctx, desc.Entity)
	if err != nil {
		return nil, err
	}

	type group struct {
		label   string
		sources []ColumnSource
	}
	var order []string
	groups := make(map[string]*group)
	for _, ext := range exts {
		fields, err := r.meta.ListFields(ctx, ext.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			label := f.Label()
			g, ok := groups[label]
			if !ok {
				g = &group{label: label}
				groups[label] = g
				order = append(order, label)
			}
			g.sources = append(g.sources, ColumnSource{
				ExtensionID: ext.ID,
				Extension:   ext.Key(),
				Field:       f.Name,
				Type:        string(f.Type),
			})
		}
	}

	for _, label := range order {
		g := groups[label]
		col := Column{
			Label:     label,
			Displayed: true,
			Extended:  true,
			Sources:   g.sources,
			Type:      g.sources[0].Type,
		}
		if len(g.sources) == 1 {
			col.Key = "ext:" + g.sources[0].Extension + "." + g.sources[0].Field
		} else {
			col.Key = "mixed:" + label
			col.Mixed = true
			for _, s := range g.sources[1:] {
				if s.Type != col.Type {
					col.Type = TypeString
				}
			}
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// DefaultSettings returns the settings of a user without stored settings.
// The result is memoized until the query's metadata changes.
func (r *SettingsResolver) DefaultSettings(ctx context.Context, queryName string) (*Settings, error) {
	r.mu.Lock()
	cached, ok := r.defaults[queryName]
	gen := r.generations[queryName]
	r.mu.Unlock()
	if ok {
		return cached.Clone(), nil
	}

	columns, err := r.ComputeAllColumns(ctx, queryName)
	if err != nil {
		return nil, err
	}
	settings := &Settings{
		Query:    queryName,
		Columns:  columns,
		PageSize: r.pageSize,
	}

	r.mu.Lock()
	if r.generations[queryName] == gen {
		r.defaults[queryName] = settings
	}
	r.mu.Unlock()
	return settings.Clone(), nil
}

// Invalidate drops the memoized defaults of a query
func (r *SettingsResolver) Invalidate(queryName string) {
	r.mu.Lock()
	r.generations[queryName]++
	delete(r.defaults, queryName)
	r.mu.Unlock()
}

// InvalidateEntity drops the memoized defaults of every query over an
// entity type. It is registered as a metadata change listener.
func (r *SettingsResolver) InvalidateEntity(ctx context.Context, entity string) {
	for _, name := range r.registry.QueriesFor(entity) {
		r.Invalidate(name)
	}
}

// Reconcile aligns stored settings with the current column set: stale
// columns are dropped, new columns appended, required columns forced
// displayed. Other columns keep the user's choices and order.
func (r *SettingsResolver) Reconcile(stored *Settings, all []Column) *Settings {
	index := make(map[string]Column, len(all))
	for _, c := range all {
		index[c.Key] = c
	}

	out := &Settings{
		UserID:   stored.UserID,
		Query:    stored.Query,
		PageSize: stored.PageSize,
		Columns:  make([]Column, 0, len(all)),
	}
	if out.PageSize <= 0 {
		out.PageSize = r.pageSize
	}

	seen := make(map[string]bool, len(stored.Columns))
	for _, c := range stored.Columns {
		current, ok := index[c.Key]
		if !ok {
			r.log.WithFields(logrus.Fields{
				"user_id": stored.UserID,
				"query":   stored.Query,
				"column":  c.Key,
			}).Warn("dropping stale column from search settings")
			continue
		}
		if seen[c.Key] {
			continue
		}
		seen[c.Key] = true

		merged := current.clone()
		merged.Displayed = c.Displayed
		if c.Format != "" {
			merged.Format = c.Format
		}
		if merged.Required {
			merged.Displayed = true
		}
		out.Columns = append(out.Columns, merged)
	}

	for _, c := range all {
		if !seen[c.Key] {
			out.Columns = append(out.Columns, c.clone())
		}
	}
	return out
}

// UserSettings returns a user's reconciled settings, or the defaults when
// the user has none
func (r *SettingsResolver) UserSettings(ctx context.Context, userID, queryName string) (*Settings, error) {
	defaults, err := r.DefaultSettings(ctx, queryName)
	if err != nil {
		return nil, err
	}
	defaults.UserID = userID
	if userID == "" || r.repo == nil {
		return defaults, nil
	}

	stored, err := r.repo.LoadSettings(ctx, userID, queryName)
	if apperrors.IsNotFound(err) {
		return defaults, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("search.UserSettings", err)
	}
	return r.Reconcile(stored, defaults.Columns), nil
}

// SaveUserSettings validates and stores a user's settings. Unknown columns
// are rejected; required columns are forced back in.
func (r *SettingsResolver) SaveUserSettings(ctx context.Context, settings *Settings) (*Settings, error) {
	const op = "search.SaveUserSettings"
	if settings.UserID == "" {
		return nil, apperrors.InvalidArgument(op, "user id is required")
	}
	if r.repo == nil {
		return nil, apperrors.Configuration(op, "settings are not persisted")
	}
	if settings.PageSize < 0 {
		return nil, apperrors.InvalidArgument(op, "page size must not be negative")
	}

	defaults, err := r.DefaultSettings(ctx, settings.Query)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(defaults.Columns))
	for _, c := range defaults.Columns {
		known[c.Key] = true
	}
	for _, c := range settings.Columns {
		if !known[c.Key] {
			return nil, apperrors.InvalidArgument(op, "unknown column %q for query %q", c.Key, settings.Query)
		}
	}

	reconciled := r.Reconcile(settings, defaults.Columns)
	if err := r.repo.SaveSettings(ctx, reconciled); err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	return reconciled, nil
}
