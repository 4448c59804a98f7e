package lov

import (
	"context"
	"sort"
	"sync"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
)

// Provider yields the options of one list of values
type Provider interface {
	Options(ctx context.Context) ([]extension.LOVOption, error)
}

// Static is a fixed enumeration
type Static []extension.LOVOption

// Options returns a copy of the enumeration
func (s Static) Options(ctx context.Context) ([]extension.LOVOption, error) {
	return append([]extension.LOVOption(nil), s...), nil
}

// ProviderFunc is a list of values computed at call time
type ProviderFunc func(ctx context.Context) ([]extension.LOVOption, error)

// Options calls f(ctx)
func (f ProviderFunc) Options(ctx context.Context) ([]extension.LOVOption, error) {
	return f(ctx)
}

// Stored serves the options persisted on a LIST_OF_VALUES extension field
func Stored(meta *extension.MetadataService, extensionID, fieldID int64) Provider {
	return ProviderFunc(func(ctx context.Context) ([]extension.LOVOption, error) {
		fields, err := meta.ListFields(ctx, extensionID)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			if f.ID == fieldID {
				return append([]extension.LOVOption(nil), f.Options...), nil
			}
		}
		return nil, apperrors.NotFound("lov.Stored", "field %d not found in extension %d", fieldID, extensionID)
	})
}

// Registry maps list names to providers. Catalog-backed lists can be
// replaced wholesale when the catalog directory changes; lists registered
// in code are kept across reloads.
type Registry struct {
	mu       sync.RWMutex
	dynamic  map[string]Provider
	catalogs map[string]Static
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		dynamic:  make(map[string]Provider),
		catalogs: make(map[string]Static),
	}
}

// Register adds a provider under name
func (r *Registry) Register(name string, p Provider) error {
	const op = "lov.Register"
	if name == "" || p == nil {
		return apperrors.Configuration(op, "list name and provider are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dynamic[name]; exists {
		return apperrors.Configuration(op, "list %q already registered", name)
	}
	if _, exists := r.catalogs[name]; exists {
		return apperrors.Configuration(op, "list %q already loaded from a catalog", name)
	}
	r.dynamic[name] = p
	return nil
}

// ReplaceCatalogs swaps every catalog-backed list
func (r *Registry) ReplaceCatalogs(catalogs map[string]Catalog) {
	next := make(map[string]Static, len(catalogs))
	for name, c := range catalogs {
		next[name] = c.Options()
	}
	r.mu.Lock()
	r.catalogs = next
	r.mu.Unlock()
}

// Options resolves a list by name. Registered providers shadow catalogs.
func (r *Registry) Options(ctx context.Context, name string) ([]extension.LOVOption, error) {
	r.mu.RLock()
	p, ok := r.dynamic[name]
	if !ok {
		if static, found := r.catalogs[name]; found {
			p, ok = static, true
		}
	}
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("lov.Options", "list %q not found", name)
	}
	return p.Options(ctx)
}

// Names lists every known list name
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.dynamic)+len(r.catalogs))
	names := make([]string, 0, len(r.dynamic)+len(r.catalogs))
	for name := range r.dynamic {
		seen[name] = true
		names = append(names, name)
	}
	for name := range r.catalogs {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
