package search

import (
	"reflect"
	"sort"
	"sync"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/query"
)

// DefaultSpaceField is the column carrying the tenant partition
const DefaultSpaceField = "space_id"

// Searchable marks query and result models. SearchEntity names the entity
// type backing the model.
type Searchable interface {
	SearchEntity() string
}

var (
	searchableType = reflect.TypeOf((*Searchable)(nil)).Elem()
	extendableType = reflect.TypeOf((*extension.ExtendableRecord)(nil)).Elem()
)

// QueryDefinition registers a named query
type QueryDefinition struct {
	Name string

	// QueryModel and ResultModel are sample values (struct or pointer) of
	// the query object type and the result row type
	QueryModel  interface{}
	ResultModel interface{}

	// Entity overrides the result model's SearchEntity
	Entity string

	// OrderBy is the default sort when a request carries none
	OrderBy []query.Order

	// SpaceField overrides DefaultSpaceField
	SpaceField string

	QueryCustomizer QueryCustomizer
	Customizer      ResultCustomizer

	// Executor overrides the engine's executor for this query
	Executor Executor
}

// QueryDescriptor is the immutable compiled form of a QueryDefinition
type QueryDescriptor struct {
	Name       string
	Entity     string
	QueryType  reflect.Type
	ResultType reflect.Type
	// PointName is set when the entity is extension-enabled
	PointName  string
	OrderBy    []query.Order
	SpaceField string
	Conditions []ConditionSpec
	Columns    []Column

	QueryCustomizer QueryCustomizer
	Customizer      ResultCustomizer
	Executor        Executor
}

// Extendable reports whether rows carry extended fields
func (d *QueryDescriptor) Extendable() bool {
	return d.PointName != ""
}

// Registry is the boot-time catalog of named queries
type Registry struct {
	mu      sync.RWMutex
	points  *extension.PointRegistry
	queries map[string]*QueryDescriptor
}

// NewRegistry creates a registry. points may be nil when no entity is
// extension-enabled.
func NewRegistry(points *extension.PointRegistry) *Registry {
	if points == nil {
		points = extension.NewPointRegistry()
	}
	return &Registry{
		points:  points,
		queries: make(map[string]*QueryDescriptor),
	}
}

func modelType(v interface{}) (reflect.Type, bool) {
	if v == nil {
		return nil, false
	}
	t := indirect(reflect.TypeOf(v))
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	return t, t.Implements(searchableType) || reflect.PointerTo(t).Implements(searchableType)
}

// Register compiles and adds a query definition
func (r *Registry) Register(def QueryDefinition) error {
	const op = "search.Registry.Register"
	if def.Name == "" {
		return apperrors.Configuration(op, "query name is required")
	}

	queryType, ok := modelType(def.QueryModel)
	if !ok {
		return apperrors.Configuration(op, "query %q: query model %T is not searchable", def.Name, def.QueryModel)
	}
	resultType, ok := modelType(def.ResultModel)
	if !ok {
		return apperrors.Configuration(op, "query %q: result model %T is not searchable", def.Name, def.ResultModel)
	}

	entity := def.Entity
	if entity == "" {
		entity = reflect.New(resultType).Interface().(Searchable).SearchEntity()
	}

	desc := &QueryDescriptor{
		Name:            def.Name,
		Entity:          entity,
		QueryType:       queryType,
		ResultType:      resultType,
		OrderBy:         append([]query.Order(nil), def.OrderBy...),
		SpaceField:      def.SpaceField,
		QueryCustomizer: def.QueryCustomizer,
		Customizer:      def.Customizer,
		Executor:        def.Executor,
	}
	if desc.SpaceField == "" {
		desc.SpaceField = DefaultSpaceField
	}

	if point, ok := r.points.ByTarget(entity); ok {
		if !reflect.PointerTo(resultType).Implements(extendableType) {
			return apperrors.Configuration(op,
				"query %q: entity %s is extension-enabled but %s does not implement ExtendableRecord",
				def.Name, entity, resultType)
		}
		desc.PointName = point.Name
	}

	for i := 0; i < queryType.NumField(); i++ {
		f := queryType.Field(i)
		tag, ok := f.Tag.Lookup("search")
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		cond, err := parseConditionTag(f, tag)
		if err != nil {
			return apperrors.Configuration(op, "query %q: %v", def.Name, err)
		}
		desc.Conditions = append(desc.Conditions, cond)
	}

	seen := make(map[string]bool)
	for i := 0; i < resultType.NumField(); i++ {
		f := resultType.Field(i)
		tag, ok := f.Tag.Lookup("column")
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		col, err := parseColumnTag(f, tag)
		if err != nil {
			return apperrors.Configuration(op, "query %q: %v", def.Name, err)
		}
		if seen[col.Key] {
			return apperrors.Configuration(op, "query %q: duplicate column %q", def.Name, col.Key)
		}
		seen[col.Key] = true
		desc.Columns = append(desc.Columns, col)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.queries[def.Name]; exists {
		return apperrors.Configuration(op, "query %q already registered", def.Name)
	}
	r.queries[def.Name] = desc
	return nil
}

// Lookup returns the descriptor of a named query
func (r *Registry) Lookup(name string) (*QueryDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.queries[name]
	if !ok {
		return nil, apperrors.NotFound("search.Registry.Lookup", "query %q", name)
	}
	return desc, nil
}

// EntityTypeOf returns the entity type a named query searches
func (r *Registry) EntityTypeOf(name string) (string, error) {
	desc, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return desc.Entity, nil
}

// Names returns the registered query names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.queries))
	for name := range r.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QueriesFor returns the names of queries over an entity type
func (r *Registry) QueriesFor(entity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, desc := range r.queries {
		if desc.Entity == entity {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NewParams returns a pointer to a zero query model for a named query
func (r *Registry) NewParams(name string) (interface{}, error) {
	desc, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return reflect.New(desc.QueryType).Interface(), nil
}
