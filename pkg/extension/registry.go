package extension

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
)

// PointRegistry is the boot-time catalog of extension points.
// Registration is rejected once the registry is frozen.
type PointRegistry struct {
	mu       sync.RWMutex
	points   map[string]ExtensionPoint
	byTarget map[string]ExtensionPoint
	frozen   bool
}

// NewPointRegistry creates an empty registry
func NewPointRegistry() *PointRegistry {
	return &PointRegistry{
		points:   make(map[string]ExtensionPoint),
		byTarget: make(map[string]ExtensionPoint),
	}
}

// Register adds an extension point
func (r *PointRegistry) Register(name, targetType string) error {
	const op = "extension.PointRegistry.Register"
	if name == "" || targetType == "" {
		return apperrors.Configuration(op, "extension point requires a name and a target type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return apperrors.Configuration(op, "registry is frozen, cannot register %q", name)
	}
	if _, exists := r.points[name]; exists {
		return apperrors.Configuration(op, "extension point %q already registered", name)
	}
	if existing, exists := r.byTarget[targetType]; exists {
		return apperrors.Configuration(op, "target type %q already exposed by extension point %q", targetType, existing.Name)
	}

	point := ExtensionPoint{Name: name, TargetType: targetType}
	r.points[name] = point
	r.byTarget[targetType] = point
	return nil
}

// Freeze makes the registry read-only
func (r *PointRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup retrieves an extension point by name
func (r *PointRegistry) Lookup(name string) (ExtensionPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	point, ok := r.points[name]
	if !ok {
		return ExtensionPoint{}, apperrors.NotFound("extension.PointRegistry.Lookup", "extension point %q", name)
	}
	return point, nil
}

// ByTarget returns the extension point exposing an entity type
func (r *PointRegistry) ByTarget(targetType string) (ExtensionPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	point, ok := r.byTarget[targetType]
	return point, ok
}

// List returns all points sorted by name
func (r *PointRegistry) List() []ExtensionPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	points := make([]ExtensionPoint, 0, len(r.points))
	for _, p := range r.points {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Name < points[j].Name })
	return points
}

// pointManifest is the YAML layout of an extension point manifest:
//
//	points:
//	  - name: Employee
//	    target_type: Employee
type pointManifest struct {
	Points []ExtensionPoint `yaml:"points"`
}

// LoadPointManifest registers every point listed in a YAML manifest
func (r *PointRegistry) LoadPointManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read extension point manifest: %w", err)
	}

	var manifest pointManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return apperrors.Configuration("extension.LoadPointManifest", "invalid manifest %s: %v", path, err)
	}

	for _, p := range manifest.Points {
		if err := r.Register(p.Name, p.TargetType); err != nil {
			return err
		}
	}
	return nil
}
