package extension

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/cache"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
)

// ChangeListener is notified after extension metadata for a target type changes
type ChangeListener func(ctx context.Context, targetType string)

// MetadataService manages extensions and field definitions. Field lists are
// cached per extension id and evicted by every mutation of that extension.
type MetadataService struct {
	repo   Repository
	points *PointRegistry
	fields cache.Cache[int64, []*Field]
	owners OwnerResolver
	group  singleflight.Group
	log    *logrus.Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners []ChangeListener

	// generations count evictions per extension; a read only fills the
	// cache when no eviction happened since it started
	genMu       sync.Mutex
	generations map[int64]uint64
}

// NewMetadataService creates a metadata service. A nil cache gets an
// in-process LRU; a nil owner resolver reads the owner from the context.
func NewMetadataService(repo Repository, points *PointRegistry, fields cache.Cache[int64, []*Field], owners OwnerResolver, log *logrus.Logger) *MetadataService {
	if fields == nil {
		fields = cache.NewMemoryCache[int64, []*Field](1000, 0)
	}
	if owners == nil {
		owners = ContextOwnerResolver{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &MetadataService{
		repo:   repo,
		points: points,
		fields: fields,
		owners: owners,
		log:    log,
		now:    time.Now,

		generations: make(map[int64]uint64),
	}
}

// Points returns the extension point registry
func (s *MetadataService) Points() *PointRegistry {
	return s.points
}

// OnChange registers a listener for metadata changes
func (s *MetadataService) OnChange(listener ChangeListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}

func (s *MetadataService) notify(ctx context.Context, targetType string) {
	s.mu.RLock()
	listeners := append([]ChangeListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, targetType)
	}
}

// GetOrCreateExtension returns the extension of a scope, creating it on
// first use. A concurrent creator that wins the race is returned instead.
func (s *MetadataService) GetOrCreateExtension(ctx context.Context, targetType string, owner Owner) (*Extension, error) {
	const op = "extension.GetOrCreateExtension"
	if targetType == "" {
		return nil, apperrors.InvalidArgument(op, "target type is required")
	}
	if owner.Type == "" {
		owner = Global
	}

	ext, err := s.repo.FindExtension(ctx, targetType, owner)
	if err == nil {
		return ext, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, apperrors.Persistence(op, err)
	}

	now := s.now().UTC()
	ext = &Extension{
		TargetType: targetType,
		OwnerType:  owner.Type,
		OwnerID:    owner.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateExtension(ctx, ext); err != nil {
		if !apperrors.IsConstraintViolation(err) {
			return nil, apperrors.Persistence(op, err)
		}
		winner, ferr := s.repo.FindExtension(ctx, targetType, owner)
		if ferr != nil {
			return nil, apperrors.Persistence(op, ferr)
		}
		return winner, nil
	}

	s.log.WithFields(logrus.Fields{
		"extension_id": ext.ID,
		"target_type":  targetType,
		"owner_type":   owner.Type,
		"owner_id":     owner.ID,
	}).Info("created extension")
	s.notify(ctx, targetType)
	return ext, nil
}

// FindExtension returns the extension of a scope without creating it
func (s *MetadataService) FindExtension(ctx context.Context, targetType string, owner Owner) (*Extension, error) {
	if owner.Type == "" {
		owner = Global
	}
	return s.repo.FindExtension(ctx, targetType, owner)
}

// ResolveExtension returns the caller's extension for an extension point.
// The owner comes from the OwnerResolver; callers without an owner use the
// global extension. With create=false a missing extension is ErrNotFound.
func (s *MetadataService) ResolveExtension(ctx context.Context, pointName string, create bool) (*Extension, error) {
	point, err := s.points.Lookup(pointName)
	if err != nil {
		return nil, err
	}
	owner, ok := s.owners.ResolveOwner(ctx, point)
	if !ok {
		owner = Global
	}
	if create {
		return s.GetOrCreateExtension(ctx, point.TargetType, owner)
	}
	return s.FindExtension(ctx, point.TargetType, owner)
}

// GetExtension retrieves an extension by id
func (s *MetadataService) GetExtension(ctx context.Context, id int64) (*Extension, error) {
	return s.repo.GetExtension(ctx, id)
}

// GetExtensionByName retrieves an extension by its unique name
func (s *MetadataService) GetExtensionByName(ctx context.Context, name string) (*Extension, error) {
	return s.repo.GetExtensionByName(ctx, name)
}

// ListExtensions returns every extension of a target type in creation order
func (s *MetadataService) ListExtensions(ctx context.Context, targetType string) ([]*Extension, error) {
	exts, err := s.repo.ListExtensions(ctx, targetType)
	if err != nil {
		return nil, apperrors.Persistence("extension.ListExtensions", err)
	}
	return exts, nil
}

// UpdateExtension changes the name and attributes of an extension. The
// scope of an extension never changes.
func (s *MetadataService) UpdateExtension(ctx context.Context, id int64, name string, attributes map[string]string) (*Extension, error) {
	const op = "extension.UpdateExtension"
	ext, err := s.repo.GetExtension(ctx, id)
	if err != nil {
		return nil, err
	}
	ext.Name = name
	ext.Attributes = attributes
	ext.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateExtension(ctx, ext); err != nil {
		if apperrors.IsConstraintViolation(err) {
			return nil, apperrors.ConstraintViolation(op, err, "extension name %q already in use", name)
		}
		return nil, apperrors.Persistence(op, err)
	}
	s.notify(ctx, ext.TargetType)
	return ext, nil
}

// DeleteExtension removes an extension with its fields and values
func (s *MetadataService) DeleteExtension(ctx context.Context, id int64) error {
	const op = "extension.DeleteExtension"
	ext, err := s.repo.GetExtension(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteExtension(ctx, id); err != nil {
		return apperrors.Persistence(op, err)
	}
	s.evictFields(ctx, id)
	s.log.WithField("extension_id", id).Info("deleted extension")
	s.notify(ctx, ext.TargetType)
	return nil
}

// ListFields returns the field definitions of an extension, ordered by id.
// Results are cached; concurrent misses for the same extension share one
// repository read.
func (s *MetadataService) ListFields(ctx context.Context, extensionID int64) ([]*Field, error) {
	if cached, ok := s.fields.Get(ctx, extensionID); ok {
		return cloneFields(cached), nil
	}

	v, err, _ := s.group.Do(fieldsKey(extensionID), func() (interface{}, error) {
		s.genMu.Lock()
		gen := s.generations[extensionID]
		s.genMu.Unlock()

		fields, err := s.repo.ListFields(ctx, extensionID)
		if err != nil {
			return nil, err
		}

		s.genMu.Lock()
		if s.generations[extensionID] == gen {
			s.fields.Set(ctx, extensionID, fields)
		}
		s.genMu.Unlock()
		return fields, nil
	})
	if err != nil {
		return nil, apperrors.Persistence("extension.ListFields", err)
	}
	return cloneFields(v.([]*Field)), nil
}

// evictFields drops the cached field list of an extension. Reads already in
// flight neither repopulate the cache nor serve later callers.
func (s *MetadataService) evictFields(ctx context.Context, extensionID int64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[extensionID]++
	s.group.Forget(fieldsKey(extensionID))
	s.fields.Delete(ctx, extensionID)
}

func fieldsKey(extensionID int64) string {
	return strconv.FormatInt(extensionID, 10)
}

// FieldsForPoint returns the caller's fields for an extension point, or an
// empty list when the caller's extension does not exist yet.
func (s *MetadataService) FieldsForPoint(ctx context.Context, pointName string) (*Extension, []*Field, error) {
	ext, err := s.ResolveExtension(ctx, pointName, false)
	if apperrors.IsNotFound(err) {
		if _, perr := s.points.Lookup(pointName); perr != nil {
			return nil, nil, perr
		}
		return nil, []*Field{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	fields, err := s.ListFields(ctx, ext.ID)
	if err != nil {
		return nil, nil, err
	}
	return ext, fields, nil
}

// AddField defines a new field on an extension
func (s *MetadataService) AddField(ctx context.Context, extensionID int64, spec FieldSpec) (*Field, error) {
	const op = "extension.AddField"
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	ext, err := s.repo.GetExtension(ctx, extensionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := contextkeys.GetUserID(ctx)
	field := &Field{
		ExtensionID: extensionID,
		Name:        spec.Name,
		Description: spec.Description,
		Type:        spec.Type,
		Required:    spec.Required,
		MaxLength:   spec.MaxLength,
		Options:     spec.Options,
		Version:     1,
		CreatedAt:   now,
		CreatedBy:   user,
		UpdatedAt:   now,
		UpdatedBy:   user,
	}
	if err := s.repo.CreateField(ctx, field); err != nil {
		if apperrors.IsConstraintViolation(err) {
			return nil, apperrors.ConstraintViolation(op, err, "name conflict: field %q already exists", spec.Name)
		}
		return nil, apperrors.Persistence(op, err)
	}

	s.evictFields(ctx, extensionID)
	s.log.WithFields(logrus.Fields{
		"extension_id": extensionID,
		"field_id":     field.ID,
		"field":        field.Name,
		"type":         field.Type,
	}).Info("added extension field")
	s.notify(ctx, ext.TargetType)
	return field, nil
}

// UpdateField replaces a field definition. field.ID and field.Version must
// match the stored row.
func (s *MetadataService) UpdateField(ctx context.Context, field *Field) (*Field, error) {
	const op = "extension.UpdateField"
	if field == nil || field.ID == 0 {
		return nil, apperrors.InvalidArgument(op, "field id is required")
	}
	existing, err := s.repo.GetField(ctx, field.ID)
	if err != nil {
		return nil, err
	}
	if field.ExtensionID != 0 && field.ExtensionID != existing.ExtensionID {
		return nil, apperrors.InvalidArgument(op, "field %d belongs to extension %d", field.ID, existing.ExtensionID)
	}
	spec := FieldSpec{
		Name:        field.Name,
		Description: field.Description,
		Type:        field.Type,
		Required:    field.Required,
		MaxLength:   field.MaxLength,
		Options:     field.Options,
	}
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}

	updated := field.Clone()
	updated.ExtensionID = existing.ExtensionID
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	updated.UpdatedAt = s.now().UTC()
	updated.UpdatedBy = contextkeys.GetUserID(ctx)

	if err := s.repo.UpdateField(ctx, updated); err != nil {
		if apperrors.IsConstraintViolation(err) {
			return nil, apperrors.ConstraintViolation(op, err, "name conflict: field %q already exists", field.Name)
		}
		return nil, apperrors.Persistence(op, err)
	}

	s.evictFields(ctx, existing.ExtensionID)
	s.notifyExtension(ctx, existing.ExtensionID)
	return updated, nil
}

// DeleteField removes a field definition and its values
func (s *MetadataService) DeleteField(ctx context.Context, fieldID int64) error {
	const op = "extension.DeleteField"
	existing, err := s.repo.GetField(ctx, fieldID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteField(ctx, fieldID); err != nil {
		return apperrors.Persistence(op, err)
	}

	s.evictFields(ctx, existing.ExtensionID)
	s.log.WithFields(logrus.Fields{
		"extension_id": existing.ExtensionID,
		"field_id":     fieldID,
	}).Info("deleted extension field")
	s.notifyExtension(ctx, existing.ExtensionID)
	return nil
}

// GetField retrieves a field definition by id
func (s *MetadataService) GetField(ctx context.Context, fieldID int64) (*Field, error) {
	return s.repo.GetField(ctx, fieldID)
}

// GetExtensionIDForField returns the id of the extension owning a field
func (s *MetadataService) GetExtensionIDForField(ctx context.Context, fieldID int64) (int64, error) {
	field, err := s.repo.GetField(ctx, fieldID)
	if err != nil {
		return 0, err
	}
	return field.ExtensionID, nil
}

// ValidateFieldOwnership fails when the field belongs to another extension
func (s *MetadataService) ValidateFieldOwnership(ctx context.Context, extensionID, fieldID int64) error {
	owner, err := s.GetExtensionIDForField(ctx, fieldID)
	if err != nil {
		return err
	}
	if owner != extensionID {
		return apperrors.InvalidArgument("extension.ValidateFieldOwnership",
			"field %d does not belong to extension %d", fieldID, extensionID)
	}
	return nil
}

func (s *MetadataService) notifyExtension(ctx context.Context, extensionID int64) {
	ext, err := s.repo.GetExtension(ctx, extensionID)
	if err != nil {
		s.log.WithError(err).WithField("extension_id", extensionID).Warn("failed to load extension for change notification")
		return
	}
	s.notify(ctx, ext.TargetType)
}

func cloneFields(fields []*Field) []*Field {
	out := make([]*Field, len(fields))
	for i, f := range fields {
		out[i] = f.Clone()
	}
	return out
}
