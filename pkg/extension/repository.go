package extension

import "context"

// Repository persists extensions and their field definitions.
//
// Lookups that find nothing return an apperrors.ErrNotFound error.
// Uniqueness violations (scope, extension name, field name) return
// apperrors.ErrConstraintViolation. UpdateField matches on the field's
// Version and returns apperrors.ErrVersionConflict when it is stale; on
// success the stored and passed Version are incremented.
type Repository interface {
	CreateExtension(ctx context.Context, ext *Extension) error
	FindExtension(ctx context.Context, targetType string, owner Owner) (*Extension, error)
	GetExtension(ctx context.Context, id int64) (*Extension, error)
	GetExtensionByName(ctx context.Context, name string) (*Extension, error)
	UpdateExtension(ctx context.Context, ext *Extension) error
	// DeleteExtension removes the extension, its fields and their values
	DeleteExtension(ctx context.Context, id int64) error
	// ListExtensions returns the target's extensions ordered by id
	ListExtensions(ctx context.Context, targetType string) ([]*Extension, error)

	CreateField(ctx context.Context, field *Field) error
	UpdateField(ctx context.Context, field *Field) error
	// DeleteField removes the field and its values
	DeleteField(ctx context.Context, id int64) error
	GetField(ctx context.Context, id int64) (*Field, error)
	// ListFields returns the extension's fields ordered by id
	ListFields(ctx context.Context, extensionID int64) ([]*Field, error)
}

// ValueRepository persists field values
type ValueRepository interface {
	// FindValue returns apperrors.ErrNotFound when no row exists
	FindValue(ctx context.Context, fieldID, entityID int64) (*FieldValue, error)
	InsertValue(ctx context.Context, value *FieldValue) error
	UpdateValue(ctx context.Context, value *FieldValue) error
	// ListValues returns the entity's values for fields of one extension
	ListValues(ctx context.Context, extensionID, entityID int64) ([]*FieldValue, error)
	// DeleteEntityValues removes every value of an entity of targetType
	DeleteEntityValues(ctx context.Context, targetType string, entityID int64) error
}
