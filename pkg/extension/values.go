package extension

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/storage"
)

// ValueStore reads and writes field values. Values are opaque strings;
// type checking is left to callers (see ValidateValues).
type ValueStore struct {
	repo ValueRepository
	meta *MetadataService
	tx   storage.TxRunner
	log  *logrus.Logger
}

// NewValueStore creates a value store
func NewValueStore(repo ValueRepository, meta *MetadataService, tx storage.TxRunner, log *logrus.Logger) *ValueStore {
	if tx == nil {
		tx = storage.NoTx
	}
	if log == nil {
		log = logrus.New()
	}
	return &ValueStore{repo: repo, meta: meta, tx: tx, log: log}
}

// LoadValues returns the entity's values keyed by field id
func (s *ValueStore) LoadValues(ctx context.Context, extensionID, entityID int64) (map[int64]string, error) {
	rows, err := s.repo.ListValues(ctx, extensionID, entityID)
	if err != nil {
		return nil, apperrors.Persistence("extension.LoadValues", err)
	}
	values := make(map[int64]string, len(rows))
	for _, row := range rows {
		values[row.FieldID] = row.Value
	}
	return values, nil
}

// SaveValues upserts one value per field id. Fields not present in values
// keep their stored value. Every field id must belong to the extension.
func (s *ValueStore) SaveValues(ctx context.Context, extensionID, entityID int64, values map[int64]string) error {
	const op = "extension.SaveValues"
	if len(values) == 0 {
		return nil
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		fields, err := s.meta.ListFields(ctx, extensionID)
		if err != nil {
			return err
		}
		known := make(map[int64]bool, len(fields))
		for _, f := range fields {
			known[f.ID] = true
		}

		ids := make([]int64, 0, len(values))
		for id := range values {
			if !known[id] {
				return apperrors.InvalidArgument(op, "field %d does not belong to extension %d", id, extensionID)
			}
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			if err := s.upsert(ctx, id, entityID, values[id]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ValueStore) upsert(ctx context.Context, fieldID, entityID int64, value string) error {
	const op = "extension.SaveValues"
	existing, err := s.repo.FindValue(ctx, fieldID, entityID)
	switch {
	case err == nil:
		existing.Value = value
		if err := s.repo.UpdateValue(ctx, existing); err != nil {
			return apperrors.Persistence(op, err)
		}
	case apperrors.IsNotFound(err):
		row := &FieldValue{FieldID: fieldID, EntityID: entityID, Value: value}
		if err := s.repo.InsertValue(ctx, row); err != nil {
			return apperrors.Persistence(op, err)
		}
	default:
		return apperrors.Persistence(op, err)
	}
	return nil
}

// DeleteValues removes every value of an entity
func (s *ValueStore) DeleteValues(ctx context.Context, targetType string, entityID int64) error {
	if err := s.repo.DeleteEntityValues(ctx, targetType, entityID); err != nil {
		return apperrors.Persistence("extension.DeleteValues", err)
	}
	return nil
}

// LoadExtended returns the entity's values keyed by field name
func (s *ValueStore) LoadExtended(ctx context.Context, ext *Extension, entityID int64) (map[string]string, error) {
	fields, err := s.meta.ListFields(ctx, ext.ID)
	if err != nil {
		return nil, err
	}
	byID, err := s.LoadValues(ctx, ext.ID, entityID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(byID))
	for _, f := range fields {
		if v, ok := byID[f.ID]; ok {
			out[f.Name] = v
		}
	}
	return out, nil
}

// SaveExtended validates name-keyed values against the extension's fields
// and saves them
func (s *ValueStore) SaveExtended(ctx context.Context, ext *Extension, entityID int64, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	fields, err := s.meta.ListFields(ctx, ext.ID)
	if err != nil {
		return err
	}
	if err := ValidateValues(fields, values, false); err != nil {
		return err
	}
	byName := make(map[string]*Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	byID := make(map[int64]string, len(values))
	for name, v := range values {
		byID[byName[name].ID] = v
	}
	return s.SaveValues(ctx, ext.ID, entityID, byID)
}

// ValidateValues checks name-keyed values against field definitions.
// Unknown names are rejected. With complete=true every required field
// must be present and non-empty.
func ValidateValues(fields []*Field, values map[string]string, complete bool) error {
	const op = "extension.ValidateValues"
	byName := make(map[string]*Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, ok := byName[name]
		if !ok {
			return apperrors.InvalidArgument(op, "unknown extended field %q", name)
		}
		if err := ValidateValue(f, values[name]); err != nil {
			return err
		}
	}

	if complete {
		for _, f := range fields {
			if f.Required && values[f.Name] == "" {
				return apperrors.InvalidArgument(op, "field %q is required", f.Name)
			}
		}
	}
	return nil
}
