// Package memory is an in-process backend for extension metadata, field
// values, search settings and entity records. It backs tests and the
// no-database mode of the server.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/search"
	"github.com/platinummonkey/adminkit/pkg/storage"
)

var (
	_ extension.Repository      = (*Store)(nil)
	_ extension.ValueRepository = (*Store)(nil)
	_ search.SettingsRepository = (*Store)(nil)
	_ search.Executor           = (*Store)(nil)
	_ storage.RecordStore       = (*Store)(nil)
	_ storage.TxRunner          = (*Store)(nil)
)

type settingsKey struct {
	user  string
	query string
}

type row map[string]interface{}

// data is everything a transaction may roll back
type data struct {
	seq        map[string]int64
	extensions map[int64]*extension.Extension
	fields     map[int64]*extension.Field
	values     map[int64]*extension.FieldValue
	settings   map[settingsKey]*search.Settings
	records    map[string]map[int64]row
}

func newData() data {
	return data{
		seq:        make(map[string]int64),
		extensions: make(map[int64]*extension.Extension),
		fields:     make(map[int64]*extension.Field),
		values:     make(map[int64]*extension.FieldValue),
		settings:   make(map[settingsKey]*search.Settings),
		records:    make(map[string]map[int64]row),
	}
}

// snapshot copies the maps. Stored objects are never mutated in place, so
// sharing them between snapshots is safe.
func (d data) snapshot() data {
	c := newData()
	for k, v := range d.seq {
		c.seq[k] = v
	}
	for k, v := range d.extensions {
		c.extensions[k] = v
	}
	for k, v := range d.fields {
		c.fields[k] = v
	}
	for k, v := range d.values {
		c.values[k] = v
	}
	for k, v := range d.settings {
		c.settings[k] = v
	}
	for entity, rows := range d.records {
		copied := make(map[int64]row, len(rows))
		for id, r := range rows {
			copied[id] = r
		}
		c.records[entity] = copied
	}
	return c
}

// Store is a thread-safe in-memory backend
type Store struct {
	// txMu serializes writers: a transaction holds it for its whole
	// duration, a standalone write for one call
	txMu sync.Mutex
	mu   sync.RWMutex
	data data
}

// New creates an empty store
func New() *Store {
	return &Store{data: newData()}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// InTx runs fn in a transaction. Changes made by fn are discarded when it
// returns an error. A ctx already inside a transaction of this store joins
// it. Writes inside fn must use the ctx passed to fn; other writers block
// until the transaction ends. Readers see uncommitted changes.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	saved := s.data.snapshot()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) write(ctx context.Context, fn func(d *data) error) error {
	if !s.inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *Store) read(fn func(d *data) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.data)
}

func (d *data) next(seq string) int64 {
	d.seq[seq]++
	return d.seq[seq]
}

func cloneExtension(e *extension.Extension) *extension.Extension {
	c := *e
	if e.Attributes != nil {
		c.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

func sortedIDs[V any](m map[int64]V, keep func(V) bool) []int64 {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CreateExtension stores a new extension and sets its ID
func (s *Store) CreateExtension(ctx context.Context, ext *extension.Extension) error {
	const op = "memory.CreateExtension"
	return s.write(ctx, func(d *data) error {
		for _, e := range d.extensions {
			if e.TargetType == ext.TargetType && e.OwnerType == ext.OwnerType && e.OwnerID == ext.OwnerID {
				return apperrors.ConstraintViolation(op, nil, "extension for %s/%s/%s exists", ext.TargetType, ext.OwnerType, ext.OwnerID)
			}
			if ext.Name != "" && e.Name == ext.Name {
				return apperrors.ConstraintViolation(op, nil, "extension name %q exists", ext.Name)
			}
		}
		ext.ID = d.next("extensions")
		d.extensions[ext.ID] = cloneExtension(ext)
		return nil
	})
}

// FindExtension returns the extension of a scope
func (s *Store) FindExtension(ctx context.Context, targetType string, owner extension.Owner) (*extension.Extension, error) {
	var found *extension.Extension
	err := s.read(func(d *data) error {
		for _, e := range d.extensions {
			if e.TargetType == targetType && e.OwnerType == owner.Type && e.OwnerID == owner.ID {
				found = cloneExtension(e)
				return nil
			}
		}
		return apperrors.NotFound("memory.FindExtension", "extension for %s/%s/%s", targetType, owner.Type, owner.ID)
	})
	return found, err
}

// GetExtension returns an extension by id
func (s *Store) GetExtension(ctx context.Context, id int64) (*extension.Extension, error) {
	var found *extension.Extension
	err := s.read(func(d *data) error {
		e, ok := d.extensions[id]
		if !ok {
			return apperrors.NotFound("memory.GetExtension", "extension %d", id)
		}
		found = cloneExtension(e)
		return nil
	})
	return found, err
}

// GetExtensionByName returns an extension by name
func (s *Store) GetExtensionByName(ctx context.Context, name string) (*extension.Extension, error) {
	var found *extension.Extension
	err := s.read(func(d *data) error {
		for _, e := range d.extensions {
			if name != "" && e.Name == name {
				found = cloneExtension(e)
				return nil
			}
		}
		return apperrors.NotFound("memory.GetExtensionByName", "extension %q", name)
	})
	return found, err
}

// UpdateExtension replaces the name and attributes of an extension
func (s *Store) UpdateExtension(ctx context.Context, ext *extension.Extension) error {
	const op = "memory.UpdateExtension"
	return s.write(ctx, func(d *data) error {
		if _, ok := d.extensions[ext.ID]; !ok {
			return apperrors.NotFound(op, "extension %d", ext.ID)
		}
		for id, e := range d.extensions {
			if id != ext.ID && ext.Name != "" && e.Name == ext.Name {
				return apperrors.ConstraintViolation(op, nil, "extension name %q exists", ext.Name)
			}
		}
		d.extensions[ext.ID] = cloneExtension(ext)
		return nil
	})
}

// DeleteExtension removes an extension with its fields and values
func (s *Store) DeleteExtension(ctx context.Context, id int64) error {
	return s.write(ctx, func(d *data) error {
		if _, ok := d.extensions[id]; !ok {
			return apperrors.NotFound("memory.DeleteExtension", "extension %d", id)
		}
		for fid, f := range d.fields {
			if f.ExtensionID == id {
				d.deleteField(fid)
			}
		}
		delete(d.extensions, id)
		return nil
	})
}

// ListExtensions returns the extensions of a target type ordered by id
func (s *Store) ListExtensions(ctx context.Context, targetType string) ([]*extension.Extension, error) {
	var out []*extension.Extension
	err := s.read(func(d *data) error {
		for _, id := range sortedIDs(d.extensions, func(e *extension.Extension) bool { return e.TargetType == targetType }) {
			out = append(out, cloneExtension(d.extensions[id]))
		}
		return nil
	})
	return out, err
}

// CreateField stores a new field definition and sets its ID
func (s *Store) CreateField(ctx context.Context, field *extension.Field) error {
	const op = "memory.CreateField"
	return s.write(ctx, func(d *data) error {
		if _, ok := d.extensions[field.ExtensionID]; !ok {
			return apperrors.NotFound(op, "extension %d", field.ExtensionID)
		}
		for _, f := range d.fields {
			if f.ExtensionID == field.ExtensionID && f.Name == field.Name {
				return apperrors.ConstraintViolation(op, nil, "field %q exists in extension %d", field.Name, field.ExtensionID)
			}
		}
		field.ID = d.next("fields")
		d.fields[field.ID] = field.Clone()
		return nil
	})
}

// UpdateField replaces a field definition when its Version is current
func (s *Store) UpdateField(ctx context.Context, field *extension.Field) error {
	const op = "memory.UpdateField"
	return s.write(ctx, func(d *data) error {
		stored, ok := d.fields[field.ID]
		if !ok {
			return apperrors.NotFound(op, "field %d", field.ID)
		}
		if stored.Version != field.Version {
			return apperrors.VersionConflict(op, "field %d is at version %d, not %d", field.ID, stored.Version, field.Version)
		}
		for id, f := range d.fields {
			if id != field.ID && f.ExtensionID == stored.ExtensionID && f.Name == field.Name {
				return apperrors.ConstraintViolation(op, nil, "field %q exists in extension %d", field.Name, stored.ExtensionID)
			}
		}
		field.Version++
		updated := field.Clone()
		updated.ExtensionID = stored.ExtensionID
		d.fields[field.ID] = updated
		return nil
	})
}

func (d *data) deleteField(id int64) {
	for vid, v := range d.values {
		if v.FieldID == id {
			delete(d.values, vid)
		}
	}
	delete(d.fields, id)
}

// DeleteField removes a field and its values
func (s *Store) DeleteField(ctx context.Context, id int64) error {
	return s.write(ctx, func(d *data) error {
		if _, ok := d.fields[id]; !ok {
			return apperrors.NotFound("memory.DeleteField", "field %d", id)
		}
		d.deleteField(id)
		return nil
	})
}

// GetField returns a field by id
func (s *Store) GetField(ctx context.Context, id int64) (*extension.Field, error) {
	var found *extension.Field
	err := s.read(func(d *data) error {
		f, ok := d.fields[id]
		if !ok {
			return apperrors.NotFound("memory.GetField", "field %d", id)
		}
		found = f.Clone()
		return nil
	})
	return found, err
}

// ListFields returns the fields of an extension ordered by id
func (s *Store) ListFields(ctx context.Context, extensionID int64) ([]*extension.Field, error) {
	var out []*extension.Field
	err := s.read(func(d *data) error {
		for _, id := range sortedIDs(d.fields, func(f *extension.Field) bool { return f.ExtensionID == extensionID }) {
			out = append(out, d.fields[id].Clone())
		}
		return nil
	})
	return out, err
}

// FindValue returns the value of a field for an entity
func (s *Store) FindValue(ctx context.Context, fieldID, entityID int64) (*extension.FieldValue, error) {
	var found *extension.FieldValue
	err := s.read(func(d *data) error {
		for _, v := range d.values {
			if v.FieldID == fieldID && v.EntityID == entityID {
				c := *v
				found = &c
				return nil
			}
		}
		return apperrors.NotFound("memory.FindValue", "value of field %d for entity %d", fieldID, entityID)
	})
	return found, err
}

// InsertValue stores a new value and sets its ID
func (s *Store) InsertValue(ctx context.Context, value *extension.FieldValue) error {
	const op = "memory.InsertValue"
	return s.write(ctx, func(d *data) error {
		if _, ok := d.fields[value.FieldID]; !ok {
			return apperrors.NotFound(op, "field %d", value.FieldID)
		}
		for _, v := range d.values {
			if v.FieldID == value.FieldID && v.EntityID == value.EntityID {
				return apperrors.ConstraintViolation(op, nil, "value of field %d for entity %d exists", value.FieldID, value.EntityID)
			}
		}
		value.ID = d.next("values")
		c := *value
		d.values[value.ID] = &c
		return nil
	})
}

// UpdateValue replaces a stored value
func (s *Store) UpdateValue(ctx context.Context, value *extension.FieldValue) error {
	return s.write(ctx, func(d *data) error {
		if _, ok := d.values[value.ID]; !ok {
			return apperrors.NotFound("memory.UpdateValue", "value %d", value.ID)
		}
		c := *value
		d.values[value.ID] = &c
		return nil
	})
}

// ListValues returns an entity's values for the fields of one extension
func (s *Store) ListValues(ctx context.Context, extensionID, entityID int64) ([]*extension.FieldValue, error) {
	var out []*extension.FieldValue
	err := s.read(func(d *data) error {
		keep := func(v *extension.FieldValue) bool {
			f, ok := d.fields[v.FieldID]
			return ok && f.ExtensionID == extensionID && v.EntityID == entityID
		}
		for _, id := range sortedIDs(d.values, keep) {
			c := *d.values[id]
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}

// DeleteEntityValues removes every value of an entity of targetType
func (s *Store) DeleteEntityValues(ctx context.Context, targetType string, entityID int64) error {
	return s.write(ctx, func(d *data) error {
		for id, v := range d.values {
			if v.EntityID != entityID {
				continue
			}
			f, ok := d.fields[v.FieldID]
			if !ok {
				continue
			}
			if e, ok := d.extensions[f.ExtensionID]; ok && e.TargetType == targetType {
				delete(d.values, id)
			}
		}
		return nil
	})
}

// LoadSettings returns a user's stored settings for a query
func (s *Store) LoadSettings(ctx context.Context, userID, queryName string) (*search.Settings, error) {
	var found *search.Settings
	err := s.read(func(d *data) error {
		stored, ok := d.settings[settingsKey{userID, queryName}]
		if !ok {
			return apperrors.NotFound("memory.LoadSettings", "settings of %q for %q", userID, queryName)
		}
		found = stored.Clone()
		return nil
	})
	return found, err
}

// SaveSettings stores a user's settings for a query
func (s *Store) SaveSettings(ctx context.Context, settings *search.Settings) error {
	return s.write(ctx, func(d *data) error {
		d.settings[settingsKey{settings.UserID, settings.Query}] = settings.Clone()
		return nil
	})
}
