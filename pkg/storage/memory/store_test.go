package memory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/query"
	"github.com/platinummonkey/adminkit/pkg/search"
)

type person struct {
	ID       int64             `db:"id"`
	Name     string            `db:"name"`
	Salary   float64           `db:"salary"`
	SpaceID  string            `db:"space_id"`
	Extended map[string]string `db:"-"`
}

func (p *person) SearchEntity() string                  { return "Person" }
func (p *person) GetExtendedFields() map[string]string  { return p.Extended }
func (p *person) SetExtendedFields(v map[string]string) { p.Extended = v }

func newExtension(t *testing.T, s *Store, owner string) *extension.Extension {
	t.Helper()
	ext := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: owner}
	require.NoError(t, s.CreateExtension(context.Background(), ext))
	return ext
}

func TestStore_ExtensionUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	ext := newExtension(t, s, "acme")
	assert.Equal(t, int64(1), ext.ID)

	dup := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme"}
	err := s.CreateExtension(ctx, dup)
	assert.True(t, apperrors.IsConstraintViolation(err))

	found, err := s.FindExtension(ctx, "Person", extension.Owner{Type: "tenant", ID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, ext.ID, found.ID)

	_, err = s.FindExtension(ctx, "Person", extension.Owner{Type: "tenant", ID: "other"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_ClonesOnLoad(t *testing.T) {
	ctx := context.Background()
	s := New()
	ext := newExtension(t, s, "acme")

	loaded, err := s.GetExtension(ctx, ext.ID)
	require.NoError(t, err)
	loaded.OwnerID = "mutated"

	again, err := s.GetExtension(ctx, ext.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", again.OwnerID)
}

func TestStore_FieldVersioning(t *testing.T) {
	ctx := context.Background()
	s := New()
	ext := newExtension(t, s, "acme")

	field := &extension.Field{ExtensionID: ext.ID, Name: "badge", Type: extension.FieldTypeString, Version: 1}
	require.NoError(t, s.CreateField(ctx, field))

	err := s.CreateField(ctx, &extension.Field{ExtensionID: ext.ID, Name: "badge", Type: extension.FieldTypeString})
	assert.True(t, apperrors.IsConstraintViolation(err))

	stale := field.Clone()
	field.Description = "Badge"
	require.NoError(t, s.UpdateField(ctx, field))
	assert.Equal(t, 2, field.Version)

	stale.Description = "Old"
	err = s.UpdateField(ctx, stale)
	assert.True(t, errors.Is(err, apperrors.ErrVersionConflict))
}

func TestStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	ext := newExtension(t, s, "acme")
	field := &extension.Field{ExtensionID: ext.ID, Name: "badge", Type: extension.FieldTypeString}
	require.NoError(t, s.CreateField(ctx, field))
	require.NoError(t, s.InsertValue(ctx, &extension.FieldValue{FieldID: field.ID, EntityID: 1, Value: "x"}))

	require.NoError(t, s.DeleteExtension(ctx, ext.ID))

	_, err := s.GetField(ctx, field.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.FindValue(ctx, field.ID, 1)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_DeleteEntityValues(t *testing.T) {
	ctx := context.Background()
	s := New()
	ext := newExtension(t, s, "acme")
	other := &extension.Extension{TargetType: "Invoice", OwnerType: "global"}
	require.NoError(t, s.CreateExtension(ctx, other))

	f1 := &extension.Field{ExtensionID: ext.ID, Name: "badge"}
	f2 := &extension.Field{ExtensionID: other.ID, Name: "ref"}
	require.NoError(t, s.CreateField(ctx, f1))
	require.NoError(t, s.CreateField(ctx, f2))
	require.NoError(t, s.InsertValue(ctx, &extension.FieldValue{FieldID: f1.ID, EntityID: 5, Value: "a"}))
	require.NoError(t, s.InsertValue(ctx, &extension.FieldValue{FieldID: f2.ID, EntityID: 5, Value: "b"}))

	require.NoError(t, s.DeleteEntityValues(ctx, "Person", 5))

	values, err := s.ListValues(ctx, ext.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, values)
	values, err = s.ListValues(ctx, other.ID, 5)
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestStore_InTxRollback(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.Insert(ctx, "Person", &person{Name: "abc"}); err != nil {
			return err
		}
		// nested calls join the open transaction
		return s.InTx(ctx, func(ctx context.Context) error {
			ext := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme"}
			require.NoError(t, s.CreateExtension(ctx, ext))
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	var p person
	assert.True(t, apperrors.IsNotFound(s.Get(ctx, "Person", 1, &p)))
	exts, err := s.ListExtensions(ctx, "Person")
	require.NoError(t, err)
	assert.Empty(t, exts)
}

func TestStore_InTxCommit(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(ctx context.Context) error {
		_, err := s.Insert(ctx, "Person", &person{Name: "abc"})
		return err
	})
	require.NoError(t, err)

	var p person
	require.NoError(t, s.Get(ctx, "Person", 1, &p))
	assert.Equal(t, "abc", p.Name)
}

func TestStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateExtension(ctx, &extension.Extension{TargetType: "Person", OwnerType: "global"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if apperrors.IsConstraintViolation(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 9, conflicts)
}

func TestStore_Records(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &person{Name: "abc", Salary: 100}
	id, err := s.Insert(ctx, "Person", p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, int64(1), p.ID)

	id, err = s.Insert(ctx, "Person", &person{ID: 10, Name: "xyz"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
	id, err = s.Insert(ctx, "Person", &person{Name: "next"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	_, err = s.Insert(ctx, "Person", &person{ID: 10})
	assert.True(t, apperrors.IsConstraintViolation(err))

	require.NoError(t, s.Update(ctx, "Person", 1, &person{Name: "abd", Salary: 150}))
	var got person
	require.NoError(t, s.Get(ctx, "Person", 1, &got))
	assert.Equal(t, person{ID: 1, Name: "abd", Salary: 150}, got)

	require.NoError(t, s.Delete(ctx, "Person", 1))
	assert.True(t, apperrors.IsNotFound(s.Delete(ctx, "Person", 1)))
	assert.True(t, apperrors.IsNotFound(s.Update(ctx, "Person", 1, &got)))
}

func TestStore_Execute(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, p := range []*person{
		{Name: "abc", Salary: 100, SpaceID: "s1"},
		{Name: "bca", Salary: 200, SpaceID: "s1"},
		{Name: "xyz", Salary: 300, SpaceID: "s2"},
		{Name: "cab", Salary: 400, SpaceID: "s1"},
	} {
		_, err := s.Insert(ctx, "Person", p)
		require.NoError(t, err)
	}

	ext := newExtension(t, s, "acme")
	badge := &extension.Field{ExtensionID: ext.ID, Name: "badge"}
	require.NoError(t, s.CreateField(ctx, badge))
	require.NoError(t, s.InsertValue(ctx, &extension.FieldValue{FieldID: badge.ID, EntityID: 2, Value: "gold"}))

	req := &search.ExecRequest{
		Entity:     "Person",
		ResultType: reflect.TypeOf(person{}),
		Predicate: query.All(
			query.Condition{Path: "name", Op: query.OpLike, Value: "%a%"},
			query.Eq("space_id", "s1"),
		),
		Page:    query.Page{Offset: 0, Limit: 2},
		OrderBy: []query.Order{{Field: "salary", Dir: query.Desc}},
	}

	res, err := s.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "cab", res.Rows[0].(*person).Name)
	assert.Equal(t, "bca", res.Rows[1].(*person).Name)

	t.Run("extended condition and values", func(t *testing.T) {
		req := &search.ExecRequest{
			Entity:            "Person",
			ResultType:        reflect.TypeOf(person{}),
			Predicate:         query.Eq("ext.badge", "gold"),
			ActiveExtensionID: ext.ID,
			ExtendedFields:    []search.ExtendedField{{ExtensionID: ext.ID, Name: "badge"}},
		}
		res, err := s.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		row := res.Rows[0].(*person)
		assert.Equal(t, "bca", row.Name)
		assert.Equal(t, map[string]string{"badge": "gold"}, row.Extended)
	})

	t.Run("excluded fields stay zero", func(t *testing.T) {
		req := &search.ExecRequest{
			Entity:         "Person",
			ResultType:     reflect.TypeOf(person{}),
			OrderBy:        []query.Order{{Field: "id", Dir: query.Asc}},
			ExcludedFields: []string{"salary"},
		}
		res, err := s.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, res.Rows, 4)
		assert.Equal(t, int64(1), res.Rows[0].(*person).ID)
		assert.Zero(t, res.Rows[0].(*person).Salary)
	})
}

func TestStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.LoadSettings(ctx, "alice", "empSearch")
	assert.True(t, apperrors.IsNotFound(err))

	settings := &search.Settings{UserID: "alice", Query: "empSearch", PageSize: 10,
		Columns: []search.Column{{Key: "name", Displayed: true}}}
	require.NoError(t, s.SaveSettings(ctx, settings))
	settings.Columns[0].Displayed = false

	loaded, err := s.LoadSettings(ctx, "alice", "empSearch")
	require.NoError(t, err)
	assert.True(t, loaded.Columns[0].Displayed)
	assert.Equal(t, 10, loaded.PageSize)
}
