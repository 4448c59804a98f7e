package sqlstore

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/query"
	"github.com/platinummonkey/adminkit/pkg/search"
	"github.com/platinummonkey/adminkit/pkg/storage"
)

type person struct {
	ID       int64             `db:"id"`
	Name     string            `db:"name"`
	Salary   float64           `db:"salary"`
	SpaceID  string            `db:"space_id"`
	Extended map[string]string `db:"-"`
}

func (p *person) GetExtendedFields() map[string]string  { return p.Extended }
func (p *person) SetExtendedFields(v map[string]string) { p.Extended = v }

const peopleDDL = `CREATE TABLE IF NOT EXISTS people (
	id {{serial}},
	name VARCHAR(255) NOT NULL DEFAULT '',
	salary DOUBLE PRECISION NOT NULL DEFAULT 0,
	space_id VARCHAR(64) NOT NULL DEFAULT ''
)`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Postgres, quietLogger()), mock
}

func openSQLite(t *testing.T) *DB {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.Driver = "sqlite3"
	cfg.URL = ":memory:"
	db, err := Open(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RegisterTable("Person", "people"))
	require.NoError(t, db.Migrate(context.Background(), peopleDDL))
	return db
}

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"sqlite untouched", SQLite, "a = ? AND b = ?", "a = ? AND b = ?"},
		{"postgres numbered", Postgres, "a = ? AND b IN (?, ?)", "a = $1 AND b IN ($2, $3)"},
		{"quoted literal kept", Postgres, "a = '?' AND b = ?", "a = '?' AND b = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.Rebind(tt.in))
		})
	}
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_fk=true&_cslike=true", sqliteDSN(""))
	assert.Equal(t, "file:x.db?cache=shared&_fk=true&_cslike=true", sqliteDSN("file:x.db?cache=shared"))
	assert.Equal(t, "x.db?_foreign_keys=1&_cslike=true", sqliteDSN("x.db?_foreign_keys=1"))
	assert.True(t, isMemoryDSN("file:t?mode=memory"))
	assert.False(t, isMemoryDSN("/var/lib/adminkit.db"))
}

func TestExpand(t *testing.T) {
	assert.Contains(t, Postgres.Expand(peopleDDL), "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, SQLite.Expand(peopleDDL), "INTEGER PRIMARY KEY AUTOINCREMENT")
}

func TestWhereBuilder(t *testing.T) {
	tests := []struct {
		name     string
		pred     query.Predicate
		extIDs   []int64
		want     string
		wantArgs []interface{}
	}{
		{
			name: "nil matches all",
			want: "1=1",
		},
		{
			name:     "like and equality",
			pred:     query.All(query.Condition{Path: "name", Op: query.OpLike, Value: "%a%"}, query.Eq("space_id", "s1")),
			want:     `(CAST(t."name" AS TEXT) LIKE ? AND t."space_id" = ?)`,
			wantArgs: []interface{}{"%a%", "s1"},
		},
		{
			name:     "ignore case",
			pred:     query.Condition{Path: "name", Op: query.OpEQ, Value: "ABC", IgnoreCase: true},
			want:     `LOWER(t."name") = LOWER(?)`,
			wantArgs: []interface{}{"ABC"},
		},
		{
			name: "empty in",
			pred: query.Condition{Path: "id", Op: query.OpIn, Value: []int64{}},
			want: "1=0",
		},
		{
			name:     "in list",
			pred:     query.Condition{Path: "id", Op: query.OpIn, Value: []int64{1, 2}},
			want:     `t."id" IN (?, ?)`,
			wantArgs: []interface{}{int64(1), int64(2)},
		},
		{
			name: "null",
			pred: query.Condition{Path: "name", Op: query.OpIsNull},
			want: `t."name" IS NULL`,
		},
		{
			name: "extended without candidates",
			pred: query.Eq("ext.badge", "gold"),
			want: "1=0",
		},
		{
			name: "extended null without candidates",
			pred: query.Condition{Path: "ext.badge", Op: query.OpIsNull},
			want: "1=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &whereBuilder{dialect: SQLite, extensionIDs: tt.extIDs}
			got, err := b.build(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantArgs, b.args)
		})
	}

	t.Run("extended numeric compare casts", func(t *testing.T) {
		b := &whereBuilder{dialect: Postgres, extensionIDs: []int64{3}}
		got, err := b.build(query.Condition{Path: "ext.level", Op: query.OpGT, Value: 2})
		require.NoError(t, err)
		assert.Contains(t, got, "EXISTS (SELECT 1 FROM ext_values v")
		assert.Contains(t, got, "CAST(v.value AS NUMERIC) > ?")
		assert.Equal(t, []interface{}{"level", int64(3), 2}, b.args)
	})

	t.Run("invalid column rejected", func(t *testing.T) {
		b := &whereBuilder{dialect: SQLite}
		_, err := b.build(query.Eq("name; DROP TABLE people", "x"))
		assert.Error(t, err)
	})
}

func TestOrderBy(t *testing.T) {
	got, err := orderBy(nil)
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY t.id", got)

	got, err = orderBy([]query.Order{{Field: "salary", Dir: query.Desc}})
	require.NoError(t, err)
	assert.Equal(t, ` ORDER BY t."salary" DESC, t.id ASC`, got)

	_, err = orderBy([]query.Order{{Field: "ext.badge"}})
	assert.Error(t, err)
}

func TestCreateExtension_ConflictMock(t *testing.T) {
	db, mock := newMock(t)
	ext := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme"}

	mock.ExpectQuery(`INSERT INTO ext_extensions .* ON CONFLICT DO NOTHING\s+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	err := db.CreateExtension(context.Background(), ext)
	assert.True(t, apperrors.IsConstraintViolation(err))

	mock.ExpectQuery(`INSERT INTO ext_extensions`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})
	err = db.CreateExtension(context.Background(), ext)
	assert.True(t, apperrors.IsConstraintViolation(err))

	mock.ExpectQuery(`INSERT INTO ext_extensions`).
		WithArgs("Person", "tenant", "acme", sqlmock.AnyArg(), "{}", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	require.NoError(t, db.CreateExtension(context.Background(), ext))
	assert.Equal(t, int64(7), ext.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateField_VersionConflictMock(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	field := &extension.Field{ID: 4, ExtensionID: 1, Name: "badge", Type: extension.FieldTypeString, Version: 1}

	mock.ExpectExec(`UPDATE ext_fields SET .* WHERE id = \$9 AND version = \$10`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM ext_fields WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "extension_id", "name", "description", "field_type", "required",
			"max_length", "options", "version", "created_at", "created_by", "updated_at", "updated_by"}).
			AddRow(4, 1, "badge", "", "STRING", false, 0, "", 2, now, "", now, ""))

	err := db.UpdateField(context.Background(), field)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
	assert.Equal(t, 1, field.Version)

	mock.ExpectExec(`UPDATE ext_fields`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.UpdateField(context.Background(), field))
	assert.Equal(t, 2, field.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollbackMock(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ext_values WHERE field_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM ext_fields WHERE id = \$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := db.DeleteField(context.Background(), 9)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_Extensions(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	now := time.Now().UTC().Truncate(time.Second)

	ext := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme",
		Attributes: map[string]string{"region": "eu"}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateExtension(ctx, ext))
	assert.NotZero(t, ext.ID)

	err := db.CreateExtension(ctx, &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme",
		CreatedAt: now, UpdatedAt: now})
	assert.True(t, apperrors.IsConstraintViolation(err))

	found, err := db.FindExtension(ctx, "Person", extension.Owner{Type: "tenant", ID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, ext.ID, found.ID)
	assert.Equal(t, "eu", found.Attributes["region"])

	_, err = db.GetExtension(ctx, ext.ID+100)
	assert.True(t, apperrors.IsNotFound(err))

	field := &extension.Field{ExtensionID: ext.ID, Name: "badge", Type: extension.FieldTypeListOfValues,
		Options: []extension.LOVOption{{Value: "g", Label: "Gold"}}, Version: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateField(ctx, field))
	dup := *field
	assert.True(t, apperrors.IsConstraintViolation(db.CreateField(ctx, &dup)))

	field.Description = "Badge"
	require.NoError(t, db.UpdateField(ctx, field))
	assert.Equal(t, 2, field.Version)

	stale := *field
	stale.Version = 1
	assert.ErrorIs(t, db.UpdateField(ctx, &stale), apperrors.ErrVersionConflict)

	fields, err := db.ListFields(ctx, ext.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Badge", fields[0].Description)
	assert.Equal(t, field.Options, fields[0].Options)

	require.NoError(t, db.InsertValue(ctx, &extension.FieldValue{FieldID: field.ID, EntityID: 1, Value: "g"}))
	assert.True(t, apperrors.IsConstraintViolation(
		db.InsertValue(ctx, &extension.FieldValue{FieldID: field.ID, EntityID: 1, Value: "x"})))

	v, err := db.FindValue(ctx, field.ID, 1)
	require.NoError(t, err)
	v.Value = "s"
	require.NoError(t, db.UpdateValue(ctx, v))

	values, err := db.ListValues(ctx, ext.ID, 1)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "s", values[0].Value)

	require.NoError(t, db.DeleteEntityValues(ctx, "Person", 1))
	_, err = db.FindValue(ctx, field.ID, 1)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, db.DeleteExtension(ctx, ext.ID))
	_, err = db.GetField(ctx, field.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSQLite_InTxRollback(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	err := db.InTx(ctx, func(ctx context.Context) error {
		if _, err := db.Insert(ctx, "Person", &person{Name: "abc"}); err != nil {
			return err
		}
		return apperrors.InvalidArgument("test", "abort")
	})
	require.Error(t, err)

	res, err := db.Execute(ctx, &search.ExecRequest{Entity: "Person", ResultType: reflect.TypeOf(person{})})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestSQLite_Records(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	p := &person{Name: "abc", Salary: 100}
	id, err := db.Insert(ctx, "Person", p)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	id, err = db.Insert(ctx, "Person", &person{ID: 10, Name: "xyz"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	_, err = db.Insert(ctx, "Person", &person{ID: 10})
	assert.True(t, apperrors.IsConstraintViolation(err))

	require.NoError(t, db.Update(ctx, "Person", p.ID, &person{Name: "abd", Salary: 150}))
	var got person
	require.NoError(t, db.Get(ctx, "Person", p.ID, &got))
	assert.Equal(t, person{ID: p.ID, Name: "abd", Salary: 150}, got)

	require.NoError(t, db.Delete(ctx, "Person", p.ID))
	assert.True(t, apperrors.IsNotFound(db.Delete(ctx, "Person", p.ID)))
	assert.True(t, apperrors.IsNotFound(db.Get(ctx, "Person", p.ID, &got)))

	_, err = db.Insert(ctx, "Unknown", &person{})
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestSQLite_Execute(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	for _, p := range []*person{
		{Name: "abc", Salary: 100, SpaceID: "s1"},
		{Name: "bca", Salary: 200, SpaceID: "s1"},
		{Name: "xyz", Salary: 300, SpaceID: "s2"},
		{Name: "cab", Salary: 400, SpaceID: "s1"},
	} {
		_, err := db.Insert(ctx, "Person", p)
		require.NoError(t, err)
	}

	now := time.Now()
	ext := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateExtension(ctx, ext))
	badge := &extension.Field{ExtensionID: ext.ID, Name: "badge", Type: extension.FieldTypeString, Version: 1,
		CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateField(ctx, badge))
	require.NoError(t, db.InsertValue(ctx, &extension.FieldValue{FieldID: badge.ID, EntityID: 2, Value: "gold"}))
	require.NoError(t, db.InsertValue(ctx, &extension.FieldValue{FieldID: badge.ID, EntityID: 3, Value: ""}))

	res, err := db.Execute(ctx, &search.ExecRequest{
		Entity:     "Person",
		ResultType: reflect.TypeOf(person{}),
		Predicate: query.All(
			query.Condition{Path: "name", Op: query.OpLike, Value: "%a%"},
			query.Eq("space_id", "s1"),
		),
		Page:    query.Page{Offset: 0, Limit: 2},
		OrderBy: []query.Order{{Field: "salary", Dir: query.Desc}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "cab", res.Rows[0].(*person).Name)
	assert.Equal(t, "bca", res.Rows[1].(*person).Name)

	t.Run("unbounded page with offset", func(t *testing.T) {
		res, err := db.Execute(ctx, &search.ExecRequest{
			Entity:     "Person",
			ResultType: reflect.TypeOf(person{}),
			Page:       query.Page{Offset: 3},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), res.Total)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "cab", res.Rows[0].(*person).Name)
	})

	t.Run("extended condition and values", func(t *testing.T) {
		res, err := db.Execute(ctx, &search.ExecRequest{
			Entity:            "Person",
			ResultType:        reflect.TypeOf(person{}),
			Predicate:         query.Eq("ext.badge", "gold"),
			ActiveExtensionID: ext.ID,
			ExtendedFields:    []search.ExtendedField{{ExtensionID: ext.ID, Name: "badge"}},
		})
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		row := res.Rows[0].(*person)
		assert.Equal(t, "bca", row.Name)
		assert.Equal(t, map[string]string{"badge": "gold"}, row.Extended)
	})

	t.Run("blank extended value is null", func(t *testing.T) {
		res, err := db.Execute(ctx, &search.ExecRequest{
			Entity:       "Person",
			ResultType:   reflect.TypeOf(person{}),
			Predicate:    query.Condition{Path: "ext.badge", Op: query.OpIsNull},
			ExtensionIDs: []int64{ext.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Total)
	})

	t.Run("excluded fields stay zero", func(t *testing.T) {
		res, err := db.Execute(ctx, &search.ExecRequest{
			Entity:         "Person",
			ResultType:     reflect.TypeOf(person{}),
			OrderBy:        []query.Order{{Field: "id", Dir: query.Asc}},
			ExcludedFields: []string{"salary"},
		})
		require.NoError(t, err)
		require.Len(t, res.Rows, 4)
		assert.Equal(t, int64(1), res.Rows[0].(*person).ID)
		assert.Zero(t, res.Rows[0].(*person).Salary)
	})

	t.Run("invalid order rejected", func(t *testing.T) {
		_, err := db.Execute(ctx, &search.ExecRequest{
			Entity:     "Person",
			ResultType: reflect.TypeOf(person{}),
			OrderBy:    []query.Order{{Field: "salary desc;"}},
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func TestSQLite_Settings(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	_, err := db.LoadSettings(ctx, "alice", "empSearch")
	assert.True(t, apperrors.IsNotFound(err))

	settings := &search.Settings{UserID: "alice", Query: "empSearch", PageSize: 10,
		Columns: []search.Column{{Key: "name", Displayed: true}}}
	require.NoError(t, db.SaveSettings(ctx, settings))

	settings.PageSize = 20
	require.NoError(t, db.SaveSettings(ctx, settings))

	loaded, err := db.LoadSettings(ctx, "alice", "empSearch")
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.PageSize)
	assert.Equal(t, "empSearch", loaded.Query)
	require.Len(t, loaded.Columns, 1)
	assert.True(t, loaded.Columns[0].Displayed)
}
