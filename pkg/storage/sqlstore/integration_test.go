//go:build integration

package sqlstore

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/query"
	"github.com/platinummonkey/adminkit/pkg/search"
	"github.com/platinummonkey/adminkit/pkg/storage"
)

// openPostgres starts a disposable PostgreSQL container and migrates it
func openPostgres(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("adminkit_test"),
		postgres.WithUsername("adminkit"),
		postgres.WithPassword("adminkit_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.Driver = "postgres"
	cfg.URL = connStr
	db, err := Open(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RegisterTable("Person", "people"))
	require.NoError(t, db.Migrate(ctx, peopleDDL))
	return db
}

func TestPostgres_ConstraintViolationKeepsTx(t *testing.T) {
	ctx := context.Background()
	db := openPostgres(t)
	now := time.Now()

	err := db.InTx(ctx, func(ctx context.Context) error {
		ext := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme", CreatedAt: now, UpdatedAt: now}
		if err := db.CreateExtension(ctx, ext); err != nil {
			return err
		}
		dup := *ext
		assert.True(t, apperrors.IsConstraintViolation(db.CreateExtension(ctx, &dup)))

		// the transaction is still usable after the conflict
		_, err := db.FindExtension(ctx, "Person", extension.Owner{Type: "tenant", ID: "acme"})
		return err
	})
	require.NoError(t, err)
}

func TestPostgres_Execute(t *testing.T) {
	ctx := context.Background()
	db := openPostgres(t)

	_, err := db.Insert(ctx, "Person", &person{ID: 5, Name: "abc", Salary: 100, SpaceID: "s1"})
	require.NoError(t, err)
	id, err := db.Insert(ctx, "Person", &person{Name: "cab", Salary: 400, SpaceID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), id, "serial sequence follows explicit ids")

	now := time.Now()
	ext := &extension.Extension{TargetType: "Person", OwnerType: "tenant", OwnerID: "acme", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateExtension(ctx, ext))
	level := &extension.Field{ExtensionID: ext.ID, Name: "level", Type: extension.FieldTypeInteger, Version: 1,
		CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateField(ctx, level))
	require.NoError(t, db.InsertValue(ctx, &extension.FieldValue{FieldID: level.ID, EntityID: 6, Value: "3"}))

	res, err := db.Execute(ctx, &search.ExecRequest{
		Entity:            "Person",
		ResultType:        reflect.TypeOf(person{}),
		Predicate:         query.All(query.Condition{Path: "ext.level", Op: query.OpGE, Value: 2}, query.Eq("space_id", "s1")),
		ActiveExtensionID: ext.ID,
		ExtendedFields:    []search.ExtendedField{{ExtensionID: ext.ID, Name: "level"}},
		Page:              query.Page{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "3", res.Rows[0].(*person).Extended["level"])
}
