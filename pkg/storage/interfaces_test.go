package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoTx(t *testing.T) {
	called := false
	err := NoTx.InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)

	boom := errors.New("boom")
	err = NoTx.InTx(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "memory", cfg.Driver)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 1000, cfg.FieldCacheSize)
}

type record struct {
	ID       int64             `db:"id"`
	Name     string            `db:"name"`
	Salary   float64           `db:"salary"`
	Active   bool              `db:"active"`
	Hired    time.Time         `db:"hired"`
	Manager  *int64            `db:"manager_id"`
	Note     string            // no db tag
	Extended map[string]string `db:"-"`
}

func TestRecordColumns(t *testing.T) {
	cols, err := RecordColumns(&record{ID: 7, Name: "abc", Salary: 100})
	require.NoError(t, err)

	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"name", "salary", "active", "hired", "manager_id"}, names)
	assert.Equal(t, "abc", cols[0].Value)

	_, err = RecordColumns(record{})
	assert.Error(t, err)
}

func TestRecordID(t *testing.T) {
	r := &record{}
	assert.Equal(t, int64(0), RecordID(r))
	SetRecordID(r, 42)
	assert.Equal(t, int64(42), RecordID(r))
}

func TestAssignColumns(t *testing.T) {
	r := &record{}
	err := AssignColumns(r, map[string]interface{}{
		"id":         int32(3),
		"name":       []byte("bca"),
		"salary":     int64(200),
		"active":     int64(1),
		"hired":      "2024-03-01",
		"manager_id": int64(1),
		"unknown":    "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), r.ID)
	assert.Equal(t, "bca", r.Name)
	assert.Equal(t, 200.0, r.Salary)
	assert.True(t, r.Active)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.Hired)
	require.NotNil(t, r.Manager)
	assert.Equal(t, int64(1), *r.Manager)

	err = AssignColumns(r, map[string]interface{}{"manager_id": nil, "salary": "12.5"})
	require.NoError(t, err)
	assert.Nil(t, r.Manager)
	assert.Equal(t, 12.5, r.Salary)

	err = AssignColumns(r, map[string]interface{}{"active": "yes"})
	assert.Error(t, err)
}
