package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := NotFound("search.Lookup", "query %q", "empSearch")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, `search.Lookup: query "empSearch"`, err.Error())

	wrapped := fmt.Errorf("failed to run search: %w", err)
	assert.True(t, IsNotFound(wrapped))
}

func TestPersistenceRefinements(t *testing.T) {
	cause := errors.New("duplicate key")
	err := ConstraintViolation("extension.AddField", cause, "name conflict")

	assert.True(t, errors.Is(err, ErrConstraintViolation))
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsConstraintViolation(err))

	vc := VersionConflict("extension.UpdateField", "stale version %d", 3)
	assert.True(t, errors.Is(vc, ErrPersistence))
	assert.False(t, errors.Is(vc, ErrConstraintViolation))
}

func TestPersistencePassesClassifiedErrors(t *testing.T) {
	nf := NotFound("op", "missing")
	assert.Same(t, nf, Persistence("outer", nf))
	assert.Nil(t, Persistence("outer", nil))

	raw := errors.New("connection reset")
	err := Persistence("outer", raw)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, raw))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"plain", errors.New("x"), nil},
		{"configuration", Configuration("op", "dup"), ErrConfiguration},
		{"unauthorized", Unauthorized("op", "no"), ErrUnauthorized},
		{"invalid", InvalidArgument("op", "bad"), ErrInvalidArgument},
		{"constraint", ConstraintViolation("op", nil, "dup"), ErrConstraintViolation},
		{"persistence", Persistence("op", errors.New("io")), ErrPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
