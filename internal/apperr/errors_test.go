package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageErrorMatching(t *testing.T) {
	err := fmt.Errorf("export: %w", Storage("count contacts", sql.ErrConnDone))

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.False(t, errors.Is(err, ErrNotFound))

	var se *StorageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "count contacts", se.Op)
}

func TestStorageNil(t *testing.T) {
	assert.NoError(t, Storage("noop", nil))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", fmt.Errorf("merge: %w", ErrForbidden), http.StatusForbidden, "Forbidden"},
		{"not found", ErrNotFound, http.StatusNotFound, "Not found"},
		{"no data", ErrNoData, http.StatusBadRequest, "No contacts to export"},
		{"invalid", Invalid("email is malformed"), http.StatusBadRequest, "invalid input: email is malformed"},
		{"storage hides detail", Storage("select", errors.New("pq: password authentication failed")), http.StatusInternalServerError, "Internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := Status(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.msg, msg)
		})
	}
}
