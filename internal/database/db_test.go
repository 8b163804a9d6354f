package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/internal/database"
	"outreach/internal/database/dbtest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := dbtest.New(t)

	result, err := db.Migrate()
	require.NoError(t, err)
	assert.False(t, result.Changed, "second Migrate() should report Changed=false")
	assert.Equal(t, uint(3), result.Version)
	assert.False(t, result.Dirty)
}

func TestMigrateCreatesTables(t *testing.T) {
	db := dbtest.New(t)
	now := time.Now().UTC()

	ops := []struct {
		desc  string
		query string
		args  []any
	}{
		{"insert audience", "INSERT INTO audiences (id, user_id, name, request_data, created_at) VALUES ($1, $2, $3, $4, $5)", []any{"a1", "u1", "Leads", nil, now}},
		{"insert contact", "INSERT INTO contacts (id, audience_id, email, data, created_at) VALUES ($1, $2, $3, $4, $5)", []any{"c1", "a1", "a@x.com", `{"k":"v"}`, now}},
		{"insert conversation", "INSERT INTO conversations (id, customer_email, customer_email_norm, status, created_at) VALUES ($1, $2, $3, $4, $5)", []any{"v1", "A@x.com", "a@x.com", "open", now}},
		{"insert message", "INSERT INTO messages (id, conversation_id, sender, body, created_at) VALUES ($1, $2, $3, $4, $5)", []any{"m1", "v1", "customer", "hi", now}},
	}
	for _, op := range ops {
		_, err := db.Conn.Exec(op.query, op.args...)
		require.NoError(t, err, op.desc)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db := dbtest.New(t)

	_, err := db.Conn.Exec(
		"INSERT INTO messages (id, conversation_id, sender, body, created_at) VALUES ($1, $2, $3, $4, $5)",
		"m1", "missing", "customer", "hi", time.Now().UTC())
	assert.Error(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := dbtest.New(t)
	errBoom := errors.New("boom")

	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO conversations (id, status, created_at) VALUES ($1, $2, $3)", "v1", "open", time.Now().UTC()); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	var n int
	require.NoError(t, db.Conn.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestWithTxCommits(t *testing.T) {
	db := dbtest.New(t)

	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO conversations (id, status, created_at) VALUES ($1, $2, $3)", "v1", "closed", time.Now().UTC())
		return err
	})
	require.NoError(t, err)

	var status string
	require.NoError(t, db.Conn.QueryRow("SELECT status FROM conversations WHERE id = $1", "v1").Scan(&status))
	assert.Equal(t, "closed", status)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := database.New("mysql", "whatever")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$2, $3, $4", database.Placeholders(2, 3))
	assert.Equal(t, "$1", database.Placeholders(1, 1))
	assert.Equal(t, "", database.Placeholders(1, 0))
}
