package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/internal/database"
	"outreach/internal/models"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	cfgPath := filepath.Join(dir, "config.toml")
	body := "[log]\nlevel = \"error\"\n\n[database]\ndriver = \"sqlite3\"\nurl = \"" + dbPath + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0600))
	return cfgPath, dbPath
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestMigrateAndMerge(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	run(t, "--config", cfgPath, "migrate")

	db, err := database.New(database.DriverSQLite, dbPath)
	require.NoError(t, err)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c1", "c2"} {
		_, err := db.Conn.Exec(`INSERT INTO conversations (id, customer_email, status, created_at) VALUES ($1, $2, $3, $4)`,
			id, "dup@x.com", "open", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err = db.Conn.Exec(`INSERT INTO messages (id, conversation_id, sender, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		"m1", "c2", "customer", "hello", base)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var single models.MergeResponse
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfgPath, "merge", "--email", "DUP@x.com")), &single))
	assert.Equal(t, models.MergeResponse{ConversationsMerged: 1, MessagesMoved: 1}, single)

	var bulk models.BulkMergeResponse
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfgPath, "merge")), &bulk))
	assert.Equal(t, models.BulkMergeResponse{}, bulk)
}

func TestMissingConfigFails(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", "/nonexistent/config.toml", "migrate"})
	assert.Error(t, cmd.Execute())
}
