package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"outreach/internal/database"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// seedConversation inserts a conversation with n customer messages spaced a
// minute apart starting at createdAt.
func seedConversation(t *testing.T, db *database.DB, id string, email any, status string, createdAt time.Time, n int) {
	t.Helper()
	var last any
	if n > 0 {
		last = createdAt.Add(time.Duration(n-1) * time.Minute)
	}
	_, err := db.Conn.Exec(`INSERT INTO conversations (id, customer_email, status, created_at, last_message_at) VALUES ($1, $2, $3, $4, $5)`,
		id, email, status, createdAt, last)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := db.Conn.Exec(`INSERT INTO messages (id, conversation_id, sender, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
			fmt.Sprintf("%s-m%d", id, i), id, "customer", fmt.Sprintf("%s message %d", id, i), createdAt.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
}

func countRows(t *testing.T, db *database.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.Conn.QueryRow(query, args...).Scan(&n))
	return n
}
