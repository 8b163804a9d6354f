package audit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerRecords(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZapLogger(zap.New(core))

	l.Record(context.Background(), Event{
		Actor:      "u1",
		Action:     "conversation.merge",
		EntityType: "conversation",
		Details:    map[string]any{"merged": 2},
	})

	entries := logs.FilterMessage("conversation.merge").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1", fields["actor"])
	assert.NotEmpty(t, fields["audit_id"])
	assert.Equal(t, "audit", entries[0].LoggerName)
}

func TestRedisLoggerSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	l := NewRedisLogger(rdb, "test:audit", zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	l.Record(ctx, Event{Actor: "u1", Action: "audience.export", EntityType: "audience", EntityID: "a1"})
	cancel()

	_ = l.Close()
	assert.Equal(t, 1, logs.FilterMessage("audit write failed").Len())
}

func TestStampKeepsExplicitValues(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := stamp(Event{ID: "fixed", At: at})
	assert.Equal(t, "fixed", e.ID)
	assert.Equal(t, at, e.At)

	e = stamp(Event{})
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.At.IsZero())
}
