// Package audit records who did what to which entity. Recording is fire and
// forget: sinks log their own failures and never return them to callers.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is a single audit record.
type Event struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// Logger accepts audit events.
type Logger interface {
	Record(ctx context.Context, e Event)
	Close() error
}

func stamp(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}

// ZapLogger writes audit events to a zap logger.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger returns a sink that logs events under the "audit" name.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger.Named("audit")}
}

func (l *ZapLogger) Record(_ context.Context, e Event) {
	e = stamp(e)
	l.logger.Info(e.Action,
		zap.String("audit_id", e.ID),
		zap.String("actor", e.Actor),
		zap.String("entity_type", e.EntityType),
		zap.String("entity_id", e.EntityID),
		zap.Any("details", e.Details),
		zap.Time("at", e.At),
	)
}

func (l *ZapLogger) Close() error { return nil }

// RedisLogger appends JSON-encoded events to a Redis list in the
// background.
type RedisLogger struct {
	rdb     *redis.Client
	key     string
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewRedisLogger returns a sink that RPUSHes events onto key.
func NewRedisLogger(rdb *redis.Client, key string, logger *zap.Logger) *RedisLogger {
	return &RedisLogger{
		rdb:     rdb,
		key:     key,
		timeout: 2 * time.Second,
		logger:  logger.Named("audit"),
	}
}

// Record enqueues e without waiting for Redis. The write is detached from
// ctx cancellation so finishing the request does not drop the event.
func (l *RedisLogger) Record(ctx context.Context, e Event) {
	e = stamp(e)
	payload, err := json.Marshal(e)
	if err != nil {
		l.logger.Warn("audit encode failed", zap.String("action", e.Action), zap.Error(err))
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()
		if err := l.rdb.RPush(wctx, l.key, payload).Err(); err != nil {
			l.logger.Warn("audit write failed",
				zap.String("action", e.Action),
				zap.String("audit_id", e.ID),
				zap.Error(err),
			)
		}
	}()
}

// Close waits for in-flight writes and closes the client.
func (l *RedisLogger) Close() error {
	l.wg.Wait()
	return l.rdb.Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
func (Nop) Close() error                  { return nil }
