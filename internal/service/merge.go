package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"outreach/internal/apperr"
	"outreach/internal/database"
	"outreach/internal/models"
)

// MergeResult aggregates the outcome of one or more per-email merges
type MergeResult struct {
	EmailsProcessed     int
	ConversationsMerged int
	MessagesMoved       int64
}

func (r *MergeResult) add(o MergeResult) {
	r.ConversationsMerged += o.ConversationsMerged
	r.MessagesMoved += o.MessagesMoved
}

// MergeOptions tunes the bulk merge
type MergeOptions struct {
	// Concurrency bounds how many emails merge at once. 1 means sequential.
	Concurrency int
	// BatchSize is how many duplicated emails are scanned per query.
	BatchSize int
}

// MergeService collapses conversations that share a customer email
type MergeService struct {
	db     *database.DB
	opts   MergeOptions
	logger *zap.Logger
}

// NewMergeService creates a new merge service
func NewMergeService(db *database.DB, opts MergeOptions, logger *zap.Logger) *MergeService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &MergeService{db: db, opts: opts, logger: logger}
}

// NormalizeEmail is the business key used to group conversations. It is
// stored in customer_email_norm; SQL only ever compares the stored key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MergeEmail collapses every conversation for email into the oldest one.
// All steps run in one transaction.
func (s *MergeService) MergeEmail(ctx context.Context, email string) (*MergeResult, error) {
	key := NormalizeEmail(email)
	if key == "" {
		return nil, apperr.Invalid("email is required")
	}
	if err := s.syncEmailKeys(ctx); err != nil {
		return nil, err
	}
	return s.mergeKey(ctx, key)
}

func (s *MergeService) mergeKey(ctx context.Context, key string) (*MergeResult, error) {
	var result MergeResult
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		r, err := mergeEmailTx(ctx, tx, key)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", key, err)
	}

	if result.ConversationsMerged > 0 {
		s.logger.Info("conversations merged",
			zap.String("email", key),
			zap.Int("merged", result.ConversationsMerged),
			zap.Int64("messages_moved", result.MessagesMoved),
		)
	}
	return &result, nil
}

// MergeAll merges every email that owns more than one conversation.
// Duplicated emails are scanned in batches; any failure aborts the run.
func (s *MergeService) MergeAll(ctx context.Context) (*MergeResult, error) {
	if err := s.syncEmailKeys(ctx); err != nil {
		return nil, err
	}

	var (
		total MergeResult
		mu    sync.Mutex
		after string
	)

	for {
		keys, err := s.duplicateEmails(ctx, after, s.opts.BatchSize)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Concurrency)
		for _, key := range keys {
			g.Go(func() error {
				r, err := s.mergeKey(gctx, key)
				if err != nil {
					return err
				}
				mu.Lock()
				total.add(*r)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		total.EmailsProcessed += len(keys)
		if len(keys) < s.opts.BatchSize {
			break
		}
		after = keys[len(keys)-1]
	}

	s.logger.Info("bulk merge finished",
		zap.Int("emails", total.EmailsProcessed),
		zap.Int("merged", total.ConversationsMerged),
		zap.Int64("messages_moved", total.MessagesMoved),
	)
	return &total, nil
}

type pendingKey struct {
	id    string
	email string
}

// syncEmailKeys fills customer_email_norm for rows written without it, such
// as rows that predate the column or were inserted outside the service.
func (s *MergeService) syncEmailKeys(ctx context.Context) error {
	synced := 0
	for {
		pending, err := s.pendingEmailKeys(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			break
		}

		err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `UPDATE conversations SET customer_email_norm = $1
				WHERE id = $2 AND customer_email_norm IS NULL`)
			if err != nil {
				return apperr.Storage("prepare email key update", err)
			}
			defer stmt.Close()
			for _, p := range pending {
				if _, err := stmt.ExecContext(ctx, NormalizeEmail(p.email), p.id); err != nil {
					return apperr.Storage("update email key", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		synced += len(pending)
		if len(pending) < s.opts.BatchSize {
			break
		}
	}

	if synced > 0 {
		s.logger.Info("email keys synced", zap.Int("conversations", synced))
	}
	return nil
}

func (s *MergeService) pendingEmailKeys(ctx context.Context) ([]pendingKey, error) {
	rows, err := s.db.Conn.QueryContext(ctx, `SELECT id, customer_email FROM conversations
		WHERE customer_email_norm IS NULL AND customer_email IS NOT NULL
		ORDER BY id
		LIMIT $1`, s.opts.BatchSize)
	if err != nil {
		return nil, apperr.Storage("select pending email keys", err)
	}
	defer rows.Close()

	var pending []pendingKey
	for rows.Next() {
		var p pendingKey
		if err := rows.Scan(&p.id, &p.email); err != nil {
			return nil, apperr.Storage("scan pending email key", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate pending email keys", err)
	}
	return pending, nil
}

// duplicateEmails returns up to limit email keys greater than after that
// own more than one conversation, in ascending order.
func (s *MergeService) duplicateEmails(ctx context.Context, after string, limit int) ([]string, error) {
	query := `SELECT customer_email_norm
			  FROM conversations
			  WHERE customer_email_norm IS NOT NULL AND customer_email_norm <> '' AND customer_email_norm > $1
			  GROUP BY customer_email_norm
			  HAVING COUNT(*) > 1
			  ORDER BY customer_email_norm
			  LIMIT $2`
	rows, err := s.db.Conn.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, apperr.Storage("scan duplicate emails", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, apperr.Storage("scan duplicate email", err)
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate duplicate emails", err)
	}
	return emails, nil
}

// mergeEmailTx reparents messages onto the canonical conversation, then
// deletes the duplicates and settles the canonical status.
func mergeEmailTx(ctx context.Context, tx *sql.Tx, key string) (MergeResult, error) {
	conversations, err := conversationsByEmail(ctx, tx, key)
	if err != nil {
		return MergeResult{}, err
	}
	if len(conversations) < 2 {
		return MergeResult{}, nil
	}

	canonical := findOldestConversation(conversations)
	duplicateIDs := make([]any, 0, len(conversations)-1)
	reopen := false
	lastMessageAt := canonical.LastMessageAt
	for _, c := range conversations {
		if c.ID == canonical.ID {
			continue
		}
		duplicateIDs = append(duplicateIDs, c.ID)
		if c.Status == models.StatusOpen {
			reopen = true
		}
		if c.LastMessageAt != nil && (lastMessageAt == nil || c.LastMessageAt.After(*lastMessageAt)) {
			lastMessageAt = c.LastMessageAt
		}
	}

	in := database.Placeholders(2, len(duplicateIDs))
	args := append([]any{canonical.ID}, duplicateIDs...)

	res, err := tx.ExecContext(ctx, `UPDATE messages SET conversation_id = $1 WHERE conversation_id IN (`+in+`)`, args...)
	if err != nil {
		return MergeResult{}, apperr.Storage("reparent messages", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return MergeResult{}, apperr.Storage("reparent messages", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id IN (`+database.Placeholders(1, len(duplicateIDs))+`)`, duplicateIDs...); err != nil {
		return MergeResult{}, apperr.Storage("delete duplicates", err)
	}

	status := canonical.Status
	if reopen {
		status = models.StatusOpen
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET status = $1, last_message_at = $2 WHERE id = $3`,
		status, lastMessageAt, canonical.ID); err != nil {
		return MergeResult{}, apperr.Storage("update canonical", err)
	}

	return MergeResult{ConversationsMerged: len(duplicateIDs), MessagesMoved: moved}, nil
}

// conversationsByEmail loads conversations stored under an email key,
// oldest first
func conversationsByEmail(ctx context.Context, tx *sql.Tx, key string) ([]*models.Conversation, error) {
	query := `SELECT id, customer_email, customer_name, status, created_at, last_message_at
			  FROM conversations WHERE customer_email_norm = $1
			  ORDER BY created_at ASC, id ASC`
	rows, err := tx.QueryContext(ctx, query, key)
	if err != nil {
		return nil, apperr.Storage("select conversations", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, apperr.Storage("scan conversation", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate conversations", err)
	}
	return conversations, nil
}

// findOldestConversation picks the canonical conversation
func findOldestConversation(conversations []*models.Conversation) *models.Conversation {
	if len(conversations) == 0 {
		return nil
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.Before(conversations[j].CreatedAt)
	})
	return conversations[0]
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	var email, name sql.NullString
	var lastMessageAt sql.NullTime
	if err := row.Scan(&c.ID, &email, &name, &c.Status, &c.CreatedAt, &lastMessageAt); err != nil {
		return nil, err
	}
	if email.Valid {
		c.CustomerEmail = &email.String
	}
	if name.Valid {
		c.CustomerName = &name.String
	}
	if lastMessageAt.Valid {
		t := lastMessageAt.Time.UTC()
		c.LastMessageAt = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

