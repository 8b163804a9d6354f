package service

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"outreach/internal/apperr"
	"outreach/internal/database"
	"outreach/internal/models"
)

// ConversationService handles the chat widget and admin inbox
type ConversationService struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewConversationService creates a new conversation service
func NewConversationService(db *database.DB, logger *zap.Logger) *ConversationService {
	return &ConversationService{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a conversation with its first customer message
func (s *ConversationService) Create(ctx context.Context, req models.CreateConversationRequest) (*models.CreateConversationResponse, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperr.Invalid("body is required")
	}
	email := trimmed(req.CustomerEmail)
	if email != nil {
		if _, err := mail.ParseAddress(*email); err != nil {
			return nil, apperr.Invalid("customer_email is malformed")
		}
	}

	now := s.now()
	conv := models.Conversation{
		ID:            uuid.NewString(),
		CustomerEmail: email,
		CustomerName:  trimmed(req.CustomerName),
		Status:        models.StatusOpen,
		CreatedAt:     now,
		LastMessageAt: &now,
	}
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Sender:         models.SenderCustomer,
		Body:           body,
		CreatedAt:      now,
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversations (id, customer_email, customer_email_norm, customer_name, status, created_at, last_message_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			conv.ID, conv.CustomerEmail, emailKey(conv.CustomerEmail), conv.CustomerName, conv.Status, conv.CreatedAt, conv.LastMessageAt); err != nil {
			return apperr.Storage("insert conversation", err)
		}
		return insertMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	return &models.CreateConversationResponse{Conversation: conv, Message: msg}, nil
}

// AppendMessage adds a message and bumps last_message_at
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID string, req models.AppendMessageRequest) (*models.Message, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperr.Invalid("body is required")
	}
	sender := req.Sender
	if sender == "" {
		sender = models.SenderCustomer
	}
	if sender != models.SenderCustomer && sender != models.SenderAgent {
		return nil, apperr.Invalid("sender must be customer or agent")
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Body:           body,
		CreatedAt:      s.now(),
	}
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET last_message_at = $1 WHERE id = $2`, msg.CreatedAt, conversationID)
		if err != nil {
			return apperr.Storage("touch conversation", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return apperr.Storage("touch conversation", err)
		} else if n == 0 {
			return apperr.ErrNotFound
		}
		return insertMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateStatus sets a conversation open or closed
func (s *ConversationService) UpdateStatus(ctx context.Context, conversationID, status string) (*models.Conversation, error) {
	if status != models.StatusOpen && status != models.StatusClosed {
		return nil, apperr.Invalid("status must be open or closed")
	}
	res, err := s.db.Conn.ExecContext(ctx, `UPDATE conversations SET status = $1 WHERE id = $2`, status, conversationID)
	if err != nil {
		return nil, apperr.Storage("update status", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, apperr.Storage("update status", err)
	} else if n == 0 {
		return nil, apperr.ErrNotFound
	}

	s.logger.Info("conversation status changed", zap.String("conversation_id", conversationID), zap.String("status", status))
	return s.Get(ctx, conversationID)
}

// Get loads one conversation
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	row := s.db.Conn.QueryRowContext(ctx, `SELECT id, customer_email, customer_name, status, created_at, last_message_at
		FROM conversations WHERE id = $1`, conversationID)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("select conversation", err)
	}
	return c, nil
}

// ListMessages returns a conversation's messages oldest first
func (s *ConversationService) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	rows, err := s.db.Conn.QueryContext(ctx, `SELECT id, conversation_id, sender, body, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, apperr.Storage("select messages", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Body, &m.CreatedAt); err != nil {
			return nil, apperr.Storage("scan message", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate messages", err)
	}
	return msgs, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, m models.Message) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, sender, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, m.Sender, m.Body, m.CreatedAt)
	if err != nil {
		return apperr.Storage("insert message", err)
	}
	return nil
}

// emailKey is the stored merge key for an optional email.
func emailKey(email *string) *string {
	if email == nil {
		return nil
	}
	key := NormalizeEmail(*email)
	return &key
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
