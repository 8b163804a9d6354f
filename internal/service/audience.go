package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"outreach/internal/apperr"
	"outreach/internal/database"
	"outreach/internal/models"
)

// AudienceService creates audiences and imports their contacts
type AudienceService struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAudienceService creates a new audience service
func NewAudienceService(db *database.DB, logger *zap.Logger) *AudienceService {
	return &AudienceService{db: db, logger: logger}
}

// Create stores a new audience owned by userID
func (s *AudienceService) Create(ctx context.Context, userID string, req models.CreateAudienceRequest) (*models.Audience, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}

	var requestData *string
	if len(req.RequestData) > 0 && string(req.RequestData) != "null" {
		if !json.Valid(req.RequestData) {
			return nil, apperr.Invalid("request_data must be JSON")
		}
		v := string(req.RequestData)
		requestData = &v
	}

	a := &models.Audience{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		RequestData: req.RequestData,
		CreatedAt:   time.Now().UTC(),
	}
	query := `INSERT INTO audiences (id, user_id, name, request_data, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.Conn.ExecContext(ctx, query, a.ID, a.UserID, a.Name, requestData, a.CreatedAt); err != nil {
		return nil, apperr.Storage("insert audience", err)
	}

	s.logger.Info("audience created", zap.String("audience_id", a.ID), zap.String("user_id", userID))
	return a, nil
}

// ImportContacts appends contacts to an audience in a single transaction
func (s *AudienceService) ImportContacts(ctx context.Context, audienceID, userID string, asAdmin bool, contacts []models.ContactInput) (int, error) {
	if len(contacts) == 0 {
		return 0, apperr.Invalid("contacts must not be empty")
	}
	if _, err := getAudience(ctx, s.db.Conn, audienceID, userID, asAdmin); err != nil {
		return 0, err
	}

	// created_at follows the import order.
	base := time.Now().UTC()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO contacts
			(id, audience_id, email, first_name, last_name, full_name, phone, company, job_title, data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
		if err != nil {
			return apperr.Storage("prepare contact insert", err)
		}
		defer stmt.Close()

		for i, c := range contacts {
			var data *string
			if len(c.Data) > 0 {
				b, err := json.Marshal(c.Data)
				if err != nil {
					return apperr.Invalid("contact data is not encodable")
				}
				v := string(b)
				data = &v
			}
			createdAt := base.Add(time.Duration(i) * time.Microsecond)
			if _, err := stmt.ExecContext(ctx, uuid.NewString(), audienceID,
				c.Email, c.FirstName, c.LastName, c.FullName, c.Phone, c.Company, c.JobTitle,
				data, createdAt); err != nil {
				return apperr.Storage("insert contact", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("contacts imported", zap.String("audience_id", audienceID), zap.Int("count", len(contacts)))
	return len(contacts), nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getAudience loads an audience, scoped to userID unless asAdmin
func getAudience(ctx context.Context, q queryRower, audienceID, userID string, asAdmin bool) (*models.Audience, error) {
	query := `SELECT id, user_id, name, request_data, created_at FROM audiences WHERE id = $1`
	args := []any{audienceID}
	if !asAdmin {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	a := &models.Audience{}
	var requestData sql.NullString
	err := q.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.UserID, &a.Name, &requestData, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("select audience", err)
	}
	if requestData.Valid && requestData.String != "" {
		a.RequestData = json.RawMessage(requestData.String)
	}
	return a, nil
}
