package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"outreach/internal/apperr"
	"outreach/internal/database"
	"outreach/internal/models"
)

// DefaultExportPageSize is how many normalized contacts are read per query.
const DefaultExportPageSize = 1000

// ExportResult is a rendered CSV export
type ExportResult struct {
	Filename string
	Body     string
	Rows     int
}

// ExportService renders audience contacts as CSV
type ExportService struct {
	db       *database.DB
	pageSize int
	logger   *zap.Logger
}

// NewExportService creates a new export service. A non-positive pageSize
// uses DefaultExportPageSize.
func NewExportService(db *database.DB, pageSize int, logger *zap.Logger) *ExportService {
	if pageSize <= 0 {
		pageSize = DefaultExportPageSize
	}
	return &ExportService{db: db, pageSize: pageSize, logger: logger}
}

// Export renders every contact of an audience. Non-admin callers only see
// audiences they own.
func (s *ExportService) Export(ctx context.Context, audienceID, userID string, asAdmin bool) (*ExportResult, error) {
	audience, err := getAudience(ctx, s.db.Conn, audienceID, userID, asAdmin)
	if err != nil {
		return nil, err
	}

	contacts, err := s.loadContacts(ctx, audience)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, apperr.ErrNoData
	}

	columns := orderColumns(contacts)
	result := &ExportResult{
		Filename: exportFilename(audience.Name),
		Body:     renderCSV(columns, contacts),
		Rows:     len(contacts),
	}

	s.logger.Info("audience exported",
		zap.String("audience_id", audience.ID),
		zap.Int("rows", result.Rows),
		zap.Int("columns", len(columns)),
	)
	return result, nil
}

// loadContacts prefers normalized rows and falls back to the legacy
// embedded list when the audience has none.
func (s *ExportService) loadContacts(ctx context.Context, audience *models.Audience) ([]map[string]any, error) {
	var count int
	err := s.db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE audience_id = $1`, audience.ID).Scan(&count)
	if err != nil {
		return nil, apperr.Storage("count contacts", err)
	}
	if count > 0 {
		return s.loadNormalized(ctx, audience.ID, count)
	}
	return legacyContacts(audience.RequestData)
}

// loadNormalized pages through contacts sequentially, oldest first.
func (s *ExportService) loadNormalized(ctx context.Context, audienceID string, count int) ([]map[string]any, error) {
	query := `SELECT email, first_name, last_name, full_name, phone, company, job_title, data
			  FROM contacts WHERE audience_id = $1
			  ORDER BY created_at ASC, id ASC
			  LIMIT $2 OFFSET $3`

	out := make([]map[string]any, 0, count)
	for offset := 0; ; offset += s.pageSize {
		page, err := s.queryPage(ctx, query, audienceID, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < s.pageSize {
			return out, nil
		}
	}
}

func (s *ExportService) queryPage(ctx context.Context, query, audienceID string, offset int) ([]map[string]any, error) {
	rows, err := s.db.Conn.QueryContext(ctx, query, audienceID, s.pageSize, offset)
	if err != nil {
		return nil, apperr.Storage("select contacts", err)
	}
	defer rows.Close()

	var page []map[string]any
	for rows.Next() {
		var email, firstName, lastName, fullName, phone, company, jobTitle, data sql.NullString
		if err := rows.Scan(&email, &firstName, &lastName, &fullName, &phone, &company, &jobTitle, &data); err != nil {
			return nil, apperr.Storage("scan contact", err)
		}

		extra, err := decodeObject(data.String)
		if err != nil {
			return nil, apperr.Storage("decode contact data", err)
		}
		known := map[string]any{
			"email":      nullable(email),
			"first_name": nullable(firstName),
			"last_name":  nullable(lastName),
			"full_name":  nullable(fullName),
			"phone":      nullable(phone),
			"company":    nullable(company),
			"job_title":  nullable(jobTitle),
		}
		page = append(page, flatten(known, extra))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate contacts", err)
	}
	return page, nil
}

type legacyRequest struct {
	ManualAudience *struct {
		Contacts []json.RawMessage `json:"contacts"`
	} `json:"manual_audience"`
}

// legacyContacts reads manual_audience.contacts from an audience's request
// data. Entries that are not JSON objects are skipped.
func legacyContacts(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var req legacyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, apperr.Storage("decode legacy contacts", err)
	}
	if req.ManualAudience == nil {
		return nil, nil
	}

	out := make([]map[string]any, 0, len(req.ManualAudience.Contacts))
	for _, item := range req.ManualAudience.Contacts {
		record, err := decodeObject(string(item))
		if err != nil || record == nil {
			continue
		}
		var extra map[string]any
		if nested, ok := record["data"].(map[string]any); ok {
			extra = nested
			delete(record, "data")
		}
		out = append(out, flatten(record, extra))
	}
	return out, nil
}

// decodeObject decodes a JSON object, keeping numbers as json.Number.
// Empty input and JSON null decode to a nil map.
func decodeObject(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return m, nil
}

func nullable(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	return ns.String
}
