package models

import (
	"encoding/json"
	"time"
)

// Audience is a named collection of contacts owned by one user
type Audience struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	RequestData json.RawMessage `json:"request_data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreateAudienceRequest represents the incoming audience body. RequestData
// may carry legacy contacts under manual_audience.contacts.
type CreateAudienceRequest struct {
	Name        string          `json:"name"`
	RequestData json.RawMessage `json:"request_data"`
}
