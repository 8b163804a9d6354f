package models

import "time"

// Contact represents a normalized audience contact row
type Contact struct {
	ID         string         `json:"id"`
	AudienceID string         `json:"audience_id"`
	Email      *string        `json:"email,omitempty"`
	FirstName  *string        `json:"first_name,omitempty"`
	LastName   *string        `json:"last_name,omitempty"`
	FullName   *string        `json:"full_name,omitempty"`
	Phone      *string        `json:"phone,omitempty"`
	Company    *string        `json:"company,omitempty"`
	JobTitle   *string        `json:"job_title,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ContactInput is one contact in an import request
type ContactInput struct {
	Email     *string        `json:"email"`
	FirstName *string        `json:"first_name"`
	LastName  *string        `json:"last_name"`
	FullName  *string        `json:"full_name"`
	Phone     *string        `json:"phone"`
	Company   *string        `json:"company"`
	JobTitle  *string        `json:"job_title"`
	Data      map[string]any `json:"data"`
}

// ImportContactsRequest represents the incoming contact import body
type ImportContactsRequest struct {
	Contacts []ContactInput `json:"contacts"`
}

// ImportContactsResponse reports how many contacts were stored
type ImportContactsResponse struct {
	Imported int `json:"imported"`
}
