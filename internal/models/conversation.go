package models

import "time"

// Conversation statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Message senders.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
)

// Conversation is a chat thread with one customer
type Conversation struct {
	ID            string     `json:"id"`
	CustomerEmail *string    `json:"customer_email,omitempty"`
	CustomerName  *string    `json:"customer_name,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Message belongs to exactly one conversation
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateConversationRequest opens a conversation with its first message
type CreateConversationRequest struct {
	CustomerEmail *string `json:"customer_email"`
	CustomerName  *string `json:"customer_name"`
	Body          string  `json:"body"`
}

// CreateConversationResponse returns the new conversation and message
type CreateConversationResponse struct {
	Conversation Conversation `json:"conversation"`
	Message      Message      `json:"message"`
}

// AppendMessageRequest adds a message to an existing conversation
type AppendMessageRequest struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// UpdateStatusRequest moves a conversation between open and closed
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// MergeRequest represents the incoming merge body; a missing email merges
// every duplicated address
type MergeRequest struct {
	Email *string `json:"email"`
}

// MergeResponse reports a single-email merge
type MergeResponse struct {
	ConversationsMerged int   `json:"conversationsMerged"`
	MessagesMoved       int64 `json:"messagesMoved"`
}

// BulkMergeResponse reports a merge across all duplicated emails
type BulkMergeResponse struct {
	EmailsProcessed     int   `json:"emailsProcessed"`
	ConversationsMerged int   `json:"conversationsMerged"`
	MessagesMoved       int64 `json:"messagesMoved"`
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
}
