package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"outreach/internal/audit"
	"outreach/internal/auth"
	"outreach/internal/authz"
	"outreach/internal/models"
	"outreach/internal/service"
)

// ConversationHandler serves the chat widget and the admin inbox
type ConversationHandler struct {
	service *service.ConversationService
	audit   audit.Logger
	logger  *zap.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(svc *service.ConversationService, auditLog audit.Logger, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{service: svc, audit: auditLog, logger: logger}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := authz.Requires(auth.CallerFromContext(r.Context()), authz.SendMessage).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.CreateConversationRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, resp)
}

// AppendMessage handles POST /api/conversations/{id}/messages. Only admins
// may post as the agent.
func (h *ConversationHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := authz.Requires(caller, authz.SendMessage).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.AppendMessageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Sender == models.SenderAgent {
		if err := authz.Requires(caller, authz.ManageConversations).Err(); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	msg, err := h.service.AppendMessage(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, msg)
}

// UpdateStatus handles PATCH /api/conversations/{id}/status
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := authz.Requires(caller, authz.ManageConversations).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.UpdateStatusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id := mux.Vars(r)["id"]
	conv, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Actor:      caller.UserID,
		Action:     "conversation.status",
		EntityType: "conversation",
		EntityID:   id,
		Details:    map[string]any{"status": conv.Status},
	})
	writeJSON(w, h.logger, http.StatusOK, conv)
}

// ListMessages handles GET /api/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if err := authz.Requires(auth.CallerFromContext(r.Context()), authz.ManageConversations).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msgs, err := h.service.ListMessages(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"items": msgs})
}
