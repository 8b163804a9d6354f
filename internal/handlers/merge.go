package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"outreach/internal/apperr"
	"outreach/internal/audit"
	"outreach/internal/auth"
	"outreach/internal/authz"
	"outreach/internal/models"
	"outreach/internal/service"
)

// MergeHandler handles POST /api/admin/conversations/merge
type MergeHandler struct {
	service *service.MergeService
	audit   audit.Logger
	logger  *zap.Logger
}

// NewMergeHandler creates a new merge handler
func NewMergeHandler(svc *service.MergeService, auditLog audit.Logger, logger *zap.Logger) *MergeHandler {
	return &MergeHandler{service: svc, audit: auditLog, logger: logger}
}

// Handle merges one email when the body names it, otherwise every
// duplicated email
func (h *MergeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := authz.Requires(caller, authz.MergeConversations).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.MergeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email := service.NormalizeEmail(*req.Email)
		if !strings.Contains(email, "@") {
			writeError(w, r, h.logger, apperr.Invalid("email is malformed"))
			return
		}
		result, err := h.service.MergeEmail(r.Context(), email)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		h.record(r, caller, email, result)
		writeJSON(w, h.logger, http.StatusOK, models.MergeResponse{
			ConversationsMerged: result.ConversationsMerged,
			MessagesMoved:       result.MessagesMoved,
		})
		return
	}

	result, err := h.service.MergeAll(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.record(r, caller, "", result)
	writeJSON(w, h.logger, http.StatusOK, models.BulkMergeResponse{
		EmailsProcessed:     result.EmailsProcessed,
		ConversationsMerged: result.ConversationsMerged,
		MessagesMoved:       result.MessagesMoved,
	})
}

func (h *MergeHandler) record(r *http.Request, caller authz.Caller, email string, result *service.MergeResult) {
	details := map[string]any{
		"conversations_merged": result.ConversationsMerged,
		"messages_moved":       result.MessagesMoved,
	}
	if email == "" {
		details["emails_processed"] = result.EmailsProcessed
	}
	h.audit.Record(r.Context(), audit.Event{
		Actor:      caller.UserID,
		Action:     "conversation.merge",
		EntityType: "conversation",
		EntityID:   email,
		Details:    details,
	})
}
