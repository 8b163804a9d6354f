package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"outreach/internal/auth"
	"outreach/internal/authz"
	"outreach/internal/models"
	"outreach/internal/service"
)

// AudienceHandler handles audience creation and contact import
type AudienceHandler struct {
	service *service.AudienceService
	logger  *zap.Logger
}

// NewAudienceHandler creates a new audience handler
func NewAudienceHandler(svc *service.AudienceService, logger *zap.Logger) *AudienceHandler {
	return &AudienceHandler{service: svc, logger: logger}
}

// Create handles POST /api/audiences
func (h *AudienceHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := authz.Requires(caller, authz.ManageAudiences).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.CreateAudienceRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	audience, err := h.service.Create(r.Context(), caller.UserID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, audience)
}

// ImportContacts handles POST /api/audiences/{id}/contacts
func (h *AudienceHandler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := authz.Requires(caller, authz.ManageAudiences).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req models.ImportContactsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	n, err := h.service.ImportContacts(r.Context(), mux.Vars(r)["id"], caller.UserID, authz.Can(caller, authz.ActAsAdmin), req.Contacts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, models.ImportContactsResponse{Imported: n})
}
