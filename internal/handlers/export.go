package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"outreach/internal/audit"
	"outreach/internal/auth"
	"outreach/internal/authz"
	"outreach/internal/service"
)

// ExportHandler handles GET /api/audiences/{id}/export
type ExportHandler struct {
	service      *service.ExportService
	audit        audit.Logger
	logger       *zap.Logger
	writeTimeout time.Duration
}

// NewExportHandler creates a new export handler. writeTimeout extends the
// server write deadline for this route; zero keeps the server default.
func NewExportHandler(svc *service.ExportService, auditLog audit.Logger, logger *zap.Logger, writeTimeout time.Duration) *ExportHandler {
	return &ExportHandler{service: svc, audit: auditLog, logger: logger, writeTimeout: writeTimeout}
}

// Handle streams the audience CSV as an attachment
func (h *ExportHandler) Handle(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if err := authz.Requires(caller, authz.ExportAudience).Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if h.writeTimeout > 0 {
		if err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			h.logger.Debug("write deadline not extended", zap.Error(err))
		}
	}

	audienceID := mux.Vars(r)["id"]
	result, err := h.service.Export(r.Context(), audienceID, caller.UserID, authz.Can(caller, authz.ActAsAdmin))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Actor:      caller.UserID,
		Action:     "audience.export",
		EntityType: "audience",
		EntityID:   audienceID,
		Details:    map[string]any{"rows": result.Rows},
	})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(result.Body)); err != nil {
		h.logger.Warn("error writing export", zap.String("audience_id", audienceID), zap.Error(err))
	}
}
