package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"outreach/internal/apperr"
	"outreach/internal/auth"
)

// Handlers groups every route handler the router mounts
type Handlers struct {
	Export       *ExportHandler
	Merge        *MergeHandler
	Audience     *AudienceHandler
	Conversation *ConversationHandler
}

// NewRouter wires routes, request logging and bearer authentication
func NewRouter(h Handlers, verifier *auth.Verifier, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(verifier.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, r, logger, fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err))
	}))

	api.HandleFunc("/audiences", h.Audience.Create).Methods(http.MethodPost)
	api.HandleFunc("/audiences/{id}/contacts", h.Audience.ImportContacts).Methods(http.MethodPost)
	api.HandleFunc("/audiences/{id}/export", h.Export.Handle).Methods(http.MethodGet)

	api.HandleFunc("/conversations", h.Conversation.Create).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/messages", h.Conversation.AppendMessage).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/messages", h.Conversation.ListMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/status", h.Conversation.UpdateStatus).Methods(http.MethodPatch)

	api.HandleFunc("/admin/conversations/merge", h.Merge.Handle).Methods(http.MethodPost)

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
