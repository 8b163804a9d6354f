package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"outreach/internal/apperr"
	"outreach/internal/models"
)

const maxBodyBytes = 5 << 20

// decodeJSON strictly decodes the request body into v. An empty body is
// accepted only when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return apperr.Invalid(fmt.Sprintf("malformed request body: %v", err))
	}
	if dec.More() {
		return apperr.Invalid("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("error encoding response", zap.Error(err))
	}
}

// writeError logs err and writes the caller-safe form of it.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, msg := apperr.Status(err)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}
	writeJSON(w, logger, status, models.ErrorResponse{Error: msg})
}
