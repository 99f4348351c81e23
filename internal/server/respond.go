package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"autoeden/internal/app"
	"autoeden/internal/util"
	"autoeden/pkg/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps application errors to HTTP statuses. Anything unmapped
// is logged with the request id and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields domain.FieldErrors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, app.ErrEmailTaken):
		writeJSONError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, app.ErrConflict):
		writeJSONError(w, http.StatusConflict, "conflicting update, reload and retry")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotBiddable):
		writeJSONError(w, http.StatusBadRequest, "vehicle is not open for bids")
	case errors.Is(err, app.ErrDisabled):
		writeJSONError(w, http.StatusServiceUnavailable, "feature is not configured")
	default:
		slog.Error("request failed",
			"request_id", util.RequestIDFromRequest(r),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, 1<<20)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		return domain.FieldErrors{"body": fmt.Sprintf("invalid json: %v", err)}
	}
	return nil
}
