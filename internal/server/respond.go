package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	alertservice "indicator-reporting/backend/internal/alert/service"
	"indicator-reporting/backend/internal/platform/rbac"
	submissionservice "indicator-reporting/backend/internal/submission/service"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service sentinels to HTTP statuses. Unrecognized errors are
// logged and reported as 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrUnauthenticated):
		writeErrorStatus(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, rbac.ErrPermissionDenied):
		writeErrorStatus(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, submissionservice.ErrNotAssigned):
		writeErrorStatus(w, http.StatusForbidden, "indicator is not assigned to this steward")
	case errors.Is(err, submissionservice.ErrInvalidValue):
		writeErrorStatus(w, http.StatusUnprocessableEntity, "value must be non-negative")
	case errors.Is(err, submissionservice.ErrWindowClosed):
		writeErrorStatus(w, http.StatusConflict, err.Error())
	case errors.Is(err, alertservice.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "alert not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeErrorStatus(w, http.StatusGatewayTimeout, "request timed out")
	default:
		log.Printf("server: internal error: %v", err)
		writeErrorStatus(w, http.StatusInternalServerError, "internal error")
	}
}
