package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/repository/scylla"
	"github.com/mattysabby19/taskly-api/internal/service"
	"github.com/mattysabby19/taskly-api/internal/util"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		util.Error("Failed to encode response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Error: message})
}

// writeServiceError maps service errors to HTTP statuses. Anything
// unrecognized is a 500 with a generic message; internals never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired),
		errors.Is(err, service.ErrSessionAutoLoggedOut):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountLocked),
		errors.Is(err, service.ErrVerificationRequired),
		errors.Is(err, service.ErrVerificationFailed),
		errors.Is(err, service.ErrMemberInactive),
		errors.Is(err, service.ErrNotGroupMember),
		errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, service.ErrRoleUnknown),
		errors.Is(err, service.ErrOwnerProtected):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConsentRequired):
		writeError(w, http.StatusUnavailableForLegalReasons, err.Error())
	case errors.Is(err, service.ErrInvalidTaskStatus),
		errors.Is(err, service.ErrEmptyTaskTitle),
		errors.Is(err, service.ErrAssigneeNotMember),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNoVerificationPending):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMemberAlreadyExist):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scylla.ErrTaskNotFound),
		errors.Is(err, scylla.ErrGroupNotFound),
		errors.Is(err, scylla.ErrMemberNotFound),
		errors.Is(err, scylla.ErrMembershipNotFound),
		errors.Is(err, scylla.ErrIncidentNotFound),
		errors.Is(err, scylla.ErrConsentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		util.Error("Unhandled service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
