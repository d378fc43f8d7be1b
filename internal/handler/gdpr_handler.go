package handler

import (
	"net/http"

	"github.com/mattysabby19/taskly-api/internal/service"
)

// GDPRHandler exposes the compliance surface: consents, export, erasure.
// Everything operates on the authenticated member only; nobody can export
// or erase somebody else.
type GDPRHandler struct {
	gdpr *service.GDPRService
}

func NewGDPRHandler(gdpr *service.GDPRService) *GDPRHandler {
	return &GDPRHandler{gdpr: gdpr}
}

type consentRequest struct {
	Purpose string `json:"purpose"`
	Granted bool   `json:"granted"`
	Version string `json:"version"`
}

func (h *GDPRHandler) ListConsents(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	consents, err := h.gdpr.ListConsents(r.Context(), session.MemberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, consents)
}

func (h *GDPRHandler) UpdateConsent(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var req consentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Purpose == "" {
		writeError(w, http.StatusBadRequest, "purpose is required")
		return
	}

	consent, err := h.gdpr.UpdateConsent(r.Context(), session.MemberID, req.Purpose, req.Version, req.Granted, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, consent)
}

// Export returns the member's full data set; envelope-encrypted when KMS
// is enabled.
func (h *GDPRHandler) Export(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	export, encrypted, err := h.gdpr.ExportData(r.Context(), session.MemberID, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if encrypted != nil {
		writeData(w, http.StatusOK, encrypted)
		return
	}
	writeData(w, http.StatusOK, export)
}

// Delete erases the member's data and ends the session with it.
func (h *GDPRHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	if err := h.gdpr.DeleteData(r.Context(), session.MemberID, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
