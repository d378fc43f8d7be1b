package handler

import (
	"net/http"

	"github.com/mattysabby19/taskly-api/internal/service"
)

// AuthHandler exposes login, logout and member registration.
type AuthHandler struct {
	auth    *service.AuthService
	members *service.MemberService
}

func NewAuthHandler(auth *service.AuthService, members *service.MemberService) *AuthHandler {
	return &AuthHandler{auth: auth, members: members}
}

type loginRequest struct {
	Token string `json:"token"`
}

type registerRequest struct {
	MemberID    string `json:"member_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Login exchanges an identity token for a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	session, err := h.auth.Login(r.Context(), req.Token, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, session)
}

// Logout revokes the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	if err := h.auth.Logout(r.Context(), session, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verificationRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

type verificationCodeResponse struct {
	Code string `json:"code"`
}

// RequestVerification issues a one-time code for a member flagged for
// additional verification. The endpoint takes the identity token in the
// body because a flagged member cannot pass the session gate.
func (h *AuthHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	code, err := h.auth.BeginVerification(r.Context(), req.Token, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, verificationCodeResponse{Code: code})
}

// CompleteVerification checks the submitted code and lifts the
// verification requirement on a match.
func (h *AuthHandler) CompleteVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "token and code are required")
		return
	}

	if err := h.auth.CompleteVerification(r.Context(), req.Token, req.Code, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register creates the local member record for an identity-provider
// subject.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	member, err := h.members.Register(r.Context(), req.MemberID, req.Email, req.DisplayName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, member)
}

// Sessions lists the caller's active sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	sessions, err := h.auth.ListSessions(r.Context(), session.MemberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, sessions)
}

// Me returns the authenticated member's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	member, err := h.members.GetProfile(r.Context(), session.MemberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, member)
}
