package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattysabby19/taskly-api/internal/service"
)

// GroupHandler exposes group and membership management.
type GroupHandler struct {
	groups *service.GroupService
}

func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type membershipRequest struct {
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "group name is required")
		return
	}

	group, err := h.groups.CreateGroup(r.Context(), session.MemberID, req.Name, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, group)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	group, err := h.groups.GetGroup(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, group)
}

// ListMine returns the caller's memberships across all groups.
func (h *GroupHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	memberships, err := h.groups.ListMemberGroups(r.Context(), session.MemberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, memberships)
}

func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	members, err := h.groups.ListMembers(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, members)
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var req membershipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}

	membership, err := h.groups.AddMember(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), req.MemberID, req.Role, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, membership)
}

func (h *GroupHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var req membershipRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.groups.UpdateRole(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), chi.URLParam(r, "memberID"), req.Role, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"role": req.Role})
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	err := h.groups.RemoveMember(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), chi.URLParam(r, "memberID"), requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
