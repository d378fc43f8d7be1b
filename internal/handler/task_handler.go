package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/service"
)

// TaskHandler exposes task CRUD inside a group.
type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var in service.TaskInput
	if !decodeBody(w, r, &in) {
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), in, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	task, err := h.tasks.GetTask(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), chi.URLParam(r, "taskID"), requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

// List returns the group's tasks, optionally filtered by status, assignee
// and due-date range (RFC 3339).
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	filter := model.TaskFilter{
		Status:     r.URL.Query().Get("status"),
		AssigneeID: r.URL.Query().Get("assignee_id"),
	}
	if v := r.URL.Query().Get("due_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid due_before timestamp")
			return
		}
		filter.DueBefore = t
	}
	if v := r.URL.Query().Get("due_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid due_after timestamp")
			return
		}
		filter.DueAfter = t
	}

	tasks, err := h.tasks.ListTasks(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), filter, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var in service.TaskInput
	if !decodeBody(w, r, &in) {
		return
	}

	task, err := h.tasks.UpdateTask(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), chi.URLParam(r, "taskID"), in, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	err := h.tasks.DeleteTask(r.Context(), session.MemberID, chi.URLParam(r, "groupID"), chi.URLParam(r, "taskID"), requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
