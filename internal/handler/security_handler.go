package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattysabby19/taskly-api/internal/repository/elasticsearch"
	"github.com/mattysabby19/taskly-api/internal/service"
)

// SecurityHandler is the operator surface: incident lifecycle, on-demand
// threat sweeps and behavior anomaly checks.
type SecurityHandler struct {
	incidents *service.IncidentService
}

func NewSecurityHandler(incidents *service.IncidentService) *SecurityHandler {
	return &SecurityHandler{incidents: incidents}
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *SecurityHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	incidents, err := h.incidents.ListIncidents(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, incidents)
}

// SearchIncidents queries the incident index with optional severity,
// status, member and time filters.
func (h *SecurityHandler) SearchIncidents(w http.ResponseWriter, r *http.Request) {
	q := elasticsearch.IncidentQuery{
		Severity: r.URL.Query().Get("severity"),
		Status:   r.URL.Query().Get("status"),
		MemberID: r.URL.Query().Get("member_id"),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		q.Since = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	incidents, err := h.incidents.SearchIncidents(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, incidents)
}

func (h *SecurityHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.incidents.GetIncident(r.Context(), chi.URLParam(r, "incidentID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, incident)
}

func (h *SecurityHandler) TransitionIncident(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	incident, err := h.incidents.TransitionIncident(r.Context(), chi.URLParam(r, "incidentID"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, incident)
}

// RunSweeps executes all threat-detection sweeps and returns the alerts.
func (h *SecurityHandler) RunSweeps(w http.ResponseWriter, r *http.Request) {
	alerts := h.incidents.RunSweeps(r.Context())
	writeData(w, http.StatusOK, alerts)
}

// MemberAnomalies compares a member's recent activity to their baseline.
func (h *SecurityHandler) MemberAnomalies(w http.ResponseWriter, r *http.Request) {
	report, err := h.incidents.CheckMemberAnomalies(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, report)
}
