package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/util"
)

var ErrIncidentNotFound = fmt.Errorf("incident not found")

// IncidentRepository is the system of record for security incidents. The
// search surface lives in Elasticsearch; this table owns the lifecycle.
type IncidentRepository struct {
	client *ScyllaClient
}

func NewIncidentRepository(client *ScyllaClient) *IncidentRepository {
	return &IncidentRepository{client: client}
}

func (r *IncidentRepository) CreateIncident(incident *model.SecurityIncident) error {
	if incident.IncidentID == "" {
		incident.IncidentID = uuid.New().String()
	}
	if incident.Status == "" {
		incident.Status = "open"
	}
	if incident.DetectedAt.IsZero() {
		incident.DetectedAt = time.Now().UTC()
	}

	err := r.client.Session.Query(`
        INSERT INTO security_incidents (incident_id, incident_type, severity,
            member_id, session_id, ip_address, details, automated_response,
            status, detected_at, resolved_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.IncidentID, incident.IncidentType, incident.Severity,
		incident.MemberID, incident.SessionID, incident.IPAddress,
		incident.Details, incident.AutomatedResponse, incident.Status,
		incident.DetectedAt, incident.ResolvedAt).Exec()
	if err != nil {
		util.Error("Failed to create incident",
			zap.String("incident_type", incident.IncidentType),
			zap.Error(err))
		return fmt.Errorf("failed to create incident: %w", err)
	}

	return nil
}

func (r *IncidentRepository) GetIncidentByID(incidentID string) (*model.SecurityIncident, error) {
	incident := &model.SecurityIncident{}
	err := r.client.Session.Query(`
        SELECT incident_id, incident_type, severity, member_id, session_id,
               ip_address, details, automated_response, status, detected_at,
               resolved_at
        FROM security_incidents WHERE incident_id = ?`, incidentID).Scan(
		&incident.IncidentID, &incident.IncidentType, &incident.Severity,
		&incident.MemberID, &incident.SessionID, &incident.IPAddress,
		&incident.Details, &incident.AutomatedResponse, &incident.Status,
		&incident.DetectedAt, &incident.ResolvedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrIncidentNotFound
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

func (r *IncidentRepository) ListIncidentsByStatus(status string, limit int) ([]*model.SecurityIncident, error) {
	if limit <= 0 {
		limit = 100
	}

	var incidents []*model.SecurityIncident
	iter := r.client.Session.Query(`
        SELECT incident_id, incident_type, severity, member_id, session_id,
               ip_address, details, automated_response, status, detected_at,
               resolved_at
        FROM security_incidents WHERE status = ? LIMIT ? ALLOW FILTERING`,
		status, limit).Iter()
	for {
		incident := &model.SecurityIncident{}
		if !iter.Scan(&incident.IncidentID, &incident.IncidentType, &incident.Severity,
			&incident.MemberID, &incident.SessionID, &incident.IPAddress,
			&incident.Details, &incident.AutomatedResponse, &incident.Status,
			&incident.DetectedAt, &incident.ResolvedAt) {
			break
		}
		incidents = append(incidents, incident)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return incidents, nil
}

func (r *IncidentRepository) UpdateIncidentStatus(incidentID, status string, resolvedAt time.Time) error {
	err := r.client.Session.Query(`
        UPDATE security_incidents SET status = ?, resolved_at = ?
        WHERE incident_id = ?`, status, resolvedAt, incidentID).Exec()
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}

	util.Info("Incident status updated",
		zap.String("incident_id", incidentID),
		zap.String("status", status))
	return nil
}
