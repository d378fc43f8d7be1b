package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/repository/elasticsearch"
	"github.com/mattysabby19/taskly-api/internal/security"
)

var ErrInvalidTransition = errors.New("invalid incident status transition")

// Terminal statuses never transition again; "open" may move to any of the
// later stages directly.
var allowedTransitions = map[string]map[string]bool{
	"open": {
		"investigating":  true,
		"resolved":       true,
		"false_positive": true,
	},
	"investigating": {
		"resolved":       true,
		"false_positive": true,
	},
}

// IncidentService is the admin surface over the security subsystem:
// incident lifecycle, on-demand threat sweeps and behavior anomaly checks.
type IncidentService struct {
	incidents model.IncidentRepository
	indexer   *elasticsearch.IncidentIndexer
	detector  *security.ThreatDetector
	baseline  *security.BaselineAnalyzer
	logger    *zap.Logger
	now       func() time.Time
}

func NewIncidentService(
	incidents model.IncidentRepository,
	indexer *elasticsearch.IncidentIndexer,
	detector *security.ThreatDetector,
	baseline *security.BaselineAnalyzer,
	logger *zap.Logger,
) *IncidentService {
	return &IncidentService{
		incidents: incidents,
		indexer:   indexer,
		detector:  detector,
		baseline:  baseline,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *IncidentService) GetIncident(ctx context.Context, incidentID string) (*model.SecurityIncident, error) {
	return s.incidents.GetIncidentByID(incidentID)
}

func (s *IncidentService) ListIncidents(ctx context.Context, status string, limit int) ([]*model.SecurityIncident, error) {
	if status == "" {
		status = "open"
	}
	return s.incidents.ListIncidentsByStatus(status, limit)
}

// SearchIncidents queries the search index. Falls back to the primary
// store's status listing when no indexer is wired.
func (s *IncidentService) SearchIncidents(ctx context.Context, q elasticsearch.IncidentQuery) ([]*model.SecurityIncident, error) {
	if s.indexer == nil {
		return s.incidents.ListIncidentsByStatus(q.Status, q.Limit)
	}
	return s.indexer.SearchIncidents(ctx, q)
}

// TransitionIncident moves an incident through its lifecycle. Entering a
// terminal status stamps the resolution time; the search index is updated
// best-effort.
func (s *IncidentService) TransitionIncident(ctx context.Context, incidentID, status string) (*model.SecurityIncident, error) {
	incident, err := s.incidents.GetIncidentByID(incidentID)
	if err != nil {
		return nil, err
	}

	if !allowedTransitions[incident.Status][status] {
		return nil, ErrInvalidTransition
	}

	var resolvedAt time.Time
	if status == "resolved" || status == "false_positive" {
		resolvedAt = s.now().UTC()
	}

	if err := s.incidents.UpdateIncidentStatus(incidentID, status, resolvedAt); err != nil {
		return nil, err
	}

	incident.Status = status
	incident.ResolvedAt = resolvedAt

	if s.indexer != nil {
		if err := s.indexer.IndexIncident(ctx, incident); err != nil {
			s.logger.Warn("Failed to reindex incident after transition",
				zap.String("incident_id", incidentID),
				zap.Error(err))
		}
	}

	return incident, nil
}

// RunSweeps executes every threat-detection sweep and returns the alerts.
func (s *IncidentService) RunSweeps(ctx context.Context) []security.Alert {
	return s.detector.RunAll(ctx)
}

// CheckMemberAnomalies compares a member's recent activity to their
// baseline.
func (s *IncidentService) CheckMemberAnomalies(ctx context.Context, memberID string) (*security.AnomalyReport, error) {
	return s.baseline.CheckAnomalies(ctx, memberID)
}
