package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/repository/elasticsearch"
)

type statusUpdate struct {
	incidentID string
	status     string
	resolvedAt time.Time
}

// lifecycleIncidents serves reads from a fixed map and records status
// updates.
type lifecycleIncidents struct {
	byID    map[string]*model.SecurityIncident
	listed  []string
	updates []statusUpdate
}

func (l *lifecycleIncidents) CreateIncident(*model.SecurityIncident) error { return nil }

func (l *lifecycleIncidents) GetIncidentByID(incidentID string) (*model.SecurityIncident, error) {
	if incident, ok := l.byID[incidentID]; ok {
		return incident, nil
	}
	return nil, errors.New("incident not found")
}

func (l *lifecycleIncidents) ListIncidentsByStatus(status string, _ int) ([]*model.SecurityIncident, error) {
	l.listed = append(l.listed, status)
	return nil, nil
}

func (l *lifecycleIncidents) UpdateIncidentStatus(incidentID, status string, resolvedAt time.Time) error {
	l.updates = append(l.updates, statusUpdate{incidentID, status, resolvedAt})
	return nil
}

func newIncidentService(repo *lifecycleIncidents) *IncidentService {
	return NewIncidentService(repo, nil, nil, nil, zap.NewNop())
}

func TestListIncidentsDefaultsToOpen(t *testing.T) {
	repo := &lifecycleIncidents{}
	svc := newIncidentService(repo)

	if _, err := svc.ListIncidents(context.Background(), "", 20); err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}
	if len(repo.listed) != 1 || repo.listed[0] != "open" {
		t.Errorf("listed statuses = %v, want [open]", repo.listed)
	}
}

func TestTransitionIncidentStampsResolution(t *testing.T) {
	repo := &lifecycleIncidents{byID: map[string]*model.SecurityIncident{
		"inc-1": {IncidentID: "inc-1", Status: "open"},
	}}
	svc := newIncidentService(repo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	incident, err := svc.TransitionIncident(context.Background(), "inc-1", "resolved")
	if err != nil {
		t.Fatalf("TransitionIncident: %v", err)
	}

	if incident.Status != "resolved" {
		t.Errorf("status = %s, want resolved", incident.Status)
	}
	if !incident.ResolvedAt.Equal(now) {
		t.Errorf("resolved at = %v, want the transition time", incident.ResolvedAt)
	}
	if len(repo.updates) != 1 || !repo.updates[0].resolvedAt.Equal(now) {
		t.Errorf("stored updates = %+v, want one with the resolution stamp", repo.updates)
	}
}

func TestTransitionIncidentToInvestigatingHasNoResolution(t *testing.T) {
	repo := &lifecycleIncidents{byID: map[string]*model.SecurityIncident{
		"inc-1": {IncidentID: "inc-1", Status: "open"},
	}}
	svc := newIncidentService(repo)

	incident, err := svc.TransitionIncident(context.Background(), "inc-1", "investigating")
	if err != nil {
		t.Fatalf("TransitionIncident: %v", err)
	}
	if !incident.ResolvedAt.IsZero() {
		t.Errorf("resolved at = %v, want zero for a non-terminal status", incident.ResolvedAt)
	}
}

func TestTransitionIncidentRejectsInvalidMoves(t *testing.T) {
	tests := []struct {
		from, to string
	}{
		{"resolved", "open"},
		{"resolved", "investigating"},
		{"false_positive", "resolved"},
		{"investigating", "open"},
		{"open", "open"},
	}

	for _, tt := range tests {
		repo := &lifecycleIncidents{byID: map[string]*model.SecurityIncident{
			"inc-1": {IncidentID: "inc-1", Status: tt.from},
		}}
		svc := newIncidentService(repo)

		_, err := svc.TransitionIncident(context.Background(), "inc-1", tt.to)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("transition %s -> %s: err = %v, want ErrInvalidTransition", tt.from, tt.to, err)
		}
		if len(repo.updates) != 0 {
			t.Errorf("transition %s -> %s still stored an update", tt.from, tt.to)
		}
	}
}

func TestSearchIncidentsFallsBackWithoutIndexer(t *testing.T) {
	repo := &lifecycleIncidents{}
	svc := newIncidentService(repo)

	if _, err := svc.SearchIncidents(context.Background(), elasticsearch.IncidentQuery{Status: "investigating"}); err != nil {
		t.Fatalf("SearchIncidents: %v", err)
	}
	if len(repo.listed) != 1 || repo.listed[0] != "investigating" {
		t.Errorf("listed statuses = %v, want [investigating]", repo.listed)
	}
}
