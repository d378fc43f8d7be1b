package security

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/bucketing"
	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/model"
)

// EventPublisher streams audit events to the security topic. Publishing is
// best-effort; the monitor never fails a request over it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.AuditEvent) error
}

// IncidentIndexer mirrors incidents into the search index for the admin
// surface.
type IncidentIndexer interface {
	IndexIncident(ctx context.Context, incident *model.SecurityIncident) error
}

// EventContext identifies who did what from where for one audit event.
type EventContext struct {
	ActorID           string
	SessionID         string
	GroupID           string
	IPAddress         string
	DeviceFingerprint string
	Details           Details
	Extra             map[string]interface{}
}

// Monitor is the security monitoring pipeline: score the event, append it
// to the audit store, stream it, and above the configured thresholds open
// an incident and fire the automated response.
type Monitor struct {
	audit     model.AuditRepository
	incidents model.IncidentRepository
	indexer   IncidentIndexer
	publisher EventPublisher
	responder *Responder
	buckets   *bucketing.Manager
	cfg       config.SecurityConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewMonitor(
	audit model.AuditRepository,
	incidents model.IncidentRepository,
	indexer IncidentIndexer,
	publisher EventPublisher,
	responder *Responder,
	buckets *bucketing.Manager,
	cfg config.SecurityConfig,
	logger *zap.Logger,
) *Monitor {
	if missing := MissingScoreEntries(); len(missing) > 0 {
		for _, et := range missing {
			logger.Warn("Event type has no base risk score, will default at runtime",
				zap.String("event_type", string(et)))
		}
	}

	return &Monitor{
		audit:     audit,
		incidents: incidents,
		indexer:   indexer,
		publisher: publisher,
		responder: responder,
		buckets:   buckets,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// LogEvent records one security event. It never returns an error: audit
// logging is a side effect of the primary request and failures here are
// logged and swallowed so they cannot block the response. The computed risk
// score is returned for callers that want it.
func (m *Monitor) LogEvent(ctx context.Context, eventType EventType, ec EventContext) int {
	now := m.now().UTC()
	ec.Details.HourOfDay = now.Hour()
	score := Score(eventType, ec.Details)

	details := "{}"
	if len(ec.Extra) > 0 {
		if raw, err := json.Marshal(ec.Extra); err == nil {
			details = string(raw)
		}
	}

	event := &model.AuditEvent{
		EventBucket:       m.buckets.EventBucket(ec.ActorID + ec.IPAddress),
		EventDate:         now.Format("2006-01-02"),
		EventTime:         now,
		EventType:         string(eventType),
		ActorID:           ec.ActorID,
		SessionID:         ec.SessionID,
		GroupID:           ec.GroupID,
		IPAddress:         ec.IPAddress,
		DeviceFingerprint: ec.DeviceFingerprint,
		RiskScore:         score,
		Details:           details,
	}

	if err := m.audit.InsertEvent(ctx, event); err != nil {
		m.logger.Error("Failed to write audit event",
			zap.String("event_type", string(eventType)),
			zap.String("actor_id", ec.ActorID),
			zap.Error(err))
	}

	if m.publisher != nil {
		if err := m.publisher.PublishEvent(ctx, event); err != nil {
			m.logger.Warn("Failed to publish audit event",
				zap.String("event_type", string(eventType)),
				zap.Error(err))
		}
	}

	if score >= m.cfg.HighRiskThreshold {
		m.openIncident(ctx, eventType, event)
	}

	return score
}

func (m *Monitor) openIncident(ctx context.Context, eventType EventType, event *model.AuditEvent) {
	response := ResponseLogged
	if event.RiskScore >= m.cfg.AutoBlockThreshold {
		response = m.responder.Respond(ctx, eventType, event)
	}

	incident := &model.SecurityIncident{
		IncidentID:        uuid.New().String(),
		IncidentType:      string(eventType),
		Severity:          string(SeverityForScore(event.RiskScore)),
		MemberID:          event.ActorID,
		SessionID:         event.SessionID,
		IPAddress:         event.IPAddress,
		Details:           event.Details,
		AutomatedResponse: response,
		Status:            "open",
		DetectedAt:        event.EventTime,
	}

	if err := m.incidents.CreateIncident(incident); err != nil {
		m.logger.Error("Failed to create security incident",
			zap.String("incident_type", incident.IncidentType),
			zap.Error(err))
		return
	}

	if m.indexer != nil {
		if err := m.indexer.IndexIncident(ctx, incident); err != nil {
			m.logger.Warn("Failed to index security incident",
				zap.String("incident_id", incident.IncidentID),
				zap.Error(err))
		}
	}

	m.logger.Warn("Security incident opened",
		zap.String("incident_id", incident.IncidentID),
		zap.String("incident_type", incident.IncidentType),
		zap.String("severity", incident.Severity),
		zap.Int("risk_score", event.RiskScore))
}
