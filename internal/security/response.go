package security

import (
	"context"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/model"
)

// Automated response descriptions recorded on incidents.
const (
	ResponseIPBlocked            = "ip_blocked"
	ResponseVerificationRequired = "verification_required"
	ResponseAccountLocked        = "account_locked"
	ResponseSessionsRevoked      = "sessions_revoked"
	ResponseLogged               = "logged"
)

// Responder dispatches the automated response for a high-risk event. One
// fixed action per event type, looked up in a static table; no cancellation,
// composition or escalation.
type Responder struct {
	cache    model.SecurityCache
	sessions model.SessionRepository
	cfg      config.SecurityConfig
	logger   *zap.Logger

	actions map[EventType]func(context.Context, *model.AuditEvent) (string, error)
}

func NewResponder(cache model.SecurityCache, sessions model.SessionRepository, cfg config.SecurityConfig, logger *zap.Logger) *Responder {
	r := &Responder{
		cache:    cache,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}

	r.actions = map[EventType]func(context.Context, *model.AuditEvent) (string, error){
		EventLoginFailed:            r.blockIP,
		EventRateLimitExceeded:      r.blockIP,
		EventInvalidToken:           r.requireVerification,
		EventSessionNotFound:        r.requireVerification,
		EventMultipleActiveSessions: r.revokeSessions,
		EventPermissionDenied:       r.lockAccount,
		EventRoleDenied:             r.lockAccount,
		EventGroupDenied:            r.lockAccount,
	}

	return r
}

// Respond runs the action mapped to the event type and returns its
// description. Unmapped types fall back to log-only. Action failures are
// logged and reported as log-only; they never propagate.
func (r *Responder) Respond(ctx context.Context, eventType EventType, event *model.AuditEvent) string {
	action, ok := r.actions[eventType]
	if !ok {
		r.logger.Info("No automated response mapped, logging only",
			zap.String("event_type", string(eventType)),
			zap.Int("risk_score", event.RiskScore))
		return ResponseLogged
	}

	description, err := action(ctx, event)
	if err != nil {
		r.logger.Error("Automated response failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		return ResponseLogged
	}

	r.logger.Warn("Automated response executed",
		zap.String("event_type", string(eventType)),
		zap.String("response", description),
		zap.String("actor_id", event.ActorID),
		zap.String("ip_address", event.IPAddress))
	return description
}

func (r *Responder) blockIP(_ context.Context, event *model.AuditEvent) (string, error) {
	if event.IPAddress == "" {
		return ResponseLogged, nil
	}
	if err := r.cache.BlockIP(event.IPAddress, r.cfg.IPBlockDuration); err != nil {
		return "", err
	}
	return ResponseIPBlocked, nil
}

func (r *Responder) requireVerification(_ context.Context, event *model.AuditEvent) (string, error) {
	if event.ActorID == "" {
		return ResponseLogged, nil
	}
	if err := r.cache.RequireVerification(event.ActorID, r.cfg.VerificationDuration); err != nil {
		return "", err
	}
	return ResponseVerificationRequired, nil
}

func (r *Responder) lockAccount(_ context.Context, event *model.AuditEvent) (string, error) {
	if event.ActorID == "" {
		return ResponseLogged, nil
	}
	if err := r.cache.LockAccount(event.ActorID, r.cfg.AccountLockDuration); err != nil {
		return "", err
	}
	return ResponseAccountLocked, nil
}

func (r *Responder) revokeSessions(_ context.Context, event *model.AuditEvent) (string, error) {
	if event.ActorID == "" {
		return ResponseLogged, nil
	}
	if err := r.sessions.RevokeAllSessions(event.ActorID, "security"); err != nil {
		return "", err
	}
	return ResponseSessionsRevoked, nil
}
