package security

import (
	"context"
	"time"

	"github.com/mattysabby19/taskly-api/internal/model"
)

type stubAuditRepo struct {
	inserted []*model.AuditEvent

	insertEventFn             func(ctx context.Context, event *model.AuditEvent) error
	listEventsByActorFn       func(ctx context.Context, actorID string, since time.Time) ([]*model.AuditEvent, error)
	countEventsByIPFn         func(ctx context.Context, eventType string, since time.Time) (map[string]int, error)
	countDistinctActorsByIPFn func(ctx context.Context, since time.Time) (map[string]int, error)
	countEventsByActorFn      func(ctx context.Context, eventType string, since time.Time) (map[string]int, error)
}

func (s *stubAuditRepo) InsertEvent(ctx context.Context, event *model.AuditEvent) error {
	if s.insertEventFn != nil {
		return s.insertEventFn(ctx, event)
	}
	s.inserted = append(s.inserted, event)
	return nil
}

func (s *stubAuditRepo) ListEventsByActor(ctx context.Context, actorID string, since time.Time) ([]*model.AuditEvent, error) {
	if s.listEventsByActorFn != nil {
		return s.listEventsByActorFn(ctx, actorID, since)
	}
	return nil, nil
}

func (s *stubAuditRepo) CountEventsByIP(ctx context.Context, eventType string, since time.Time) (map[string]int, error) {
	if s.countEventsByIPFn != nil {
		return s.countEventsByIPFn(ctx, eventType, since)
	}
	return nil, nil
}

func (s *stubAuditRepo) CountDistinctActorsByIP(ctx context.Context, since time.Time) (map[string]int, error) {
	if s.countDistinctActorsByIPFn != nil {
		return s.countDistinctActorsByIPFn(ctx, since)
	}
	return nil, nil
}

func (s *stubAuditRepo) CountEventsByActor(ctx context.Context, eventType string, since time.Time) (map[string]int, error) {
	if s.countEventsByActorFn != nil {
		return s.countEventsByActorFn(ctx, eventType, since)
	}
	return nil, nil
}

func (s *stubAuditRepo) AnonymizeActor(ctx context.Context, actorID string) error {
	return nil
}

type stubSessionRepo struct {
	recentSessions []*model.Session

	revokedAll       []string
	revokeAllReasons []string
}

func (s *stubSessionRepo) CreateSession(session *model.Session) error { return nil }

func (s *stubSessionRepo) GetSessionByTokenHash(tokenHash string) (*model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) ListActiveSessions(memberID string) ([]*model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) ListRecentSessions(since time.Time) ([]*model.Session, error) {
	return s.recentSessions, nil
}

func (s *stubSessionRepo) RevokeSession(sessionID, memberID, reason string) error { return nil }

func (s *stubSessionRepo) RevokeAllExcept(memberID, keepSessionID, reason string) (int, error) {
	return 0, nil
}

func (s *stubSessionRepo) RevokeAllSessions(memberID, reason string) error {
	s.revokedAll = append(s.revokedAll, memberID)
	s.revokeAllReasons = append(s.revokeAllReasons, reason)
	return nil
}

func (s *stubSessionRepo) TouchSession(session *model.Session, ipAddress string, autoLogoutAt time.Time) error {
	return nil
}

func (s *stubSessionRepo) DeleteMemberSessions(memberID string) error { return nil }

type stubIncidentRepo struct {
	created []*model.SecurityIncident

	createFn func(incident *model.SecurityIncident) error
}

func (s *stubIncidentRepo) CreateIncident(incident *model.SecurityIncident) error {
	if s.createFn != nil {
		return s.createFn(incident)
	}
	s.created = append(s.created, incident)
	return nil
}

func (s *stubIncidentRepo) GetIncidentByID(incidentID string) (*model.SecurityIncident, error) {
	return nil, nil
}

func (s *stubIncidentRepo) ListIncidentsByStatus(status string, limit int) ([]*model.SecurityIncident, error) {
	return nil, nil
}

func (s *stubIncidentRepo) UpdateIncidentStatus(incidentID, status string, resolvedAt time.Time) error {
	return nil
}

type stubSecurityCache struct {
	blockedIPs     []string
	lockedAccounts []string
	verifyRequired []string

	blockIPFn func(ip string, ttl time.Duration) error
}

func (s *stubSecurityCache) BlockIP(ipAddress string, ttl time.Duration) error {
	if s.blockIPFn != nil {
		return s.blockIPFn(ipAddress, ttl)
	}
	s.blockedIPs = append(s.blockedIPs, ipAddress)
	return nil
}

func (s *stubSecurityCache) IsIPBlocked(ipAddress string) (bool, error) { return false, nil }

func (s *stubSecurityCache) LockAccount(memberID string, ttl time.Duration) error {
	s.lockedAccounts = append(s.lockedAccounts, memberID)
	return nil
}

func (s *stubSecurityCache) IsAccountLocked(memberID string) (bool, error) { return false, nil }

func (s *stubSecurityCache) RequireVerification(memberID string, ttl time.Duration) error {
	s.verifyRequired = append(s.verifyRequired, memberID)
	return nil
}

func (s *stubSecurityCache) IsVerificationRequired(memberID string) (bool, error) {
	return false, nil
}

func (s *stubSecurityCache) StoreVerificationCode(memberID, codeHash string, ttl time.Duration) error {
	return nil
}

func (s *stubSecurityCache) GetVerificationCode(memberID string) (string, error) {
	return "", nil
}

func (s *stubSecurityCache) ClearVerification(memberID string) error { return nil }
