package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/bucketing"
	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/identity"
	"github.com/mattysabby19/taskly-api/internal/model"
	redisrepo "github.com/mattysabby19/taskly-api/internal/repository/redis"
	"github.com/mattysabby19/taskly-api/internal/repository/scylla"
	"github.com/mattysabby19/taskly-api/internal/security"
)

// recordingAudit captures every audit event the monitor writes so tests
// can assert on the exact event stream.
type recordingAudit struct {
	events []*model.AuditEvent

	listEventsByActorFn func(ctx context.Context, actorID string, since time.Time) ([]*model.AuditEvent, error)
	anonymized          []string
}

func (r *recordingAudit) InsertEvent(_ context.Context, event *model.AuditEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) ListEventsByActor(ctx context.Context, actorID string, since time.Time) ([]*model.AuditEvent, error) {
	if r.listEventsByActorFn != nil {
		return r.listEventsByActorFn(ctx, actorID, since)
	}
	return nil, nil
}

func (r *recordingAudit) CountEventsByIP(context.Context, string, time.Time) (map[string]int, error) {
	return nil, nil
}

func (r *recordingAudit) CountDistinctActorsByIP(context.Context, time.Time) (map[string]int, error) {
	return nil, nil
}

func (r *recordingAudit) CountEventsByActor(context.Context, string, time.Time) (map[string]int, error) {
	return nil, nil
}

func (r *recordingAudit) AnonymizeActor(_ context.Context, actorID string) error {
	r.anonymized = append(r.anonymized, actorID)
	return nil
}

func (r *recordingAudit) eventTypes() []string {
	var types []string
	for _, ev := range r.events {
		types = append(types, ev.EventType)
	}
	return types
}

func (r *recordingAudit) countType(eventType security.EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.EventType == string(eventType) {
			n++
		}
	}
	return n
}

type recordingIncidents struct {
	created []*model.SecurityIncident
}

func (r *recordingIncidents) CreateIncident(incident *model.SecurityIncident) error {
	r.created = append(r.created, incident)
	return nil
}

func (r *recordingIncidents) GetIncidentByID(string) (*model.SecurityIncident, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingIncidents) ListIncidentsByStatus(string, int) ([]*model.SecurityIncident, error) {
	return nil, nil
}

func (r *recordingIncidents) UpdateIncidentStatus(string, string, time.Time) error { return nil }

type revocation struct {
	sessionID string
	memberID  string
	reason    string
}

type stubSessionRepo struct {
	sessionsByHash map[string]*model.Session
	active         []*model.Session
	created        []*model.Session
	lookupErr      error

	revocations      []revocation
	revokeAllExcepts []revocation
	revokedCount     int
	touched          []*model.Session
	touchedDeadlines []time.Time
	deletedMembers   []string
}

func (s *stubSessionRepo) CreateSession(session *model.Session) error {
	s.created = append(s.created, session)
	return nil
}

func (s *stubSessionRepo) GetSessionByTokenHash(tokenHash string) (*model.Session, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if session, ok := s.sessionsByHash[tokenHash]; ok {
		return session, nil
	}
	return nil, scylla.ErrSessionNotFound
}

func (s *stubSessionRepo) ListActiveSessions(string) ([]*model.Session, error) {
	return s.active, nil
}

func (s *stubSessionRepo) ListRecentSessions(time.Time) ([]*model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) RevokeSession(sessionID, memberID, reason string) error {
	s.revocations = append(s.revocations, revocation{sessionID, memberID, reason})
	return nil
}

func (s *stubSessionRepo) RevokeAllExcept(memberID, keepSessionID, reason string) (int, error) {
	s.revokeAllExcepts = append(s.revokeAllExcepts, revocation{keepSessionID, memberID, reason})
	return s.revokedCount, nil
}

func (s *stubSessionRepo) RevokeAllSessions(memberID, reason string) error {
	s.revocations = append(s.revocations, revocation{"", memberID, reason})
	return nil
}

func (s *stubSessionRepo) TouchSession(session *model.Session, _ string, autoLogoutAt time.Time) error {
	s.touched = append(s.touched, session)
	s.touchedDeadlines = append(s.touchedDeadlines, autoLogoutAt)
	return nil
}

func (s *stubSessionRepo) DeleteMemberSessions(memberID string) error {
	s.deletedMembers = append(s.deletedMembers, memberID)
	return nil
}

type stubMemberRepo struct {
	members        map[string]*model.Member
	membersByEmail map[string]*model.Member
	lastLogins     []string
	deleted        []string
}

func (s *stubMemberRepo) CreateMember(member *model.Member) error {
	if s.members == nil {
		s.members = make(map[string]*model.Member)
	}
	s.members[member.MemberID] = member
	return nil
}

func (s *stubMemberRepo) GetMemberByID(memberID string) (*model.Member, error) {
	if member, ok := s.members[memberID]; ok {
		return member, nil
	}
	return nil, errors.New("member not found")
}

func (s *stubMemberRepo) GetMemberByEmail(email string) (*model.Member, error) {
	if member, ok := s.membersByEmail[email]; ok {
		return member, nil
	}
	return nil, errors.New("member not found")
}

func (s *stubMemberRepo) UpdateLastLogin(memberID, _ string) error {
	s.lastLogins = append(s.lastLogins, memberID)
	return nil
}

func (s *stubMemberRepo) DeactivateMember(string) error { return nil }

func (s *stubMemberRepo) DeleteMember(memberID string) error {
	s.deleted = append(s.deleted, memberID)
	return nil
}

type stubSecurityCache struct {
	lockedAccounts map[string]bool
	verifyRequired map[string]bool
	verifyCodes    map[string]string
	blockedIPs     []string
}

func (s *stubSecurityCache) BlockIP(ipAddress string, _ time.Duration) error {
	s.blockedIPs = append(s.blockedIPs, ipAddress)
	return nil
}

func (s *stubSecurityCache) IsIPBlocked(string) (bool, error) { return false, nil }

func (s *stubSecurityCache) LockAccount(memberID string, _ time.Duration) error {
	if s.lockedAccounts == nil {
		s.lockedAccounts = make(map[string]bool)
	}
	s.lockedAccounts[memberID] = true
	return nil
}

func (s *stubSecurityCache) IsAccountLocked(memberID string) (bool, error) {
	return s.lockedAccounts[memberID], nil
}

func (s *stubSecurityCache) RequireVerification(memberID string, _ time.Duration) error {
	if s.verifyRequired == nil {
		s.verifyRequired = make(map[string]bool)
	}
	s.verifyRequired[memberID] = true
	return nil
}

func (s *stubSecurityCache) IsVerificationRequired(memberID string) (bool, error) {
	return s.verifyRequired[memberID], nil
}

func (s *stubSecurityCache) StoreVerificationCode(memberID, codeHash string, _ time.Duration) error {
	if s.verifyCodes == nil {
		s.verifyCodes = make(map[string]string)
	}
	s.verifyCodes[memberID] = codeHash
	return nil
}

func (s *stubSecurityCache) GetVerificationCode(memberID string) (string, error) {
	if codeHash, ok := s.verifyCodes[memberID]; ok {
		return codeHash, nil
	}
	return "", redisrepo.ErrNoVerificationCode
}

func (s *stubSecurityCache) ClearVerification(memberID string) error {
	delete(s.verifyRequired, memberID)
	delete(s.verifyCodes, memberID)
	return nil
}

type stubSessionCache struct {
	activeSessions map[string]string
	invalidated    []string
}

func (s *stubSessionCache) SetActiveSession(memberID, sessionID string, _ time.Duration) error {
	if s.activeSessions == nil {
		s.activeSessions = make(map[string]string)
	}
	s.activeSessions[memberID] = sessionID
	return nil
}

func (s *stubSessionCache) GetActiveSession(memberID string) (string, error) {
	if id, ok := s.activeSessions[memberID]; ok {
		return id, nil
	}
	return "", errors.New("not cached")
}

func (s *stubSessionCache) InvalidateSession(memberID string) error {
	s.invalidated = append(s.invalidated, memberID)
	return nil
}

// stubVerifier resolves tokens from a fixed table; unknown tokens fail
// the way a bad signature would.
type stubVerifier struct {
	identities map[string]*identity.Identity
}

func (s *stubVerifier) Verify(token string) (*identity.Identity, error) {
	if id, ok := s.identities[token]; ok {
		return id, nil
	}
	return nil, identity.ErrUnresolvedToken
}

type stubGroupRepo struct {
	memberships     map[string]*model.Membership // key groupID+":"+memberID
	rolePermissions map[string][]string
	groups          map[string]*model.Group

	added          []*model.Membership
	removed        []string
	roleUpdates    []string
	deletedMembers []string
}

func (s *stubGroupRepo) CreateGroup(group *model.Group) error {
	if s.groups == nil {
		s.groups = make(map[string]*model.Group)
	}
	s.groups[group.GroupID] = group
	return nil
}

func (s *stubGroupRepo) GetGroupByID(groupID string) (*model.Group, error) {
	if group, ok := s.groups[groupID]; ok {
		return group, nil
	}
	return nil, errors.New("group not found")
}

func (s *stubGroupRepo) AddMembership(membership *model.Membership) error {
	s.added = append(s.added, membership)
	if s.memberships == nil {
		s.memberships = make(map[string]*model.Membership)
	}
	s.memberships[membership.GroupID+":"+membership.MemberID] = membership
	return nil
}

func (s *stubGroupRepo) GetMembership(groupID, memberID string) (*model.Membership, error) {
	if m, ok := s.memberships[groupID+":"+memberID]; ok {
		return m, nil
	}
	return nil, errors.New("membership not found")
}

func (s *stubGroupRepo) ListMemberships(string) ([]*model.Membership, error) { return nil, nil }

func (s *stubGroupRepo) ListMemberGroups(string) ([]*model.Membership, error) { return nil, nil }

func (s *stubGroupRepo) UpdateMembershipRole(groupID, memberID, role string) error {
	s.roleUpdates = append(s.roleUpdates, groupID+":"+memberID+":"+role)
	return nil
}

func (s *stubGroupRepo) RemoveMembership(groupID, memberID string) error {
	s.removed = append(s.removed, groupID+":"+memberID)
	return nil
}

func (s *stubGroupRepo) GetRolePermissions(role string) ([]string, error) {
	if perms, ok := s.rolePermissions[role]; ok {
		return perms, nil
	}
	return nil, errors.New("role not found")
}

func (s *stubGroupRepo) DeleteMemberMemberships(memberID string) error {
	s.deletedMembers = append(s.deletedMembers, memberID)
	return nil
}

type stubTaskRepo struct {
	tasks map[string]*model.Task // key groupID+":"+taskID

	created    []*model.Task
	updated    []*model.Task
	deleted    []string
	unassigned []string
}

func (s *stubTaskRepo) CreateTask(task *model.Task) error {
	s.created = append(s.created, task)
	return nil
}

func (s *stubTaskRepo) GetTaskByID(groupID, taskID string) (*model.Task, error) {
	if task, ok := s.tasks[groupID+":"+taskID]; ok {
		return task, nil
	}
	return nil, errors.New("task not found")
}

func (s *stubTaskRepo) ListTasks(string, model.TaskFilter) ([]*model.Task, error) {
	return nil, nil
}

func (s *stubTaskRepo) ListMemberTasks(string) ([]*model.Task, error) { return nil, nil }

func (s *stubTaskRepo) UpdateTask(task *model.Task) error {
	s.updated = append(s.updated, task)
	return nil
}

func (s *stubTaskRepo) DeleteTask(groupID, taskID string) error {
	s.deleted = append(s.deleted, groupID+":"+taskID)
	return nil
}

func (s *stubTaskRepo) UnassignMemberTasks(memberID string) error {
	s.unassigned = append(s.unassigned, memberID)
	return nil
}

type stubConsentRepo struct {
	consents map[string]*model.Consent // key memberID+":"+purpose

	upserted       []*model.Consent
	deletedMembers []string
}

func (s *stubConsentRepo) UpsertConsent(consent *model.Consent) error {
	s.upserted = append(s.upserted, consent)
	if s.consents == nil {
		s.consents = make(map[string]*model.Consent)
	}
	s.consents[consent.MemberID+":"+consent.Purpose] = consent
	return nil
}

func (s *stubConsentRepo) GetConsent(memberID, purpose string) (*model.Consent, error) {
	if consent, ok := s.consents[memberID+":"+purpose]; ok {
		return consent, nil
	}
	return nil, errors.New("consent not found")
}

func (s *stubConsentRepo) ListConsents(string) ([]*model.Consent, error) { return nil, nil }

func (s *stubConsentRepo) DeleteMemberConsents(memberID string) error {
	s.deletedMembers = append(s.deletedMembers, memberID)
	return nil
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		HighRiskThreshold: 70,
		// Above any possible score: these tests assert on the event
		// stream, not on automated responses.
		AutoBlockThreshold:   101,
		IPBlockDuration:      time.Hour,
		AccountLockDuration:  15 * time.Minute,
		VerificationDuration: time.Hour,
	}
}

// newTestMonitor builds a real monitor over recording stubs so service
// tests observe the actual event pipeline.
func newTestMonitor(audit *recordingAudit, incidents *recordingIncidents, cache *stubSecurityCache, sessions *stubSessionRepo) *security.Monitor {
	cfg := testSecurityConfig()
	responder := security.NewResponder(cache, sessions, cfg, zap.NewNop())
	buckets := bucketing.NewManager(config.BucketingConfig{EventBuckets: 16})
	return security.NewMonitor(audit, incidents, nil, nil, responder, buckets, cfg, zap.NewNop())
}
