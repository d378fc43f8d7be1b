package model

import (
	"context"
	"time"
)

// -------------------- MEMBER MODEL --------------------
type Member struct {
	MemberID    string    `json:"member_id" db:"member_id"` // UUID
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	LastLoginAt time.Time `json:"last_login_at" db:"last_login_at"`
	LastLoginIP string    `json:"last_login_ip" db:"last_login_ip"` // for compliance
}

// -------------------- GROUP / MEMBERSHIP MODELS --------------------
type Group struct {
	GroupID   string    `json:"group_id" db:"group_id"` // UUID
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Membership struct {
	GroupID  string    `json:"group_id" db:"group_id"`
	MemberID string    `json:"member_id" db:"member_id"`
	Role     string    `json:"role" db:"role"` // admin, member, viewer
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// -------------------- TASK MODEL --------------------
type Task struct {
	TaskID      string    `json:"task_id" db:"task_id"` // UUID
	GroupID     string    `json:"group_id" db:"group_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"` // pending, in_progress, completed
	AssigneeID  string    `json:"assignee_id" db:"assignee_id"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	DueAt       time.Time `json:"due_at" db:"due_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// TaskFilter narrows task listings; zero values mean "no filter".
type TaskFilter struct {
	Status     string
	AssigneeID string
	DueBefore  time.Time
	DueAfter   time.Time
}

// -------------------- SESSION MODEL --------------------
// At most one active session per member (single-session policy). Violations
// are detected on authenticated requests and resolved by revoking all
// sessions except the current one.
type Session struct {
	SessionID         string    `json:"session_id" db:"session_id"` // UUID
	MemberID          string    `json:"member_id" db:"member_id"`
	TokenHash         string    `json:"-" db:"token_hash"` // SHA-256 token digest, never serialized
	DeviceID          string    `json:"device_id" db:"device_id"`
	DeviceFingerprint string    `json:"device_fingerprint" db:"device_fingerprint"`
	IPAddress         string    `json:"ip_address" db:"ip_address"`
	UserAgent         string    `json:"user_agent" db:"user_agent"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	LastActivity      time.Time `json:"last_activity" db:"last_activity"`
	AutoLogoutAt      time.Time `json:"auto_logout_at" db:"auto_logout_at"` // inactivity deadline
	ExpiresAt         time.Time `json:"expires_at" db:"expires_at"`         // hard expiry
	IsActive          bool      `json:"is_active" db:"is_active"`
	RevokedReason     string    `json:"revoked_reason" db:"revoked_reason"` // expired, auto_logout, logout, multiple_sessions, security
}

// -------------------- AUDIT EVENT MODEL --------------------
// Append-only. Rows are never updated or deleted; GDPR deletion anonymizes
// the actor reference instead.
type AuditEvent struct {
	EventBucket       int       `json:"event_bucket" db:"event_bucket"`
	EventDate         string    `json:"event_date" db:"event_date"` // YYYY-MM-DD partition helper
	EventTime         time.Time `json:"event_time" db:"event_time"`
	EventType         string    `json:"event_type" db:"event_type"`
	ActorID           string    `json:"actor_id" db:"actor_id"`
	SessionID         string    `json:"session_id" db:"session_id"`
	GroupID           string    `json:"group_id" db:"group_id"`
	IPAddress         string    `json:"ip_address" db:"ip_address"`
	DeviceFingerprint string    `json:"device_fingerprint" db:"device_fingerprint"`
	RiskScore         int       `json:"risk_score" db:"risk_score"`
	Details           string    `json:"details" db:"details"` // free-form JSON
}

// -------------------- SECURITY INCIDENT MODEL --------------------
type SecurityIncident struct {
	IncidentID        string    `json:"incident_id" db:"incident_id"` // UUID
	IncidentType      string    `json:"incident_type" db:"incident_type"`
	Severity          string    `json:"severity" db:"severity"` // low, medium, high, critical
	MemberID          string    `json:"member_id" db:"member_id"`
	SessionID         string    `json:"session_id" db:"session_id"`
	IPAddress         string    `json:"ip_address" db:"ip_address"`
	Details           string    `json:"details" db:"details"`
	AutomatedResponse string    `json:"automated_response" db:"automated_response"`
	Status            string    `json:"status" db:"status"` // open, investigating, resolved, false_positive
	DetectedAt        time.Time `json:"detected_at" db:"detected_at"`
	ResolvedAt        time.Time `json:"resolved_at" db:"resolved_at"`
}

// -------------------- CONSENT MODEL --------------------
type Consent struct {
	MemberID  string    `json:"member_id" db:"member_id"`
	Purpose   string    `json:"purpose" db:"purpose"` // e.g. "analytics", "data_processing"
	Granted   bool      `json:"granted" db:"granted"`
	Version   string    `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// -------------------- REPOSITORY INTERFACES --------------------

// MemberRepository defines the interface for member data operations
type MemberRepository interface {
	CreateMember(member *Member) error
	GetMemberByID(memberID string) (*Member, error)
	GetMemberByEmail(email string) (*Member, error)
	UpdateLastLogin(memberID, loginIP string) error
	DeactivateMember(memberID string) error
	DeleteMember(memberID string) error
}

// SessionRepository defines the interface for session data operations
type SessionRepository interface {
	CreateSession(session *Session) error
	GetSessionByTokenHash(tokenHash string) (*Session, error)
	ListActiveSessions(memberID string) ([]*Session, error)
	ListRecentSessions(since time.Time) ([]*Session, error)
	RevokeSession(sessionID, memberID, reason string) error
	RevokeAllExcept(memberID, keepSessionID, reason string) (int, error)
	RevokeAllSessions(memberID, reason string) error
	TouchSession(session *Session, ipAddress string, autoLogoutAt time.Time) error
	DeleteMemberSessions(memberID string) error
}

// GroupRepository defines the interface for group and membership operations
type GroupRepository interface {
	CreateGroup(group *Group) error
	GetGroupByID(groupID string) (*Group, error)
	AddMembership(membership *Membership) error
	GetMembership(groupID, memberID string) (*Membership, error)
	ListMemberships(groupID string) ([]*Membership, error)
	ListMemberGroups(memberID string) ([]*Membership, error)
	UpdateMembershipRole(groupID, memberID, role string) error
	RemoveMembership(groupID, memberID string) error
	GetRolePermissions(role string) ([]string, error)
	DeleteMemberMemberships(memberID string) error
}

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	CreateTask(task *Task) error
	GetTaskByID(groupID, taskID string) (*Task, error)
	ListTasks(groupID string, filter TaskFilter) ([]*Task, error)
	ListMemberTasks(memberID string) ([]*Task, error)
	UpdateTask(task *Task) error
	DeleteTask(groupID, taskID string) error
	UnassignMemberTasks(memberID string) error
}

// ConsentRepository defines the interface for consent data operations
type ConsentRepository interface {
	UpsertConsent(consent *Consent) error
	GetConsent(memberID, purpose string) (*Consent, error)
	ListConsents(memberID string) ([]*Consent, error)
	DeleteMemberConsents(memberID string) error
}

// IncidentRepository defines the interface for security incident operations
type IncidentRepository interface {
	CreateIncident(incident *SecurityIncident) error
	GetIncidentByID(incidentID string) (*SecurityIncident, error)
	ListIncidentsByStatus(status string, limit int) ([]*SecurityIncident, error)
	UpdateIncidentStatus(incidentID, status string, resolvedAt time.Time) error
}

// AuditRepository defines the interface for the append-only audit event
// store. The aggregation methods back the threat-detection sweeps and the
// behavior baseline; all of them read a trailing time window.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *AuditEvent) error
	ListEventsByActor(ctx context.Context, actorID string, since time.Time) ([]*AuditEvent, error)
	CountEventsByIP(ctx context.Context, eventType string, since time.Time) (map[string]int, error)
	CountDistinctActorsByIP(ctx context.Context, since time.Time) (map[string]int, error)
	CountEventsByActor(ctx context.Context, eventType string, since time.Time) (map[string]int, error)
	AnonymizeActor(ctx context.Context, actorID string) error
}

// -------------------- CACHE INTERFACES --------------------

// RateLimitCache defines the interface for rate limiting operations
type RateLimitCache interface {
	IncrementIPCounter(ipAddress string, ttl time.Duration) (int, error)
	IncrementMemberCounter(memberID, operation string, ttl time.Duration) (int, error)
}

// SecurityCache holds automated-response state: blocked IPs, temporary
// account locks and pending-verification flags, all TTL-bounded.
type SecurityCache interface {
	BlockIP(ipAddress string, ttl time.Duration) error
	IsIPBlocked(ipAddress string) (bool, error)
	LockAccount(memberID string, ttl time.Duration) error
	IsAccountLocked(memberID string) (bool, error)
	RequireVerification(memberID string, ttl time.Duration) error
	IsVerificationRequired(memberID string) (bool, error)
	StoreVerificationCode(memberID, codeHash string, ttl time.Duration) error
	GetVerificationCode(memberID string) (string, error)
	ClearVerification(memberID string) error
}

// SessionCache defines the interface for session caching operations
type SessionCache interface {
	SetActiveSession(memberID, sessionID string, ttl time.Duration) error
	GetActiveSession(memberID string) (string, error)
	InvalidateSession(memberID string) error
}
