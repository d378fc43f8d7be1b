package security

// EventType names a security-relevant action. Every type declared here must
// have an entry in the base score table; MissingScoreEntries surfaces gaps
// at startup instead of letting them silently default at runtime.
type EventType string

const (
	EventLoginSuccess           EventType = "login_success"
	EventLoginFailed            EventType = "login_failed"
	EventLogout                 EventType = "logout"
	EventInvalidToken           EventType = "invalid_token"
	EventSessionExpired         EventType = "session_expired"
	EventSessionAutoLogout      EventType = "session_auto_logout"
	EventSessionNotFound        EventType = "session_not_found"
	EventMultipleActiveSessions EventType = "multiple_active_sessions"
	EventVerificationPassed     EventType = "verification_passed"
	EventVerificationFailed     EventType = "verification_failed"
	EventPermissionDenied       EventType = "permission_denied"
	EventRoleDenied             EventType = "role_denied"
	EventGroupDenied            EventType = "group_denied"
	EventRateLimitExceeded      EventType = "rate_limit_exceeded"
	EventConsentDenied          EventType = "consent_denied"
	EventConsentUpdated         EventType = "consent_updated"
	EventDataExport             EventType = "data_export"
	EventDataDeletion           EventType = "data_deletion"
	EventTaskCreated            EventType = "task_created"
	EventTaskUpdated            EventType = "task_updated"
	EventTaskDeleted            EventType = "task_deleted"
)

// AllEventTypes lists every declared event type, used for the startup
// completeness check against the base score table.
var AllEventTypes = []EventType{
	EventLoginSuccess,
	EventLoginFailed,
	EventLogout,
	EventInvalidToken,
	EventSessionExpired,
	EventSessionAutoLogout,
	EventSessionNotFound,
	EventMultipleActiveSessions,
	EventVerificationPassed,
	EventVerificationFailed,
	EventPermissionDenied,
	EventRoleDenied,
	EventGroupDenied,
	EventRateLimitExceeded,
	EventConsentDenied,
	EventConsentUpdated,
	EventDataExport,
	EventDataDeletion,
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskDeleted,
}

// Severity buckets a risk score for triage and incident records.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForScore maps a risk score to a severity tier. Boundaries are
// inclusive on the upper bucket: 90 is critical, 70 is high, 50 is medium.
func SeverityForScore(score int) Severity {
	switch {
	case score >= 90:
		return SeverityCritical
	case score >= 70:
		return SeverityHigh
	case score >= 50:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
