package security

// Details carries the contextual signals that adjust a base risk score.
// Scoring is a pure function of its inputs; callers resolve "new device",
// "new location" and the event time before asking for a score.
type Details struct {
	RepeatedAttempts int
	NewDevice        bool
	NewLocation      bool
	HourOfDay        int // 0-23, local to the deployment
}

const (
	maxRiskScore     = 100
	unknownBaseScore = 30 // fail open on classification, fail closed on access

	offHoursStart = 22 // inclusive
	offHoursEnd   = 6  // exclusive
)

// baseScores is the coarse triage table. Deterministic and cheap by
// intent; this is not a statistical model.
var baseScores = map[EventType]int{
	EventLoginSuccess:           10,
	EventLoginFailed:            40,
	EventLogout:                 5,
	EventInvalidToken:           50,
	EventSessionExpired:         20,
	EventSessionAutoLogout:      15,
	EventSessionNotFound:        45,
	EventMultipleActiveSessions: 70,
	EventVerificationPassed:     5,
	EventVerificationFailed:     45,
	EventPermissionDenied:       50,
	EventRoleDenied:             50,
	EventGroupDenied:            50,
	EventRateLimitExceeded:      60,
	EventConsentDenied:          35,
	EventConsentUpdated:         15,
	EventDataExport:             45,
	EventDataDeletion:           55,
	EventTaskCreated:            5,
	EventTaskUpdated:            5,
	EventTaskDeleted:            20,
}

// Score computes the risk score for one event. The result is always in
// [0,100]: base score from the event-type table (30 for unknown types),
// plus additive adjustments, clamped at 100.
func Score(eventType EventType, details Details) int {
	score, ok := baseScores[eventType]
	if !ok {
		score = unknownBaseScore
	}

	if details.RepeatedAttempts > 5 {
		score += 20
	}
	if details.NewDevice {
		score += 15
	}
	if details.NewLocation {
		score += 15
	}
	if details.HourOfDay >= offHoursStart || details.HourOfDay < offHoursEnd {
		score += 10
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}
	return score
}

// MissingScoreEntries returns the declared event types without a base score
// entry. The factory logs these as warnings at startup.
func MissingScoreEntries() []EventType {
	var missing []EventType
	for _, et := range AllEventTypes {
		if _, ok := baseScores[et]; !ok {
			missing = append(missing, et)
		}
	}
	return missing
}
