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

var ErrSessionNotFound = fmt.Errorf("session not found")

// SessionRepository persists sessions in two tables: sessions partitioned
// by member for the single-session sweep, sessions_by_token for the exact
// token-hash lookup on every authenticated request.
type SessionRepository struct {
	client *ScyllaClient
}

func NewSessionRepository(client *ScyllaClient) *SessionRepository {
	return &SessionRepository{client: client}
}

func (r *SessionRepository) CreateSession(session *model.Session) error {
	if session.SessionID == "" {
		session.SessionID = uuid.New().String()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.LastActivity = now

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(r.client.Prepared.CreateSession.Statement(),
		session.MemberID, session.SessionID, session.TokenHash, session.DeviceID,
		session.DeviceFingerprint, session.IPAddress, session.UserAgent,
		session.CreatedAt, session.LastActivity, session.AutoLogoutAt,
		session.ExpiresAt, session.IsActive, session.RevokedReason)
	batch.Query(r.client.Prepared.CreateSessionByToken.Statement(),
		session.TokenHash, session.SessionID, session.MemberID, session.DeviceID,
		session.DeviceFingerprint, session.IPAddress, session.UserAgent,
		session.CreatedAt, session.LastActivity, session.AutoLogoutAt,
		session.ExpiresAt, session.IsActive, session.RevokedReason)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create session",
			zap.String("member_id", session.MemberID),
			zap.String("session_id", session.SessionID),
			zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}

	util.Info("Session created",
		zap.String("member_id", session.MemberID),
		zap.String("session_id", session.SessionID))
	return nil
}

func (r *SessionRepository) GetSessionByTokenHash(tokenHash string) (*model.Session, error) {
	session := &model.Session{}
	query := r.client.Prepared.GetSessionByToken.Bind(tokenHash)

	err := r.client.ScanWithRetry(query,
		&session.TokenHash, &session.SessionID, &session.MemberID, &session.DeviceID,
		&session.DeviceFingerprint, &session.IPAddress, &session.UserAgent,
		&session.CreatedAt, &session.LastActivity, &session.AutoLogoutAt,
		&session.ExpiresAt, &session.IsActive, &session.RevokedReason)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		util.Error("Failed to get session by token", zap.Error(err))
		return nil, fmt.Errorf("failed to get session by token: %w", err)
	}

	return session, nil
}

func (r *SessionRepository) ListActiveSessions(memberID string) ([]*model.Session, error) {
	var sessions []*model.Session

	iter := r.client.Prepared.ListActiveSessions.Bind(memberID).Iter()
	for {
		session := &model.Session{}
		if !iter.Scan(&session.MemberID, &session.SessionID, &session.TokenHash,
			&session.DeviceID, &session.DeviceFingerprint, &session.IPAddress,
			&session.UserAgent, &session.CreatedAt, &session.LastActivity,
			&session.AutoLogoutAt, &session.ExpiresAt, &session.IsActive,
			&session.RevokedReason) {
			break
		}
		if session.IsActive {
			sessions = append(sessions, session)
		}
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to list active sessions",
			zap.String("member_id", memberID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) ListRecentSessions(since time.Time) ([]*model.Session, error) {
	var sessions []*model.Session

	iter := r.client.Session.Query(`
        SELECT member_id, session_id, token_hash, device_id, device_fingerprint,
               ip_address, user_agent, created_at, last_activity, auto_logout_at,
               expires_at, is_active, revoked_reason
        FROM sessions WHERE created_at > ? ALLOW FILTERING`, since).Iter()
	for {
		session := &model.Session{}
		if !iter.Scan(&session.MemberID, &session.SessionID, &session.TokenHash,
			&session.DeviceID, &session.DeviceFingerprint, &session.IPAddress,
			&session.UserAgent, &session.CreatedAt, &session.LastActivity,
			&session.AutoLogoutAt, &session.ExpiresAt, &session.IsActive,
			&session.RevokedReason) {
			break
		}
		sessions = append(sessions, session)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list recent sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) RevokeSession(sessionID, memberID, reason string) error {
	// Need the token hash to keep sessions_by_token in step
	var tokenHash string
	err := r.client.Session.Query(`
        SELECT token_hash FROM sessions WHERE member_id = ? AND session_id = ?`,
		memberID, sessionID).Scan(&tokenHash)
	if err != nil {
		if err == gocql.ErrNotFound {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to find session for revocation: %w", err)
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`UPDATE sessions SET is_active = false, revoked_reason = ?
        WHERE member_id = ? AND session_id = ?`, reason, memberID, sessionID)
	batch.Query(`UPDATE sessions_by_token SET is_active = false, revoked_reason = ?
        WHERE token_hash = ?`, reason, tokenHash)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to revoke session",
			zap.String("session_id", sessionID),
			zap.String("reason", reason),
			zap.Error(err))
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	util.Info("Session revoked",
		zap.String("session_id", sessionID),
		zap.String("member_id", memberID),
		zap.String("reason", reason))
	return nil
}

// RevokeAllExcept revokes every active session of the member except the one
// in use. This is the single-session policy cleanup; it reads then revokes
// without a transaction, so a concurrent login can leave one extra session
// alive until the next authenticated request detects it.
func (r *SessionRepository) RevokeAllExcept(memberID, keepSessionID, reason string) (int, error) {
	sessions, err := r.ListActiveSessions(memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions for revocation: %w", err)
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	revoked := 0
	for _, session := range sessions {
		if session.SessionID == keepSessionID {
			continue
		}
		batch.Query(`UPDATE sessions SET is_active = false, revoked_reason = ?
            WHERE member_id = ? AND session_id = ?`, reason, memberID, session.SessionID)
		batch.Query(`UPDATE sessions_by_token SET is_active = false, revoked_reason = ?
            WHERE token_hash = ?`, reason, session.TokenHash)
		revoked++
	}
	if revoked == 0 {
		return 0, nil
	}

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to revoke extra sessions",
			zap.String("member_id", memberID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to revoke extra sessions: %w", err)
	}

	util.Warn("Extra sessions revoked",
		zap.String("member_id", memberID),
		zap.Int("revoked", revoked),
		zap.String("reason", reason))
	return revoked, nil
}

func (r *SessionRepository) RevokeAllSessions(memberID, reason string) error {
	_, err := r.RevokeAllExcept(memberID, "", reason)
	return err
}

// TouchSession extends the inactivity deadline and records the caller IP
// in both session tables.
func (r *SessionRepository) TouchSession(session *model.Session, ipAddress string, autoLogoutAt time.Time) error {
	now := time.Now().UTC()

	batch := r.client.Session.NewBatch(gocql.UnloggedBatch)
	batch.Query(r.client.Prepared.TouchSession.Statement(),
		now, autoLogoutAt, ipAddress, session.MemberID, session.SessionID)
	batch.Query(`UPDATE sessions_by_token SET last_activity = ?, auto_logout_at = ?, ip_address = ?
        WHERE token_hash = ?`, now, autoLogoutAt, ipAddress, session.TokenHash)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to touch session",
			zap.String("session_id", session.SessionID),
			zap.Error(err))
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteMemberSessions(memberID string) error {
	iter := r.client.Session.Query(`
        SELECT session_id, token_hash FROM sessions WHERE member_id = ?`, memberID).Iter()

	batch := r.client.Session.NewBatch(gocql.UnloggedBatch)
	var sessionID, tokenHash string
	for iter.Scan(&sessionID, &tokenHash) {
		batch.Query(`DELETE FROM sessions WHERE member_id = ? AND session_id = ?`, memberID, sessionID)
		batch.Query(`DELETE FROM sessions_by_token WHERE token_hash = ?`, tokenHash)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to list sessions for deletion: %w", err)
	}

	if len(batch.Entries) == 0 {
		return nil
	}
	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete member sessions: %w", err)
	}

	util.Info("Member sessions deleted", zap.String("member_id", memberID))
	return nil
}
