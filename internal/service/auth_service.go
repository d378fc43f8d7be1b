package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/hashing"
	"github.com/mattysabby19/taskly-api/internal/identity"
	"github.com/mattysabby19/taskly-api/internal/model"
	redisrepo "github.com/mattysabby19/taskly-api/internal/repository/redis"
	"github.com/mattysabby19/taskly-api/internal/repository/scylla"
	"github.com/mattysabby19/taskly-api/internal/security"
)

var (
	ErrInvalidToken          = errors.New("token could not be verified")
	ErrSessionNotFound       = errors.New("no session exists for this token")
	ErrSessionExpired        = errors.New("session has expired")
	ErrSessionAutoLoggedOut  = errors.New("session was auto-logged-out for inactivity")
	ErrAccountLocked         = errors.New("account is temporarily locked")
	ErrVerificationRequired  = errors.New("additional verification required")
	ErrMemberInactive        = errors.New("member account is inactive")
	ErrNoVerificationPending = errors.New("no additional verification is pending")
	ErrVerificationFailed    = errors.New("verification code rejected")
)

// RequestMeta carries the connection attributes every authenticated call
// is evaluated against.
type RequestMeta struct {
	IPAddress         string
	DeviceID          string
	DeviceFingerprint string
	UserAgent         string
}

// AuthService owns session lifecycle: login, the per-request validation
// gate, and logout. The bearer token is the identity provider's JWT; the
// session record is keyed by its deterministic digest, so the raw token
// never touches storage.
type AuthService struct {
	members       model.MemberRepository
	sessions      model.SessionRepository
	sessionCache  model.SessionCache
	securityCache model.SecurityCache
	verifier      identity.Verifier
	hasher        *hashing.Hasher
	monitor       *security.Monitor
	cfg           config.AuthConfig
	logger        *zap.Logger
	now           func() time.Time
}

func NewAuthService(
	members model.MemberRepository,
	sessions model.SessionRepository,
	sessionCache model.SessionCache,
	securityCache model.SecurityCache,
	verifier identity.Verifier,
	hasher *hashing.Hasher,
	monitor *security.Monitor,
	cfg config.AuthConfig,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		members:       members,
		sessions:      sessions,
		sessionCache:  sessionCache,
		securityCache: securityCache,
		verifier:      verifier,
		hasher:        hasher,
		monitor:       monitor,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Login exchanges a verified identity token for a session. The token
// itself becomes the session bearer; only its digest is stored.
func (s *AuthService) Login(ctx context.Context, token string, meta RequestMeta) (*model.Session, error) {
	id, err := s.verifier.Verify(token)
	if err != nil {
		s.monitor.LogEvent(ctx, security.EventLoginFailed, security.EventContext{
			IPAddress:         meta.IPAddress,
			DeviceFingerprint: meta.DeviceFingerprint,
			Extra:             map[string]interface{}{"reason": "unresolved_token"},
		})
		return nil, ErrInvalidToken
	}

	if locked, err := s.securityCache.IsAccountLocked(id.MemberID); err == nil && locked {
		s.monitor.LogEvent(ctx, security.EventLoginFailed, security.EventContext{
			ActorID:           id.MemberID,
			IPAddress:         meta.IPAddress,
			DeviceFingerprint: meta.DeviceFingerprint,
			Extra:             map[string]interface{}{"reason": "account_locked"},
		})
		return nil, ErrAccountLocked
	}

	member, err := s.members.GetMemberByID(id.MemberID)
	if err != nil || !member.IsActive {
		s.monitor.LogEvent(ctx, security.EventLoginFailed, security.EventContext{
			ActorID:           id.MemberID,
			IPAddress:         meta.IPAddress,
			DeviceFingerprint: meta.DeviceFingerprint,
			Extra:             map[string]interface{}{"reason": "member_unavailable"},
		})
		return nil, ErrMemberInactive
	}

	details := security.Details{
		NewLocation: member.LastLoginIP != "" && member.LastLoginIP != meta.IPAddress,
		NewDevice:   s.isNewDevice(member.MemberID, meta.DeviceFingerprint),
	}

	now := s.now().UTC()
	session := &model.Session{
		SessionID:         uuid.New().String(),
		MemberID:          member.MemberID,
		TokenHash:         s.hasher.TokenDigest(token),
		DeviceID:          meta.DeviceID,
		DeviceFingerprint: meta.DeviceFingerprint,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		CreatedAt:         now,
		LastActivity:      now,
		AutoLogoutAt:      now.Add(s.cfg.InactivityTimeout),
		ExpiresAt:         now.Add(s.cfg.SessionTTL),
		IsActive:          true,
	}

	if err := s.sessions.CreateSession(session); err != nil {
		return nil, err
	}

	if err := s.sessionCache.SetActiveSession(member.MemberID, session.SessionID, s.cfg.SessionTTL); err != nil {
		s.logger.Warn("Failed to cache active session",
			zap.String("member_id", member.MemberID),
			zap.Error(err))
	}
	if err := s.members.UpdateLastLogin(member.MemberID, meta.IPAddress); err != nil {
		s.logger.Warn("Failed to record last login",
			zap.String("member_id", member.MemberID),
			zap.Error(err))
	}

	s.monitor.LogEvent(ctx, security.EventLoginSuccess, security.EventContext{
		ActorID:           member.MemberID,
		SessionID:         session.SessionID,
		IPAddress:         meta.IPAddress,
		DeviceFingerprint: meta.DeviceFingerprint,
		Details:           details,
	})

	return session, nil
}

// Validate is the session gate every authenticated request passes through.
// A token that resolves to no session yields exactly one audit event and an
// error the transport maps to 401; a failing session store propagates as an
// internal error with no event. The session is returned unmodified, the
// caller extends its inactivity deadline once the request has also cleared
// its rate budget.
func (s *AuthService) Validate(ctx context.Context, token string, meta RequestMeta) (*model.Session, error) {
	id, err := s.verifier.Verify(token)
	if err != nil {
		s.monitor.LogEvent(ctx, security.EventInvalidToken, security.EventContext{
			IPAddress:         meta.IPAddress,
			DeviceFingerprint: meta.DeviceFingerprint,
		})
		return nil, ErrInvalidToken
	}

	session, err := s.sessions.GetSessionByTokenHash(s.hasher.TokenDigest(token))
	if err != nil {
		if !errors.Is(err, scylla.ErrSessionNotFound) {
			return nil, fmt.Errorf("session lookup failed: %w", err)
		}
		s.monitor.LogEvent(ctx, security.EventSessionNotFound, security.EventContext{
			ActorID:           id.MemberID,
			IPAddress:         meta.IPAddress,
			DeviceFingerprint: meta.DeviceFingerprint,
		})
		return nil, ErrSessionNotFound
	}

	if session.MemberID != id.MemberID || !session.IsActive {
		s.monitor.LogEvent(ctx, security.EventSessionNotFound, security.EventContext{
			ActorID:           id.MemberID,
			SessionID:         session.SessionID,
			IPAddress:         meta.IPAddress,
			DeviceFingerprint: meta.DeviceFingerprint,
		})
		return nil, ErrSessionNotFound
	}

	now := s.now().UTC()

	if !now.Before(session.ExpiresAt) {
		s.revoke(session, "expired")
		s.monitor.LogEvent(ctx, security.EventSessionExpired, security.EventContext{
			ActorID:   session.MemberID,
			SessionID: session.SessionID,
			IPAddress: meta.IPAddress,
		})
		return nil, ErrSessionExpired
	}

	if !now.Before(session.AutoLogoutAt) {
		s.revoke(session, "auto_logout")
		s.monitor.LogEvent(ctx, security.EventSessionAutoLogout, security.EventContext{
			ActorID:   session.MemberID,
			SessionID: session.SessionID,
			IPAddress: meta.IPAddress,
		})
		return nil, ErrSessionAutoLoggedOut
	}

	if locked, err := s.securityCache.IsAccountLocked(session.MemberID); err == nil && locked {
		return nil, ErrAccountLocked
	}
	if required, err := s.securityCache.IsVerificationRequired(session.MemberID); err == nil && required {
		return nil, ErrVerificationRequired
	}

	s.enforceSingleSession(ctx, session, meta)

	return session, nil
}

// ExtendActivity pushes the session's inactivity deadline out to
// now+timeout and records the current IP. Called once per request, after
// the gate and the member rate budget have both passed; a rate-limited
// request leaves the session untouched. Failures are logged, the request
// proceeds on the already-validated session.
func (s *AuthService) ExtendActivity(session *model.Session, ipAddress string) {
	deadline := s.now().UTC().Add(s.cfg.InactivityTimeout)
	if err := s.sessions.TouchSession(session, ipAddress, deadline); err != nil {
		s.logger.Warn("Failed to extend session activity",
			zap.String("session_id", session.SessionID),
			zap.Error(err))
	}
}

// Logout revokes the current session. Idempotent from the caller's view:
// revoking an already-revoked session is not an error.
func (s *AuthService) Logout(ctx context.Context, session *model.Session, meta RequestMeta) error {
	if err := s.sessions.RevokeSession(session.SessionID, session.MemberID, "logout"); err != nil {
		return err
	}
	if err := s.sessionCache.InvalidateSession(session.MemberID); err != nil {
		s.logger.Warn("Failed to invalidate session cache",
			zap.String("member_id", session.MemberID),
			zap.Error(err))
	}

	s.monitor.LogEvent(ctx, security.EventLogout, security.EventContext{
		ActorID:   session.MemberID,
		SessionID: session.SessionID,
		IPAddress: meta.IPAddress,
	})
	return nil
}

// ListSessions returns the member's active sessions. Token hashes are
// blanked before the sessions leave the service.
func (s *AuthService) ListSessions(ctx context.Context, memberID string) ([]*model.Session, error) {
	sessions, err := s.sessions.ListActiveSessions(memberID)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		session.TokenHash = ""
	}
	return sessions, nil
}

// BeginVerification issues a one-time code for a member the responder has
// flagged for additional verification. Only the argon2 hash of the code is
// stored; delivering the plaintext to the member is the caller's problem.
// The flow runs on the identity token alone since the session gate refuses
// flagged members.
func (s *AuthService) BeginVerification(ctx context.Context, token string, meta RequestMeta) (string, error) {
	id, err := s.verifier.Verify(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	required, err := s.securityCache.IsVerificationRequired(id.MemberID)
	if err != nil {
		return "", fmt.Errorf("verification flag check failed: %w", err)
	}
	if !required {
		return "", ErrNoVerificationPending
	}

	code, err := generateVerificationCode()
	if err != nil {
		return "", err
	}
	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("failed to hash verification code: %w", err)
	}
	if err := s.securityCache.StoreVerificationCode(id.MemberID, codeHash, s.cfg.VerificationCodeTTL); err != nil {
		return "", err
	}

	s.logger.Info("Verification code issued",
		zap.String("member_id", id.MemberID))
	return code, nil
}

// CompleteVerification checks a submitted code against the stored argon2
// hash and, on a match, clears the verification requirement so the member
// can pass the session gate again.
func (s *AuthService) CompleteVerification(ctx context.Context, token, code string, meta RequestMeta) error {
	id, err := s.verifier.Verify(token)
	if err != nil {
		return ErrInvalidToken
	}

	codeHash, err := s.securityCache.GetVerificationCode(id.MemberID)
	if errors.Is(err, redisrepo.ErrNoVerificationCode) {
		return ErrNoVerificationPending
	}
	if err != nil {
		return fmt.Errorf("verification code lookup failed: %w", err)
	}

	ok, err := s.hasher.Verify(code, codeHash)
	if err != nil {
		return fmt.Errorf("failed to check verification code: %w", err)
	}
	if !ok {
		s.monitor.LogEvent(ctx, security.EventVerificationFailed, security.EventContext{
			ActorID:           id.MemberID,
			IPAddress:         meta.IPAddress,
			DeviceFingerprint: meta.DeviceFingerprint,
		})
		return ErrVerificationFailed
	}

	if err := s.securityCache.ClearVerification(id.MemberID); err != nil {
		return fmt.Errorf("failed to clear verification state: %w", err)
	}

	s.monitor.LogEvent(ctx, security.EventVerificationPassed, security.EventContext{
		ActorID:   id.MemberID,
		IPAddress: meta.IPAddress,
	})
	return nil
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// enforceSingleSession resolves violations of the one-session-per-member
// policy in favor of the session making this request: every other active
// session is revoked and the violation is recorded. The list-then-revoke is
// not transactional; under concurrent logins an extra session can survive
// until the next authenticated request.
func (s *AuthService) enforceSingleSession(ctx context.Context, session *model.Session, meta RequestMeta) {
	active, err := s.sessions.ListActiveSessions(session.MemberID)
	if err != nil {
		s.logger.Warn("Failed to list active sessions",
			zap.String("member_id", session.MemberID),
			zap.Error(err))
		return
	}
	if len(active) <= 1 {
		return
	}

	revoked, err := s.sessions.RevokeAllExcept(session.MemberID, session.SessionID, "multiple_sessions")
	if err != nil {
		s.logger.Error("Failed to revoke concurrent sessions",
			zap.String("member_id", session.MemberID),
			zap.Error(err))
		return
	}

	s.monitor.LogEvent(ctx, security.EventMultipleActiveSessions, security.EventContext{
		ActorID:           session.MemberID,
		SessionID:         session.SessionID,
		IPAddress:         meta.IPAddress,
		DeviceFingerprint: meta.DeviceFingerprint,
		Extra: map[string]interface{}{
			"active_sessions": len(active),
			"revoked":         revoked,
		},
	})
}

func (s *AuthService) revoke(session *model.Session, reason string) {
	if err := s.sessions.RevokeSession(session.SessionID, session.MemberID, reason); err != nil {
		s.logger.Warn("Failed to revoke session",
			zap.String("session_id", session.SessionID),
			zap.String("reason", reason),
			zap.Error(err))
	}
	if err := s.sessionCache.InvalidateSession(session.MemberID); err != nil {
		s.logger.Debug("Failed to invalidate session cache",
			zap.String("member_id", session.MemberID),
			zap.Error(err))
	}
}

// isNewDevice reports whether the fingerprint has been seen on any of the
// member's currently active sessions. Best-effort: lookup failures count
// as a known device so scoring stays conservative.
func (s *AuthService) isNewDevice(memberID, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	active, err := s.sessions.ListActiveSessions(memberID)
	if err != nil {
		return false
	}
	for _, sess := range active {
		if sess.DeviceFingerprint == fingerprint {
			return false
		}
	}
	return len(active) > 0
}
