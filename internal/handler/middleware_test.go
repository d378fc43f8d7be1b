package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/bucketing"
	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/hashing"
	"github.com/mattysabby19/taskly-api/internal/identity"
	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/repository/scylla"
	"github.com/mattysabby19/taskly-api/internal/security"
	"github.com/mattysabby19/taskly-api/internal/service"
)

type fakeRateLimits struct {
	ipCount     int
	ipErr       error
	memberCount int
}

func (f *fakeRateLimits) IncrementIPCounter(string, time.Duration) (int, error) {
	return f.ipCount, f.ipErr
}

func (f *fakeRateLimits) IncrementMemberCounter(string, string, time.Duration) (int, error) {
	return f.memberCount, nil
}

type fakeBlocks struct {
	blocked map[string]bool
	err     error
}

func (f *fakeBlocks) BlockIP(string, time.Duration) error { return nil }

func (f *fakeBlocks) IsIPBlocked(ip string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.blocked[ip], nil
}

func (f *fakeBlocks) LockAccount(string, time.Duration) error                   { return nil }
func (f *fakeBlocks) IsAccountLocked(string) (bool, error)                      { return false, nil }
func (f *fakeBlocks) RequireVerification(string, time.Duration) error           { return nil }
func (f *fakeBlocks) IsVerificationRequired(string) (bool, error)               { return false, nil }
func (f *fakeBlocks) StoreVerificationCode(string, string, time.Duration) error { return nil }

func (f *fakeBlocks) GetVerificationCode(string) (string, error) {
	return "", errors.New("no verification code issued")
}

func (f *fakeBlocks) ClearVerification(string) error { return nil }

// fakeAudit records event types so tests can assert on what the gate
// logged.
type fakeAudit struct {
	events []string
}

func (f *fakeAudit) InsertEvent(_ context.Context, event *model.AuditEvent) error {
	f.events = append(f.events, event.EventType)
	return nil
}

func (f *fakeAudit) ListEventsByActor(context.Context, string, time.Time) ([]*model.AuditEvent, error) {
	return nil, nil
}

func (f *fakeAudit) CountEventsByIP(context.Context, string, time.Time) (map[string]int, error) {
	return nil, nil
}

func (f *fakeAudit) CountDistinctActorsByIP(context.Context, time.Time) (map[string]int, error) {
	return nil, nil
}

func (f *fakeAudit) CountEventsByActor(context.Context, string, time.Time) (map[string]int, error) {
	return nil, nil
}

func (f *fakeAudit) AnonymizeActor(context.Context, string) error { return nil }

type fakeIncidents struct{}

func (fakeIncidents) CreateIncident(*model.SecurityIncident) error { return nil }
func (fakeIncidents) GetIncidentByID(string) (*model.SecurityIncident, error) {
	return nil, errors.New("not found")
}
func (fakeIncidents) ListIncidentsByStatus(string, int) ([]*model.SecurityIncident, error) {
	return nil, nil
}
func (fakeIncidents) UpdateIncidentStatus(string, string, time.Time) error { return nil }

type fakeSessions struct {
	byHash    map[string]*model.Session
	lookupErr error
	touched   int
}

func (f *fakeSessions) CreateSession(*model.Session) error { return nil }

func (f *fakeSessions) GetSessionByTokenHash(tokenHash string) (*model.Session, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if s, ok := f.byHash[tokenHash]; ok {
		return s, nil
	}
	return nil, scylla.ErrSessionNotFound
}

func (f *fakeSessions) ListActiveSessions(string) ([]*model.Session, error)    { return nil, nil }
func (f *fakeSessions) ListRecentSessions(time.Time) ([]*model.Session, error) { return nil, nil }
func (f *fakeSessions) RevokeSession(string, string, string) error             { return nil }
func (f *fakeSessions) RevokeAllExcept(string, string, string) (int, error)    { return 0, nil }
func (f *fakeSessions) RevokeAllSessions(string, string) error                 { return nil }

func (f *fakeSessions) TouchSession(*model.Session, string, time.Time) error {
	f.touched++
	return nil
}

func (f *fakeSessions) DeleteMemberSessions(string) error { return nil }

type fakeMembers struct{}

func (fakeMembers) CreateMember(*model.Member) error { return nil }
func (fakeMembers) GetMemberByID(memberID string) (*model.Member, error) {
	return &model.Member{MemberID: memberID, IsActive: true}, nil
}
func (fakeMembers) GetMemberByEmail(string) (*model.Member, error) {
	return nil, errors.New("not found")
}
func (fakeMembers) UpdateLastLogin(string, string) error { return nil }
func (fakeMembers) DeactivateMember(string) error        { return nil }
func (fakeMembers) DeleteMember(string) error            { return nil }

type fakeSessionCache struct{}

func (fakeSessionCache) SetActiveSession(string, string, time.Duration) error { return nil }
func (fakeSessionCache) GetActiveSession(string) (string, error)              { return "", errors.New("not cached") }
func (fakeSessionCache) InvalidateSession(string) error                       { return nil }

type fixedVerifier struct {
	token    string
	memberID string
}

func (v fixedVerifier) Verify(token string) (*identity.Identity, error) {
	if token == v.token {
		return &identity.Identity{MemberID: v.memberID}, nil
	}
	return nil, identity.ErrUnresolvedToken
}

type middlewareFixture struct {
	mw       *Middleware
	audit    *fakeAudit
	limits   *fakeRateLimits
	blocks   *fakeBlocks
	sessions *fakeSessions
	hasher   *hashing.Hasher
}

func newMiddlewareFixture(t *testing.T, token string) *middlewareFixture {
	t.Helper()

	cfg := config.SecurityConfig{
		HighRiskThreshold:  70,
		AutoBlockThreshold: 101,
		IPRateLimit:        100,
		MemberRateLimit:    50,
		RateLimitWindow:    time.Minute,
	}

	audit := &fakeAudit{}
	blocks := &fakeBlocks{blocked: make(map[string]bool)}
	limits := &fakeRateLimits{}
	hasher := hashing.NewHasher()

	responder := security.NewResponder(blocks, &fakeSessions{}, cfg, zap.NewNop())
	buckets := bucketing.NewManager(config.BucketingConfig{EventBuckets: 16})
	monitor := security.NewMonitor(audit, fakeIncidents{}, nil, nil, responder, buckets, cfg, zap.NewNop())

	sessions := &fakeSessions{byHash: make(map[string]*model.Session)}
	if token != "" {
		sessions.byHash[hasher.TokenDigest(token)] = &model.Session{
			SessionID:    "session-1",
			MemberID:     "member-1",
			IsActive:     true,
			ExpiresAt:    time.Now().Add(time.Hour),
			AutoLogoutAt: time.Now().Add(time.Hour),
		}
	}

	auth := service.NewAuthService(fakeMembers{}, sessions, fakeSessionCache{}, blocks,
		fixedVerifier{token: token, memberID: "member-1"}, hasher, monitor,
		config.AuthConfig{SessionTTL: 24 * time.Hour, InactivityTimeout: 30 * time.Minute},
		zap.NewNop())

	return &middlewareFixture{
		mw:       NewMiddleware(auth, limits, blocks, monitor, cfg, zap.NewNop()),
		audit:    audit,
		limits:   limits,
		blocks:   blocks,
		sessions: sessions,
		hasher:   hasher,
	}
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestBlockedIPRejectsListedAddress(t *testing.T) {
	f := newMiddlewareFixture(t, "")
	f.blocks.blocked["203.0.113.7"] = true

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()

	f.mw.BlockedIP(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if called {
		t.Error("blocked request reached the handler")
	}
}

func TestBlockedIPFailsOpenOnCacheError(t *testing.T) {
	f := newMiddlewareFixture(t, "")
	f.blocks.err = errors.New("redis down")

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	rec := httptest.NewRecorder()

	f.mw.BlockedIP(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Error("cache failure blocked the request")
	}
}

func TestRateLimitIPOverBudget(t *testing.T) {
	f := newMiddlewareFixture(t, "")
	f.limits.ipCount = 101

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	rec := httptest.NewRecorder()

	f.mw.RateLimitIP(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if called {
		t.Error("over-budget request reached the handler")
	}
	if len(f.audit.events) != 1 || f.audit.events[0] != string(security.EventRateLimitExceeded) {
		t.Errorf("events = %v, want one rate_limit_exceeded", f.audit.events)
	}
}

func TestRateLimitIPFailsOpenOnCacheError(t *testing.T) {
	f := newMiddlewareFixture(t, "")
	f.limits.ipErr = errors.New("redis down")

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	rec := httptest.NewRecorder()

	f.mw.RateLimitIP(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Error("cache failure blocked the request")
	}
}

func TestAuthenticateMissingBearerToken(t *testing.T) {
	f := newMiddlewareFixture(t, "valid-token")

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	rec := httptest.NewRecorder()

	f.mw.Authenticate(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("unauthenticated request reached the handler")
	}
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	f := newMiddlewareFixture(t, "valid-token")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()

	var called bool
	f.mw.Authenticate(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if len(f.audit.events) != 1 || f.audit.events[0] != string(security.EventInvalidToken) {
		t.Errorf("events = %v, want exactly one invalid_token", f.audit.events)
	}
}

func TestAuthenticateAttachesSession(t *testing.T) {
	f := newMiddlewareFixture(t, "valid-token")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	var gotSession *model.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	f.mw.Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if gotSession == nil || gotSession.SessionID != "session-1" {
		t.Errorf("session in context = %+v, want session-1", gotSession)
	}
	if f.sessions.touched != 1 {
		t.Errorf("session touched %d times, want once per cleared request", f.sessions.touched)
	}
}

func TestAuthenticateStoreFailureIsServerError(t *testing.T) {
	f := newMiddlewareFixture(t, "valid-token")
	f.sessions.lookupErr = errors.New("gocql: no hosts available in the pool")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	var called bool
	f.mw.Authenticate(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if called {
		t.Error("request with a failing session store reached the handler")
	}
	if len(f.audit.events) != 0 {
		t.Errorf("store failure logged events %v, want none", f.audit.events)
	}
}

func TestAuthenticateEnforcesMemberBudget(t *testing.T) {
	f := newMiddlewareFixture(t, "valid-token")
	f.limits.memberCount = 51

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	var called bool
	f.mw.Authenticate(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if called {
		t.Error("over-budget member reached the handler")
	}
	if f.sessions.touched != 0 {
		t.Errorf("rate-limited request touched the session %d times, want none", f.sessions.touched)
	}
}
