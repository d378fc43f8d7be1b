package handler

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/security"
	"github.com/mattysabby19/taskly-api/internal/service"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Middleware bundles the cross-cutting request checks: IP blocks, rate
// limits and the session gate.
type Middleware struct {
	auth       *service.AuthService
	rateLimits model.RateLimitCache
	blocks     model.SecurityCache
	monitor    *security.Monitor
	cfg        config.SecurityConfig
	logger     *zap.Logger
}

func NewMiddleware(
	auth *service.AuthService,
	rateLimits model.RateLimitCache,
	blocks model.SecurityCache,
	monitor *security.Monitor,
	cfg config.SecurityConfig,
	logger *zap.Logger,
) *Middleware {
	return &Middleware{
		auth:       auth,
		rateLimits: rateLimits,
		blocks:     blocks,
		monitor:    monitor,
		cfg:        cfg,
		logger:     logger,
	}
}

// BlockedIP rejects requests from IPs under an active automated block.
// Cache failures fail open: a degraded Redis must not take the API down.
func (m *Middleware) BlockedIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		blocked, err := m.blocks.IsIPBlocked(ip)
		if err != nil {
			m.logger.Warn("IP block check failed", zap.Error(err))
		} else if blocked {
			writeError(w, http.StatusTooManyRequests, "source address is temporarily blocked")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitIP enforces the per-IP request budget before authentication.
func (m *Middleware) RateLimitIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		count, err := m.rateLimits.IncrementIPCounter(ip, m.cfg.RateLimitWindow)
		if err != nil {
			m.logger.Warn("IP rate limit check failed", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if count > m.cfg.IPRateLimit {
			m.monitor.LogEvent(r.Context(), security.EventRateLimitExceeded, security.EventContext{
				IPAddress: ip,
				Extra:     map[string]interface{}{"count": count, "scope": "ip"},
			})
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticate runs the session gate and attaches the validated session to
// the request context. A validated member is then held to the per-member
// rate budget; only a request that clears both gets its inactivity
// deadline extended, a 429 leaves the session as it was.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		session, err := m.auth.Validate(r.Context(), token, requestMeta(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		count, err := m.rateLimits.IncrementMemberCounter(session.MemberID, r.Method, m.cfg.RateLimitWindow)
		if err != nil {
			m.logger.Warn("Member rate limit check failed", zap.Error(err))
		} else if count > m.cfg.MemberRateLimit {
			m.monitor.LogEvent(r.Context(), security.EventRateLimitExceeded, security.EventContext{
				ActorID:   session.MemberID,
				SessionID: session.SessionID,
				IPAddress: clientIP(r),
				Extra:     map[string]interface{}{"count": count, "scope": "member"},
			})
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		m.auth.ExtendActivity(session, clientIP(r))

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the session attached by Authenticate.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	return session, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IPAddress:         clientIP(r),
		DeviceID:          r.Header.Get("X-Device-ID"),
		DeviceFingerprint: r.Header.Get("X-Device-Fingerprint"),
		UserAgent:         r.UserAgent(),
	}
}
