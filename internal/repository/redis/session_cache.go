package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/client"
	"github.com/mattysabby19/taskly-api/internal/util"
)

const activeSessionPrefix = "active_session:"

// SessionCache tracks the current session per member. It is an
// optimization for the single-session sweep, not the source of truth; the
// session tables win on disagreement.
type SessionCache struct {
	client *client.RedisClient
}

func NewSessionCache(client *client.RedisClient) *SessionCache {
	return &SessionCache{client: client}
}

func (c *SessionCache) SetActiveSession(memberID, sessionID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, activeSessionPrefix+memberID, sessionID, ttl); err != nil {
		util.Error("Failed to set active session",
			zap.String("member_id", memberID),
			zap.Error(err))
		return fmt.Errorf("failed to set active session: %w", err)
	}
	return nil
}

func (c *SessionCache) GetActiveSession(memberID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessionID, err := c.client.Get(ctx, activeSessionPrefix+memberID)
	if err != nil {
		return "", fmt.Errorf("no active session cached for member: %s", memberID)
	}
	return sessionID, nil
}

func (c *SessionCache) InvalidateSession(memberID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, activeSessionPrefix+memberID); err != nil {
		return fmt.Errorf("failed to invalidate session cache: %w", err)
	}
	return nil
}
