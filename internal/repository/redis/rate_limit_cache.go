package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/client"
	"github.com/mattysabby19/taskly-api/internal/util"
)

const (
	ipRateLimitPrefix     = "rate_limit:ip:"
	memberRateLimitPrefix = "rate_limit:member:"
)

// RateLimitCache keeps fixed-window counters in Redis. Counters expire
// with the window; there is no cleanup job.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

func (c *RateLimitCache) IncrementIPCounter(ipAddress string, ttl time.Duration) (int, error) {
	return c.increment(ipRateLimitPrefix+ipAddress, ttl)
}

func (c *RateLimitCache) IncrementMemberCounter(memberID, operation string, ttl time.Duration) (int, error) {
	return c.increment(fmt.Sprintf("%s%s:%s", memberRateLimitPrefix, memberID, operation), ttl)
}

func (c *RateLimitCache) increment(key string, ttl time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := c.client.IncrWithExpire(ctx, key, ttl)
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("key", key),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return int(count), nil
}
