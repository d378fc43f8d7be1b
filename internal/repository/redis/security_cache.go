package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/client"
	"github.com/mattysabby19/taskly-api/internal/util"
)

const (
	ipBlockPrefix      = "security:ip_block:"
	accountLockPrefix  = "security:account_lock:"
	verificationPrefix = "security:verify_required:"
	verifyCodePrefix   = "security:verify_code:"
)

// ErrNoVerificationCode reports that no code has been issued for the
// member, as opposed to the cache being unreachable.
var ErrNoVerificationCode = errors.New("no verification code issued")

// SecurityCache stores automated-response state. Everything is a
// TTL-bounded flag: responses expire on their own, there is no manual
// unblock path.
type SecurityCache struct {
	client *client.RedisClient
}

func NewSecurityCache(client *client.RedisClient) *SecurityCache {
	return &SecurityCache{client: client}
}

func (c *SecurityCache) BlockIP(ipAddress string, ttl time.Duration) error {
	if err := c.setFlag(ipBlockPrefix+ipAddress, ttl); err != nil {
		return fmt.Errorf("failed to block ip: %w", err)
	}
	util.Warn("IP blocked",
		zap.String("ip_address", ipAddress),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *SecurityCache) IsIPBlocked(ipAddress string) (bool, error) {
	return c.hasFlag(ipBlockPrefix + ipAddress)
}

func (c *SecurityCache) LockAccount(memberID string, ttl time.Duration) error {
	if err := c.setFlag(accountLockPrefix+memberID, ttl); err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	util.Warn("Account temporarily locked",
		zap.String("member_id", memberID),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *SecurityCache) IsAccountLocked(memberID string) (bool, error) {
	return c.hasFlag(accountLockPrefix + memberID)
}

func (c *SecurityCache) RequireVerification(memberID string, ttl time.Duration) error {
	if err := c.setFlag(verificationPrefix+memberID, ttl); err != nil {
		return fmt.Errorf("failed to set verification flag: %w", err)
	}
	util.Info("Additional verification required",
		zap.String("member_id", memberID))
	return nil
}

func (c *SecurityCache) IsVerificationRequired(memberID string) (bool, error) {
	return c.hasFlag(verificationPrefix + memberID)
}

// StoreVerificationCode keeps the argon2 hash of a one-time code. The code
// shares the flag's lifetime; an expired code means reissue, not bypass.
func (c *SecurityCache) StoreVerificationCode(memberID, codeHash string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, verifyCodePrefix+memberID, codeHash, ttl); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	return nil
}

func (c *SecurityCache) GetVerificationCode(memberID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	codeHash, err := c.client.Client.Get(ctx, verifyCodePrefix+memberID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNoVerificationCode
	}
	if err != nil {
		return "", fmt.Errorf("failed to read verification code: %w", err)
	}
	return codeHash, nil
}

// ClearVerification removes both the verification flag and any issued
// code once the member has re-verified.
func (c *SecurityCache) ClearVerification(memberID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, verificationPrefix+memberID, verifyCodePrefix+memberID); err != nil {
		return fmt.Errorf("failed to clear verification state: %w", err)
	}
	util.Info("Verification requirement cleared",
		zap.String("member_id", memberID))
	return nil
}

func (c *SecurityCache) setFlag(key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Set(ctx, key, "1", ttl)
}

func (c *SecurityCache) hasFlag(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := c.client.Exists(ctx, key)
	if err != nil {
		util.Error("Failed to check security flag",
			zap.String("key", key),
			zap.Error(err))
		return false, fmt.Errorf("failed to check security flag: %w", err)
	}
	return exists, nil
}
