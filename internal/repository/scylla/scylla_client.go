package scylla

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/util"
)

// PreparedStatements holds the statements on the hot request path. Colder
// admin and cleanup queries are built inline by the repositories.
type PreparedStatements struct {
	CreateSession        *gocql.Query
	CreateSessionByToken *gocql.Query
	GetSessionByToken    *gocql.Query
	ListActiveSessions   *gocql.Query
	TouchSession         *gocql.Query
	GetMembership        *gocql.Query
	GetRolePermissions   *gocql.Query
	GetMemberByID        *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	cfg          config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.Mutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		cfg:     scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateSession = s.Session.Query(`
        INSERT INTO sessions (
            member_id, session_id, token_hash, device_id, device_fingerprint,
            ip_address, user_agent, created_at, last_activity, auto_logout_at,
            expires_at, is_active, revoked_reason
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreateSessionByToken = s.Session.Query(`
        INSERT INTO sessions_by_token (
            token_hash, session_id, member_id, device_id, device_fingerprint,
            ip_address, user_agent, created_at, last_activity, auto_logout_at,
            expires_at, is_active, revoked_reason
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetSessionByToken = s.Session.Query(`
        SELECT token_hash, session_id, member_id, device_id, device_fingerprint,
               ip_address, user_agent, created_at, last_activity, auto_logout_at,
               expires_at, is_active, revoked_reason
        FROM sessions_by_token WHERE token_hash = ?`)

	prepared.ListActiveSessions = s.Session.Query(`
        SELECT member_id, session_id, token_hash, device_id, device_fingerprint,
               ip_address, user_agent, created_at, last_activity, auto_logout_at,
               expires_at, is_active, revoked_reason
        FROM sessions WHERE member_id = ?`)

	prepared.TouchSession = s.Session.Query(`
        UPDATE sessions SET last_activity = ?, auto_logout_at = ?, ip_address = ?
        WHERE member_id = ? AND session_id = ?`)

	prepared.GetMembership = s.Session.Query(`
        SELECT group_id, member_id, role, joined_at
        FROM memberships WHERE group_id = ? AND member_id = ?`)

	prepared.GetRolePermissions = s.Session.Query(`
        SELECT permissions FROM role_permissions WHERE role = ?`)

	prepared.GetMemberByID = s.Session.Query(`
        SELECT member_id, email, display_name, is_active, created_at,
               updated_at, last_login_at, last_login_ip
        FROM members WHERE member_id = ?`)

	s.Prepared = prepared
	s.isPrepared = true
	return nil
}

// ScanWithRetry retries a single-row scan once on a timeout, matching the
// cluster retry policy for reads issued outside prepared queries.
func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	err := query.Scan(dest...)
	if err == gocql.ErrTimeoutNoResponse {
		err = query.Scan(dest...)
	}
	return err
}

func (s *ScyllaClient) ExecuteBatch(batch *gocql.Batch) error {
	return s.Session.ExecuteBatch(batch)
}

func (s *ScyllaClient) HealthCheck() error {
	return s.Session.Query(`SELECT release_version FROM system.local`).Exec()
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
}
