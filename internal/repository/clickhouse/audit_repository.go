package clickhouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/client"
	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/util"
)

// AuditRepository owns the append-only audit_events table. Inserts are
// fire-and-forget from the monitor's perspective; the GROUP BY readers
// back the threat-detection sweeps and the behavior baseline.
type AuditRepository struct {
	client *client.ClickHouseClient
}

func NewAuditRepository(client *client.ClickHouseClient) *AuditRepository {
	return &AuditRepository{client: client}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *model.AuditEvent) error {
	err := r.client.Conn.Exec(ctx, `
        INSERT INTO audit_events (
            event_bucket, event_date, event_time, event_type, actor_id,
            session_id, group_id, ip_address, device_fingerprint, risk_score,
            details
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventBucket, event.EventDate, event.EventTime, event.EventType,
		event.ActorID, event.SessionID, event.GroupID, event.IPAddress,
		event.DeviceFingerprint, event.RiskScore, event.Details)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListEventsByActor(ctx context.Context, actorID string, since time.Time) ([]*model.AuditEvent, error) {
	rows, err := r.client.Conn.Query(ctx, `
        SELECT event_bucket, event_date, event_time, event_type, actor_id,
               session_id, group_id, ip_address, device_fingerprint,
               risk_score, details
        FROM audit_events
        WHERE actor_id = ? AND event_time >= ?
        ORDER BY event_time`, actorID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query actor events: %w", err)
	}
	defer rows.Close()

	var events []*model.AuditEvent
	for rows.Next() {
		event := &model.AuditEvent{}
		if err := rows.Scan(&event.EventBucket, &event.EventDate, &event.EventTime,
			&event.EventType, &event.ActorID, &event.SessionID, &event.GroupID,
			&event.IPAddress, &event.DeviceFingerprint, &event.RiskScore,
			&event.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountEventsByIP groups events of one type by source IP over the trailing
// window.
func (r *AuditRepository) CountEventsByIP(ctx context.Context, eventType string, since time.Time) (map[string]int, error) {
	rows, err := r.client.Conn.Query(ctx, `
        SELECT ip_address, count() AS events
        FROM audit_events
        WHERE event_type = ? AND event_time >= ? AND ip_address != ''
        GROUP BY ip_address`, eventType, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by ip: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ip string
		var n uint64
		if err := rows.Scan(&ip, &n); err != nil {
			return nil, fmt.Errorf("failed to scan ip count: %w", err)
		}
		counts[ip] = int(n)
	}
	return counts, rows.Err()
}

// CountDistinctActorsByIP counts how many distinct members each IP acted
// for over the trailing window.
func (r *AuditRepository) CountDistinctActorsByIP(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.client.Conn.Query(ctx, `
        SELECT ip_address, uniqExact(actor_id) AS actors
        FROM audit_events
        WHERE event_time >= ? AND ip_address != '' AND actor_id != ''
        GROUP BY ip_address`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count actors by ip: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ip string
		var n uint64
		if err := rows.Scan(&ip, &n); err != nil {
			return nil, fmt.Errorf("failed to scan actor count: %w", err)
		}
		counts[ip] = int(n)
	}
	return counts, rows.Err()
}

func (r *AuditRepository) CountEventsByActor(ctx context.Context, eventType string, since time.Time) (map[string]int, error) {
	rows, err := r.client.Conn.Query(ctx, `
        SELECT actor_id, count() AS events
        FROM audit_events
        WHERE event_type = ? AND event_time >= ? AND actor_id != ''
        GROUP BY actor_id`, eventType, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by actor: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var actor string
		var n uint64
		if err := rows.Scan(&actor, &n); err != nil {
			return nil, fmt.Errorf("failed to scan actor count: %w", err)
		}
		counts[actor] = int(n)
	}
	return counts, rows.Err()
}

// AnonymizeActor nulls the actor reference on the member's audit trail.
// The events themselves stay: the trail is append-only and GDPR deletion
// removes identity, not history. The mutation is asynchronous on the
// ClickHouse side.
func (r *AuditRepository) AnonymizeActor(ctx context.Context, actorID string) error {
	err := r.client.Conn.Exec(ctx, `
        ALTER TABLE audit_events UPDATE actor_id = '' WHERE actor_id = ?`, actorID)
	if err != nil {
		util.Error("Failed to anonymize audit trail",
			zap.String("actor_id", actorID),
			zap.Error(err))
		return fmt.Errorf("failed to anonymize audit trail: %w", err)
	}

	util.Info("Audit trail anonymized", zap.String("actor_id", actorID))
	return nil
}
