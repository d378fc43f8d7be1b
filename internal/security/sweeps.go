package security

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/model"
)

// Alert is one finding from a threat-detection sweep.
type Alert struct {
	Type      string                 `json:"type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}

const (
	AlertBruteForce     = "brute_force"
	AlertMultiAccountIP = "multi_account_ip"
	AlertOffHoursAccess = "off_hours_access"
	AlertTakeoverSignal = "account_takeover_signal"
	AlertExfiltration   = "data_exfiltration"
)

// ThreatDetector runs independent, stateless sweeps over a trailing time
// window. Sweeps are order-insensitive and their results are concatenated,
// never deduplicated or correlated.
type ThreatDetector struct {
	audit    model.AuditRepository
	sessions model.SessionRepository
	cfg      config.SecurityConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewThreatDetector(audit model.AuditRepository, sessions model.SessionRepository, cfg config.SecurityConfig, logger *zap.Logger) *ThreatDetector {
	return &ThreatDetector{
		audit:    audit,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RunAll executes every sweep and concatenates the alerts. A failing sweep
// is logged and skipped; the others still run.
func (d *ThreatDetector) RunAll(ctx context.Context) []Alert {
	var alerts []Alert

	sweeps := []struct {
		name string
		fn   func(context.Context) ([]Alert, error)
	}{
		{"brute_force", d.DetectBruteForce},
		{"multi_account_ip", d.DetectMultiAccountIPAbuse},
		{"off_hours_access", d.DetectOffHoursAccess},
		{"account_takeover", d.DetectAccountTakeover},
		{"data_exfiltration", d.DetectDataExfiltration},
	}

	for _, sweep := range sweeps {
		found, err := sweep.fn(ctx)
		if err != nil {
			d.logger.Error("Threat sweep failed",
				zap.String("sweep", sweep.name),
				zap.Error(err))
			continue
		}
		alerts = append(alerts, found...)
	}

	d.logger.Info("Threat sweeps completed", zap.Int("alerts", len(alerts)))
	return alerts
}

// DetectBruteForce flags IPs with more failed logins than the threshold
// within the sweep window.
func (d *ThreatDetector) DetectBruteForce(ctx context.Context) ([]Alert, error) {
	since := d.now().Add(-d.cfg.SweepWindow)

	failures, err := d.audit.CountEventsByIP(ctx, string(EventLoginFailed), since)
	if err != nil {
		return nil, fmt.Errorf("brute force sweep: %w", err)
	}

	var alerts []Alert
	for ip, count := range failures {
		if count > d.cfg.BruteForceThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertBruteForce,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("%d failed logins from %s within %s", count, ip, d.cfg.SweepWindow),
				Details: map[string]interface{}{
					"ip_address":    ip,
					"failed_logins": count,
				},
				Timestamp: d.now(),
			})
		}
	}
	return alerts, nil
}

// DetectMultiAccountIPAbuse flags IPs seen acting for more distinct members
// than the threshold within the sweep window.
func (d *ThreatDetector) DetectMultiAccountIPAbuse(ctx context.Context) ([]Alert, error) {
	since := d.now().Add(-d.cfg.SweepWindow)

	actorsByIP, err := d.audit.CountDistinctActorsByIP(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("multi-account sweep: %w", err)
	}

	var alerts []Alert
	for ip, actors := range actorsByIP {
		if actors > d.cfg.MultiAccountThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertMultiAccountIP,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("IP %s touched %d distinct accounts within %s", ip, actors, d.cfg.SweepWindow),
				Details: map[string]interface{}{
					"ip_address":      ip,
					"distinct_actors": actors,
				},
				Timestamp: d.now(),
			})
		}
	}
	return alerts, nil
}

// DetectOffHoursAccess flags members logging in repeatedly while the
// current time is outside normal hours. Outside off-hours this sweep is a
// no-op by design.
func (d *ThreatDetector) DetectOffHoursAccess(ctx context.Context) ([]Alert, error) {
	hour := d.now().Hour()
	if hour >= d.cfg.OffHoursEnd && hour < d.cfg.OffHoursStart {
		return nil, nil
	}

	since := d.now().Add(-d.cfg.SweepWindow)
	logins, err := d.audit.CountEventsByActor(ctx, string(EventLoginSuccess), since)
	if err != nil {
		return nil, fmt.Errorf("off-hours sweep: %w", err)
	}

	var alerts []Alert
	for actor, count := range logins {
		if count > d.cfg.OffHoursLoginThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertOffHoursAccess,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("member %s logged in %d times during off-hours", actor, count),
				Details: map[string]interface{}{
					"member_id": actor,
					"logins":    count,
					"hour":      hour,
				},
				Timestamp: d.now(),
			})
		}
	}
	return alerts, nil
}

// DetectAccountTakeover flags members whose recent sessions span more
// distinct IPs or device fingerprints than the threshold.
func (d *ThreatDetector) DetectAccountTakeover(ctx context.Context) ([]Alert, error) {
	since := d.now().Add(-d.cfg.SweepWindow)

	sessions, err := d.sessions.ListRecentSessions(since)
	if err != nil {
		return nil, fmt.Errorf("takeover sweep: %w", err)
	}

	ips := make(map[string]map[string]bool)
	devices := make(map[string]map[string]bool)
	for _, s := range sessions {
		if ips[s.MemberID] == nil {
			ips[s.MemberID] = make(map[string]bool)
			devices[s.MemberID] = make(map[string]bool)
		}
		if s.IPAddress != "" {
			ips[s.MemberID][s.IPAddress] = true
		}
		if s.DeviceFingerprint != "" {
			devices[s.MemberID][s.DeviceFingerprint] = true
		}
	}

	var alerts []Alert
	for memberID := range ips {
		ipCount, deviceCount := len(ips[memberID]), len(devices[memberID])
		if ipCount > d.cfg.TakeoverPairThreshold || deviceCount > d.cfg.TakeoverPairThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertTakeoverSignal,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("member %s has sessions from %d IPs and %d devices", memberID, ipCount, deviceCount),
				Details: map[string]interface{}{
					"member_id":        memberID,
					"distinct_ips":     ipCount,
					"distinct_devices": deviceCount,
				},
				Timestamp: d.now(),
			})
		}
	}
	return alerts, nil
}

// DetectDataExfiltration flags members with more data exports than the
// threshold within the sweep window.
func (d *ThreatDetector) DetectDataExfiltration(ctx context.Context) ([]Alert, error) {
	since := d.now().Add(-d.cfg.SweepWindow)

	exports, err := d.audit.CountEventsByActor(ctx, string(EventDataExport), since)
	if err != nil {
		return nil, fmt.Errorf("exfiltration sweep: %w", err)
	}

	var alerts []Alert
	for actor, count := range exports {
		if count > d.cfg.ExfiltrationThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertExfiltration,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("member %s exported data %d times within %s", actor, count, d.cfg.SweepWindow),
				Details: map[string]interface{}{
					"member_id": actor,
					"exports":   count,
				},
				Timestamp: d.now(),
			})
		}
	}
	return alerts, nil
}
