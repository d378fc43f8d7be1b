package security

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/model"
)

// Baseline is a member's historical activity profile, computed on demand
// from the trailing baseline window and never cached.
type Baseline struct {
	MemberID    string          `json:"member_id"`
	ActiveHours map[int]bool    `json:"-"`
	ActiveDays  map[time.Weekday]bool `json:"-"`
	KnownIPs    map[string]bool `json:"-"`
	AvgPerDay   float64         `json:"avg_events_per_day"`
	EventCount  int             `json:"event_count"`
	WindowDays  int             `json:"window_days"`
}

// AnomalyReport is the result of comparing recent activity to a baseline.
type AnomalyReport struct {
	MemberID     string   `json:"member_id"`
	Anomalies    []string `json:"anomalies"`
	NewHours     []int    `json:"new_hours,omitempty"`
	NewIPs       []string `json:"new_ips,omitempty"`
	RecentEvents int      `json:"recent_events"`
	RiskScore    int      `json:"risk_score"`
	CheckedAt    time.Time `json:"checked_at"`
}

const (
	anomalyUnusualHours = "unusual access hours"
	anomalyNewIPs       = "new IP addresses"
	anomalyHighVolume   = "high volume"
)

// BaselineAnalyzer builds activity baselines and flags deviations. Set
// membership and a volume ratio, recomputed fresh on every call; no
// statistical confidence and no decay.
type BaselineAnalyzer struct {
	audit  model.AuditRepository
	cfg    config.SecurityConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewBaselineAnalyzer(audit model.AuditRepository, cfg config.SecurityConfig, logger *zap.Logger) *BaselineAnalyzer {
	return &BaselineAnalyzer{
		audit:  audit,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// BuildBaseline aggregates the member's audit events over the baseline
// window into hour/day/IP sets and an average daily volume.
func (a *BaselineAnalyzer) BuildBaseline(ctx context.Context, memberID string) (*Baseline, error) {
	since := a.now().Add(-a.cfg.BaselineWindow)

	events, err := a.audit.ListEventsByActor(ctx, memberID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline events: %w", err)
	}

	days := int(a.cfg.BaselineWindow.Hours() / 24)
	if days < 1 {
		days = 1
	}

	b := &Baseline{
		MemberID:    memberID,
		ActiveHours: make(map[int]bool),
		ActiveDays:  make(map[time.Weekday]bool),
		KnownIPs:    make(map[string]bool),
		EventCount:  len(events),
		WindowDays:  days,
	}

	for _, ev := range events {
		b.ActiveHours[ev.EventTime.Hour()] = true
		b.ActiveDays[ev.EventTime.Weekday()] = true
		if ev.IPAddress != "" {
			b.KnownIPs[ev.IPAddress] = true
		}
	}
	b.AvgPerDay = float64(len(events)) / float64(days)

	return b, nil
}

// CheckAnomalies compares the member's recent activity (anomaly window)
// against a freshly built baseline. An empty baseline flags every recent
// hour and IP as new. Risk: 10 per anomaly type, +20 when the recent event
// count exceeds 50, capped at 100.
func (a *BaselineAnalyzer) CheckAnomalies(ctx context.Context, memberID string) (*AnomalyReport, error) {
	baseline, err := a.BuildBaseline(ctx, memberID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	recentSince := now.Add(-a.cfg.AnomalyWindow)
	recent, err := a.audit.ListEventsByActor(ctx, memberID, recentSince)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}

	report := &AnomalyReport{
		MemberID:     memberID,
		RecentEvents: len(recent),
		CheckedAt:    now,
	}

	newHours := make(map[int]bool)
	newIPs := make(map[string]bool)
	for _, ev := range recent {
		if !baseline.ActiveHours[ev.EventTime.Hour()] {
			newHours[ev.EventTime.Hour()] = true
		}
		if ev.IPAddress != "" && !baseline.KnownIPs[ev.IPAddress] {
			newIPs[ev.IPAddress] = true
		}
	}

	if len(newHours) > 0 {
		report.Anomalies = append(report.Anomalies, anomalyUnusualHours)
		for h := range newHours {
			report.NewHours = append(report.NewHours, h)
		}
	}
	if len(newIPs) > 0 {
		report.Anomalies = append(report.Anomalies, anomalyNewIPs)
		for ip := range newIPs {
			report.NewIPs = append(report.NewIPs, ip)
		}
	}
	if float64(len(recent)) > 3*baseline.AvgPerDay {
		report.Anomalies = append(report.Anomalies, anomalyHighVolume)
	}

	score := 10 * len(report.Anomalies)
	if len(recent) > 50 {
		score += 20
	}
	if score > maxRiskScore {
		score = maxRiskScore
	}
	report.RiskScore = score

	if len(report.Anomalies) > 0 {
		a.logger.Info("Behavior anomalies detected",
			zap.String("member_id", memberID),
			zap.Strings("anomalies", report.Anomalies),
			zap.Int("risk_score", report.RiskScore))
	}

	return report, nil
}
