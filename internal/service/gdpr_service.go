package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mattysabby19/taskly-api/internal/encryption"
	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/security"
)

var ErrConsentRequired = errors.New("consent not granted for this purpose")

// ConsentDataProcessing gates export and deletion; without it those
// requests are refused for legal reasons.
const ConsentDataProcessing = "data_processing"

// MemberExport is everything the service holds about one member, assembled
// for a data portability request.
type MemberExport struct {
	Member      *model.Member       `json:"member"`
	Memberships []*model.Membership `json:"memberships"`
	Tasks       []*model.Task       `json:"tasks"`
	Consents    []*model.Consent    `json:"consents"`
	Sessions    []*model.Session    `json:"sessions"`
	Events      []*model.AuditEvent `json:"events"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// GDPRService implements the compliance surface: consent management, data
// export and the right to erasure. Deletion removes or anonymizes every
// store that references the member; the audit trail keeps its rows but
// loses the actor reference.
type GDPRService struct {
	members    model.MemberRepository
	sessions   model.SessionRepository
	groups     model.GroupRepository
	tasks      model.TaskRepository
	consents   model.ConsentRepository
	audit      model.AuditRepository
	encryption *encryption.Manager
	monitor    *security.Monitor
	logger     *zap.Logger
	now        func() time.Time
}

func NewGDPRService(
	members model.MemberRepository,
	sessions model.SessionRepository,
	groups model.GroupRepository,
	tasks model.TaskRepository,
	consents model.ConsentRepository,
	audit model.AuditRepository,
	encryption *encryption.Manager,
	monitor *security.Monitor,
	logger *zap.Logger,
) *GDPRService {
	return &GDPRService{
		members:    members,
		sessions:   sessions,
		groups:     groups,
		tasks:      tasks,
		consents:   consents,
		audit:      audit,
		encryption: encryption,
		monitor:    monitor,
		logger:     logger,
		now:        time.Now,
	}
}

// UpdateConsent records a consent decision for one purpose.
func (s *GDPRService) UpdateConsent(ctx context.Context, memberID, purpose, version string, granted bool, meta RequestMeta) (*model.Consent, error) {
	consent := &model.Consent{
		MemberID:  memberID,
		Purpose:   purpose,
		Granted:   granted,
		Version:   version,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.consents.UpsertConsent(consent); err != nil {
		return nil, err
	}

	s.monitor.LogEvent(ctx, security.EventConsentUpdated, security.EventContext{
		ActorID:   memberID,
		IPAddress: meta.IPAddress,
		Extra:     map[string]interface{}{"purpose": purpose, "granted": granted},
	})
	return consent, nil
}

func (s *GDPRService) ListConsents(ctx context.Context, memberID string) ([]*model.Consent, error) {
	return s.consents.ListConsents(memberID)
}

// CheckConsent verifies that the member has granted the purpose. A missing
// record counts as not granted. Denials are audited; the transport maps
// ErrConsentRequired to 451.
func (s *GDPRService) CheckConsent(ctx context.Context, memberID, purpose string, meta RequestMeta) error {
	consent, err := s.consents.GetConsent(memberID, purpose)
	if err != nil || !consent.Granted {
		s.monitor.LogEvent(ctx, security.EventConsentDenied, security.EventContext{
			ActorID:   memberID,
			IPAddress: meta.IPAddress,
			Extra:     map[string]interface{}{"purpose": purpose},
		})
		return ErrConsentRequired
	}
	return nil
}

// ExportData assembles the member's complete data set, collecting the
// independent stores concurrently. When KMS is enabled the payload is
// returned envelope-encrypted; otherwise the caller gets the plain export.
func (s *GDPRService) ExportData(ctx context.Context, memberID string, meta RequestMeta) (*MemberExport, *encryption.EncryptedPayload, error) {
	if err := s.CheckConsent(ctx, memberID, ConsentDataProcessing, meta); err != nil {
		return nil, nil, err
	}

	member, err := s.members.GetMemberByID(memberID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load member for export: %w", err)
	}

	export := &MemberExport{
		Member:      member,
		GeneratedAt: s.now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		memberships, err := s.groups.ListMemberGroups(memberID)
		if err != nil {
			return fmt.Errorf("failed to collect memberships: %w", err)
		}
		export.Memberships = memberships
		return nil
	})
	g.Go(func() error {
		tasks, err := s.tasks.ListMemberTasks(memberID)
		if err != nil {
			return fmt.Errorf("failed to collect tasks: %w", err)
		}
		export.Tasks = tasks
		return nil
	})
	g.Go(func() error {
		consents, err := s.consents.ListConsents(memberID)
		if err != nil {
			return fmt.Errorf("failed to collect consents: %w", err)
		}
		export.Consents = consents
		return nil
	})
	g.Go(func() error {
		sessions, err := s.sessions.ListActiveSessions(memberID)
		if err != nil {
			return fmt.Errorf("failed to collect sessions: %w", err)
		}
		export.Sessions = sessions
		return nil
	})
	g.Go(func() error {
		events, err := s.audit.ListEventsByActor(gctx, memberID, member.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to collect audit events: %w", err)
		}
		export.Events = events
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	s.monitor.LogEvent(ctx, security.EventDataExport, security.EventContext{
		ActorID:   memberID,
		IPAddress: meta.IPAddress,
		Extra: map[string]interface{}{
			"tasks":  len(export.Tasks),
			"events": len(export.Events),
		},
	})

	if !s.encryption.Enabled() {
		return export, nil, nil
	}

	raw, err := marshalExport(export)
	if err != nil {
		return nil, nil, err
	}
	payload, err := s.encryption.Encrypt(ctx, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encrypt export: %w", err)
	}
	return nil, payload, nil
}

// DeleteData erases the member. Sessions are revoked before anything else
// so no live token survives the deletion; the audit event is recorded
// before the actor reference is anonymized so the deletion itself stays
// attributable until the mutation lands.
func (s *GDPRService) DeleteData(ctx context.Context, memberID string, meta RequestMeta) error {
	if err := s.CheckConsent(ctx, memberID, ConsentDataProcessing, meta); err != nil {
		return err
	}

	if err := s.sessions.RevokeAllSessions(memberID, "security"); err != nil {
		s.logger.Warn("Failed to revoke sessions before deletion",
			zap.String("member_id", memberID),
			zap.Error(err))
	}
	if err := s.sessions.DeleteMemberSessions(memberID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.groups.DeleteMemberMemberships(memberID); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	if err := s.tasks.UnassignMemberTasks(memberID); err != nil {
		return fmt.Errorf("failed to unassign tasks: %w", err)
	}
	if err := s.consents.DeleteMemberConsents(memberID); err != nil {
		return fmt.Errorf("failed to delete consents: %w", err)
	}
	if err := s.members.DeleteMember(memberID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	s.monitor.LogEvent(ctx, security.EventDataDeletion, security.EventContext{
		ActorID:   memberID,
		IPAddress: meta.IPAddress,
	})

	if err := s.audit.AnonymizeActor(ctx, memberID); err != nil {
		return fmt.Errorf("member deleted but audit anonymization failed: %w", err)
	}

	s.logger.Info("Member data erased", zap.String("member_id", memberID))
	return nil
}

func marshalExport(export *MemberExport) ([]byte, error) {
	raw, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return raw, nil
}
