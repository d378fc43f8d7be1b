package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/util"
)

var ErrMemberNotFound = fmt.Errorf("member not found")

// MemberRepository persists members in two tables: members by ID and
// members_by_email for the login lookup.
type MemberRepository struct {
	client *ScyllaClient
}

func NewMemberRepository(client *ScyllaClient) *MemberRepository {
	return &MemberRepository{client: client}
}

func (r *MemberRepository) CreateMember(member *model.Member) error {
	if member.MemberID == "" {
		member.MemberID = uuid.New().String()
	}
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	member.IsActive = true

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`
        INSERT INTO members (member_id, email, display_name, is_active,
            created_at, updated_at, last_login_at, last_login_ip)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.MemberID, member.Email, member.DisplayName, member.IsActive,
		member.CreatedAt, member.UpdatedAt, member.LastLoginAt, member.LastLoginIP)
	batch.Query(`
        INSERT INTO members_by_email (email, member_id, created_at)
        VALUES (?, ?, ?)`,
		member.Email, member.MemberID, member.CreatedAt)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create member",
			zap.String("member_id", member.MemberID),
			zap.Error(err))
		return fmt.Errorf("failed to create member: %w", err)
	}

	util.Info("Member created", zap.String("member_id", member.MemberID))
	return nil
}

func (r *MemberRepository) GetMemberByID(memberID string) (*model.Member, error) {
	member := &model.Member{}
	query := r.client.Prepared.GetMemberByID.Bind(memberID)

	err := r.client.ScanWithRetry(query,
		&member.MemberID, &member.Email, &member.DisplayName, &member.IsActive,
		&member.CreatedAt, &member.UpdatedAt, &member.LastLoginAt, &member.LastLoginIP)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

func (r *MemberRepository) GetMemberByEmail(email string) (*model.Member, error) {
	var memberID string
	err := r.client.Session.Query(`
        SELECT member_id FROM members_by_email WHERE email = ?`, email).Scan(&memberID)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to look up member by email: %w", err)
	}

	return r.GetMemberByID(memberID)
}

func (r *MemberRepository) UpdateLastLogin(memberID, loginIP string) error {
	now := time.Now().UTC()
	err := r.client.Session.Query(`
        UPDATE members SET last_login_at = ?, last_login_ip = ?, updated_at = ?
        WHERE member_id = ?`, now, loginIP, now, memberID).Exec()
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *MemberRepository) DeactivateMember(memberID string) error {
	err := r.client.Session.Query(`
        UPDATE members SET is_active = false, updated_at = ?
        WHERE member_id = ?`, time.Now().UTC(), memberID).Exec()
	if err != nil {
		return fmt.Errorf("failed to deactivate member: %w", err)
	}

	util.Info("Member deactivated", zap.String("member_id", memberID))
	return nil
}

func (r *MemberRepository) DeleteMember(memberID string) error {
	member, err := r.GetMemberByID(memberID)
	if err != nil {
		return err
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`DELETE FROM members WHERE member_id = ?`, memberID)
	batch.Query(`DELETE FROM members_by_email WHERE email = ?`, member.Email)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to delete member",
			zap.String("member_id", memberID),
			zap.Error(err))
		return fmt.Errorf("failed to delete member: %w", err)
	}

	util.Info("Member deleted", zap.String("member_id", memberID))
	return nil
}
