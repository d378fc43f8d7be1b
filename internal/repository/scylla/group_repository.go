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

var (
	ErrGroupNotFound      = fmt.Errorf("group not found")
	ErrMembershipNotFound = fmt.Errorf("membership not found")
	ErrRoleNotFound       = fmt.Errorf("role not found")
)

// GroupRepository persists groups, memberships (dual-partitioned by group
// and by member) and the role -> permissions table consulted on every
// guarded operation.
type GroupRepository struct {
	client *ScyllaClient
}

func NewGroupRepository(client *ScyllaClient) *GroupRepository {
	return &GroupRepository{client: client}
}

func (r *GroupRepository) CreateGroup(group *model.Group) error {
	if group.GroupID == "" {
		group.GroupID = uuid.New().String()
	}
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	err := r.client.Session.Query(`
        INSERT INTO groups (group_id, name, owner_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)`,
		group.GroupID, group.Name, group.OwnerID, group.CreatedAt, group.UpdatedAt).Exec()
	if err != nil {
		util.Error("Failed to create group",
			zap.String("group_id", group.GroupID),
			zap.Error(err))
		return fmt.Errorf("failed to create group: %w", err)
	}

	util.Info("Group created",
		zap.String("group_id", group.GroupID),
		zap.String("owner_id", group.OwnerID))
	return nil
}

func (r *GroupRepository) GetGroupByID(groupID string) (*model.Group, error) {
	group := &model.Group{}
	err := r.client.Session.Query(`
        SELECT group_id, name, owner_id, created_at, updated_at
        FROM groups WHERE group_id = ?`, groupID).Scan(
		&group.GroupID, &group.Name, &group.OwnerID, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

func (r *GroupRepository) AddMembership(membership *model.Membership) error {
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now().UTC()
	}

	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`
        INSERT INTO memberships (group_id, member_id, role, joined_at)
        VALUES (?, ?, ?, ?)`,
		membership.GroupID, membership.MemberID, membership.Role, membership.JoinedAt)
	batch.Query(`
        INSERT INTO memberships_by_member (member_id, group_id, role, joined_at)
        VALUES (?, ?, ?, ?)`,
		membership.MemberID, membership.GroupID, membership.Role, membership.JoinedAt)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to add membership",
			zap.String("group_id", membership.GroupID),
			zap.String("member_id", membership.MemberID),
			zap.Error(err))
		return fmt.Errorf("failed to add membership: %w", err)
	}

	util.Info("Membership added",
		zap.String("group_id", membership.GroupID),
		zap.String("member_id", membership.MemberID),
		zap.String("role", membership.Role))
	return nil
}

func (r *GroupRepository) GetMembership(groupID, memberID string) (*model.Membership, error) {
	membership := &model.Membership{}
	query := r.client.Prepared.GetMembership.Bind(groupID, memberID)

	err := r.client.ScanWithRetry(query,
		&membership.GroupID, &membership.MemberID, &membership.Role, &membership.JoinedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return membership, nil
}

func (r *GroupRepository) ListMemberships(groupID string) ([]*model.Membership, error) {
	var memberships []*model.Membership

	iter := r.client.Session.Query(`
        SELECT group_id, member_id, role, joined_at
        FROM memberships WHERE group_id = ?`, groupID).Iter()
	for {
		m := &model.Membership{}
		if !iter.Scan(&m.GroupID, &m.MemberID, &m.Role, &m.JoinedAt) {
			break
		}
		memberships = append(memberships, m)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

func (r *GroupRepository) ListMemberGroups(memberID string) ([]*model.Membership, error) {
	var memberships []*model.Membership

	iter := r.client.Session.Query(`
        SELECT member_id, group_id, role, joined_at
        FROM memberships_by_member WHERE member_id = ?`, memberID).Iter()
	for {
		m := &model.Membership{}
		if !iter.Scan(&m.MemberID, &m.GroupID, &m.Role, &m.JoinedAt) {
			break
		}
		memberships = append(memberships, m)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list member groups: %w", err)
	}
	return memberships, nil
}

func (r *GroupRepository) UpdateMembershipRole(groupID, memberID, role string) error {
	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`UPDATE memberships SET role = ? WHERE group_id = ? AND member_id = ?`,
		role, groupID, memberID)
	batch.Query(`UPDATE memberships_by_member SET role = ? WHERE member_id = ? AND group_id = ?`,
		role, memberID, groupID)

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}

	util.Info("Membership role updated",
		zap.String("group_id", groupID),
		zap.String("member_id", memberID),
		zap.String("role", role))
	return nil
}

func (r *GroupRepository) RemoveMembership(groupID, memberID string) error {
	batch := r.client.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`DELETE FROM memberships WHERE group_id = ? AND member_id = ?`, groupID, memberID)
	batch.Query(`DELETE FROM memberships_by_member WHERE member_id = ? AND group_id = ?`, memberID, groupID)

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	util.Info("Membership removed",
		zap.String("group_id", groupID),
		zap.String("member_id", memberID))
	return nil
}

func (r *GroupRepository) GetRolePermissions(role string) ([]string, error) {
	var permissions []string
	query := r.client.Prepared.GetRolePermissions.Bind(role)

	err := r.client.ScanWithRetry(query, &permissions)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	return permissions, nil
}

func (r *GroupRepository) DeleteMemberMemberships(memberID string) error {
	memberships, err := r.ListMemberGroups(memberID)
	if err != nil {
		return err
	}
	if len(memberships) == 0 {
		return nil
	}

	batch := r.client.Session.NewBatch(gocql.UnloggedBatch)
	for _, m := range memberships {
		batch.Query(`DELETE FROM memberships WHERE group_id = ? AND member_id = ?`, m.GroupID, memberID)
		batch.Query(`DELETE FROM memberships_by_member WHERE member_id = ? AND group_id = ?`, memberID, m.GroupID)
	}

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete member memberships: %w", err)
	}

	util.Info("Member memberships deleted", zap.String("member_id", memberID))
	return nil
}
