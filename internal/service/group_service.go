package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/security"
	"github.com/mattysabby19/taskly-api/internal/util"
)

var (
	ErrNotGroupMember   = errors.New("member does not belong to this group")
	ErrRoleUnknown      = errors.New("role has no permission set")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidRole      = errors.New("invalid role")
	ErrOwnerProtected   = errors.New("group owner cannot be removed or demoted")
)

// Permission names checked by the task, group and GDPR surfaces.
const (
	PermTasksRead     = "tasks:read"
	PermTasksWrite    = "tasks:write"
	PermTasksDelete   = "tasks:delete"
	PermMembersRead   = "members:read"
	PermMembersManage = "members:manage"
	PermGroupManage   = "group:manage"
)

var validRoles = map[string]bool{
	"admin":  true,
	"member": true,
	"viewer": true,
}

// GroupService owns groups, memberships and the permission check every
// group-scoped operation runs through. Authorization is membership → role
// → permission list; each of the three steps denies independently and
// records its own event type.
type GroupService struct {
	groups  model.GroupRepository
	monitor *security.Monitor
	logger  *zap.Logger
}

func NewGroupService(groups model.GroupRepository, monitor *security.Monitor, logger *zap.Logger) *GroupService {
	return &GroupService{groups: groups, monitor: monitor, logger: logger}
}

// HasPermission resolves the actor's membership in the group, the role's
// permission list, and checks the requested permission against it. Denials
// are audited at the step that failed; "*" in a permission list grants
// everything.
func (s *GroupService) HasPermission(ctx context.Context, memberID, groupID, permission string, meta RequestMeta) error {
	membership, err := s.groups.GetMembership(groupID, memberID)
	if err != nil {
		s.monitor.LogEvent(ctx, security.EventGroupDenied, security.EventContext{
			ActorID:   memberID,
			GroupID:   groupID,
			IPAddress: meta.IPAddress,
			Extra:     map[string]interface{}{"permission": permission},
		})
		return ErrNotGroupMember
	}

	perms, err := s.groups.GetRolePermissions(membership.Role)
	if err != nil {
		s.monitor.LogEvent(ctx, security.EventRoleDenied, security.EventContext{
			ActorID:   memberID,
			GroupID:   groupID,
			IPAddress: meta.IPAddress,
			Extra:     map[string]interface{}{"role": membership.Role, "permission": permission},
		})
		return ErrRoleUnknown
	}

	for _, p := range perms {
		if p == permission || p == "*" {
			return nil
		}
	}

	s.monitor.LogEvent(ctx, security.EventPermissionDenied, security.EventContext{
		ActorID:   memberID,
		GroupID:   groupID,
		IPAddress: meta.IPAddress,
		Extra:     map[string]interface{}{"role": membership.Role, "permission": permission},
	})
	return ErrPermissionDenied
}

// CreateGroup creates a group with the creator as owner and admin.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID, name string, meta RequestMeta) (*model.Group, error) {
	now := time.Now().UTC()
	group := &model.Group{
		GroupID:   uuid.New().String(),
		Name:      util.SanitizeInput(name),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.groups.CreateGroup(group); err != nil {
		return nil, err
	}

	membership := &model.Membership{
		GroupID:  group.GroupID,
		MemberID: ownerID,
		Role:     "admin",
		JoinedAt: now,
	}
	if err := s.groups.AddMembership(membership); err != nil {
		return nil, fmt.Errorf("group created but owner membership failed: %w", err)
	}

	s.logger.Info("Group created",
		zap.String("group_id", group.GroupID),
		zap.String("owner_id", ownerID))
	return group, nil
}

func (s *GroupService) GetGroup(ctx context.Context, actorID, groupID string, meta RequestMeta) (*model.Group, error) {
	if err := s.HasPermission(ctx, actorID, groupID, PermMembersRead, meta); err != nil {
		return nil, err
	}
	return s.groups.GetGroupByID(groupID)
}

func (s *GroupService) AddMember(ctx context.Context, actorID, groupID, memberID, role string, meta RequestMeta) (*model.Membership, error) {
	if err := s.HasPermission(ctx, actorID, groupID, PermMembersManage, meta); err != nil {
		return nil, err
	}
	if !validRoles[role] {
		return nil, ErrInvalidRole
	}

	membership := &model.Membership{
		GroupID:  groupID,
		MemberID: memberID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.groups.AddMembership(membership); err != nil {
		return nil, err
	}

	s.logger.Info("Member added to group",
		zap.String("group_id", groupID),
		zap.String("member_id", memberID),
		zap.String("role", role))
	return membership, nil
}

func (s *GroupService) UpdateRole(ctx context.Context, actorID, groupID, memberID, role string, meta RequestMeta) error {
	if err := s.HasPermission(ctx, actorID, groupID, PermMembersManage, meta); err != nil {
		return err
	}
	if !validRoles[role] {
		return ErrInvalidRole
	}

	group, err := s.groups.GetGroupByID(groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == memberID && role != "admin" {
		return ErrOwnerProtected
	}

	return s.groups.UpdateMembershipRole(groupID, memberID, role)
}

// RemoveMember removes a membership. Members may remove themselves; acting
// on anyone else requires members:manage. The owner can never be removed.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, memberID string, meta RequestMeta) error {
	if actorID != memberID {
		if err := s.HasPermission(ctx, actorID, groupID, PermMembersManage, meta); err != nil {
			return err
		}
	}

	group, err := s.groups.GetGroupByID(groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == memberID {
		return ErrOwnerProtected
	}

	return s.groups.RemoveMembership(groupID, memberID)
}

func (s *GroupService) ListMembers(ctx context.Context, actorID, groupID string, meta RequestMeta) ([]*model.Membership, error) {
	if err := s.HasPermission(ctx, actorID, groupID, PermMembersRead, meta); err != nil {
		return nil, err
	}
	return s.groups.ListMemberships(groupID)
}

func (s *GroupService) ListMemberGroups(ctx context.Context, memberID string) ([]*model.Membership, error) {
	return s.groups.ListMemberGroups(memberID)
}

// IsMember reports plain membership without auditing a denial.
func (s *GroupService) IsMember(groupID, memberID string) bool {
	_, err := s.groups.GetMembership(groupID, memberID)
	return err == nil
}
