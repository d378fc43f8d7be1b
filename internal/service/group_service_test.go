package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/security"
)

type groupFixture struct {
	svc   *GroupService
	repo  *stubGroupRepo
	audit *recordingAudit
}

func newGroupFixture() *groupFixture {
	audit := &recordingAudit{}
	repo := &stubGroupRepo{
		memberships: make(map[string]*model.Membership),
		groups:      make(map[string]*model.Group),
		rolePermissions: map[string][]string{
			"admin":  {"*"},
			"member": {PermTasksRead, PermTasksWrite, PermMembersRead},
			"viewer": {PermTasksRead, PermMembersRead},
		},
	}
	monitor := newTestMonitor(audit, &recordingIncidents{}, &stubSecurityCache{}, &stubSessionRepo{})
	return &groupFixture{
		svc:   NewGroupService(repo, monitor, zap.NewNop()),
		repo:  repo,
		audit: audit,
	}
}

func (f *groupFixture) join(groupID, memberID, role string) {
	f.repo.memberships[groupID+":"+memberID] = &model.Membership{
		GroupID:  groupID,
		MemberID: memberID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
}

func TestHasPermissionDeniesNonMember(t *testing.T) {
	f := newGroupFixture()

	err := f.svc.HasPermission(context.Background(), "outsider", "group-1", PermTasksRead, RequestMeta{})
	if !errors.Is(err, ErrNotGroupMember) {
		t.Fatalf("err = %v, want ErrNotGroupMember", err)
	}
	if f.audit.countType(security.EventGroupDenied) != 1 {
		t.Errorf("events = %v, want one group_denied", f.audit.eventTypes())
	}
}

func TestHasPermissionDeniesUnknownRole(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "member-1", "contractor")

	err := f.svc.HasPermission(context.Background(), "member-1", "group-1", PermTasksRead, RequestMeta{})
	if !errors.Is(err, ErrRoleUnknown) {
		t.Fatalf("err = %v, want ErrRoleUnknown", err)
	}
	if f.audit.countType(security.EventRoleDenied) != 1 {
		t.Errorf("events = %v, want one role_denied", f.audit.eventTypes())
	}
}

func TestHasPermissionDeniesMissingPermission(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "member-1", "viewer")

	err := f.svc.HasPermission(context.Background(), "member-1", "group-1", PermTasksWrite, RequestMeta{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if f.audit.countType(security.EventPermissionDenied) != 1 {
		t.Errorf("events = %v, want one permission_denied", f.audit.eventTypes())
	}
}

func TestHasPermissionGrantsListedPermission(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "member-1", "member")

	if err := f.svc.HasPermission(context.Background(), "member-1", "group-1", PermTasksWrite, RequestMeta{}); err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if len(f.audit.events) != 0 {
		t.Errorf("a granted check logged events %v, want none", f.audit.eventTypes())
	}
}

func TestHasPermissionWildcardGrantsEverything(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "admin-1", "admin")

	for _, perm := range []string{PermTasksRead, PermTasksWrite, PermTasksDelete, PermMembersManage, PermGroupManage} {
		if err := f.svc.HasPermission(context.Background(), "admin-1", "group-1", perm, RequestMeta{}); err != nil {
			t.Errorf("HasPermission(%s) = %v, want nil for admin wildcard", perm, err)
		}
	}
}

func TestCreateGroupMakesOwnerAdmin(t *testing.T) {
	f := newGroupFixture()

	group, err := f.svc.CreateGroup(context.Background(), "member-1", "  Household  ", RequestMeta{})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if group.Name != "Household" {
		t.Errorf("group name = %q, want trimmed input", group.Name)
	}
	if group.OwnerID != "member-1" {
		t.Errorf("owner = %s, want member-1", group.OwnerID)
	}
	if len(f.repo.added) != 1 {
		t.Fatalf("added %d memberships, want 1", len(f.repo.added))
	}
	if f.repo.added[0].Role != "admin" {
		t.Errorf("owner role = %s, want admin", f.repo.added[0].Role)
	}
}

func TestAddMemberRequiresManagePermission(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "member-1", "member")

	_, err := f.svc.AddMember(context.Background(), "member-1", "group-1", "member-2", "viewer", RequestMeta{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestAddMemberRejectsUnknownRole(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "admin-1", "admin")

	_, err := f.svc.AddMember(context.Background(), "admin-1", "group-1", "member-2", "superuser", RequestMeta{})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestAddMemberStoresMembership(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "admin-1", "admin")

	membership, err := f.svc.AddMember(context.Background(), "admin-1", "group-1", "member-2", "viewer", RequestMeta{})
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if membership.Role != "viewer" || membership.MemberID != "member-2" {
		t.Errorf("membership = %+v, want member-2 as viewer", membership)
	}
}

func TestUpdateRoleProtectsOwner(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "admin-1", "admin")
	f.repo.groups["group-1"] = &model.Group{GroupID: "group-1", OwnerID: "owner-1"}

	err := f.svc.UpdateRole(context.Background(), "admin-1", "group-1", "owner-1", "viewer", RequestMeta{})
	if !errors.Is(err, ErrOwnerProtected) {
		t.Fatalf("err = %v, want ErrOwnerProtected when demoting the owner", err)
	}

	// Reaffirming admin is not a demotion.
	if err := f.svc.UpdateRole(context.Background(), "admin-1", "group-1", "owner-1", "admin", RequestMeta{}); err != nil {
		t.Fatalf("UpdateRole to admin: %v", err)
	}
}

func TestRemoveMemberProtectsOwner(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "admin-1", "admin")
	f.repo.groups["group-1"] = &model.Group{GroupID: "group-1", OwnerID: "owner-1"}

	err := f.svc.RemoveMember(context.Background(), "admin-1", "group-1", "owner-1", RequestMeta{})
	if !errors.Is(err, ErrOwnerProtected) {
		t.Fatalf("err = %v, want ErrOwnerProtected", err)
	}
}

func TestRemoveMemberAllowsLeavingWithoutManagePermission(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "viewer-1", "viewer")
	f.repo.groups["group-1"] = &model.Group{GroupID: "group-1", OwnerID: "owner-1"}

	if err := f.svc.RemoveMember(context.Background(), "viewer-1", "group-1", "viewer-1", RequestMeta{}); err != nil {
		t.Fatalf("self-removal: %v", err)
	}
	if len(f.repo.removed) != 1 || f.repo.removed[0] != "group-1:viewer-1" {
		t.Errorf("removed = %v, want [group-1:viewer-1]", f.repo.removed)
	}
}

func TestRemoveMemberOthersRequiresManage(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "viewer-1", "viewer")
	f.join("group-1", "member-2", "member")
	f.repo.groups["group-1"] = &model.Group{GroupID: "group-1", OwnerID: "owner-1"}

	err := f.svc.RemoveMember(context.Background(), "viewer-1", "group-1", "member-2", RequestMeta{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestIsMember(t *testing.T) {
	f := newGroupFixture()
	f.join("group-1", "member-1", "member")

	if !f.svc.IsMember("group-1", "member-1") {
		t.Error("IsMember = false for an existing membership")
	}
	if f.svc.IsMember("group-1", "outsider") {
		t.Error("IsMember = true for a non-member")
	}
	if len(f.audit.events) != 0 {
		t.Errorf("IsMember logged events %v, want none", f.audit.eventTypes())
	}
}
