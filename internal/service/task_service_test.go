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

type taskFixture struct {
	svc    *TaskService
	repo   *stubTaskRepo
	groups *groupFixture
	audit  *recordingAudit
	now    time.Time
}

func newTaskFixture() *taskFixture {
	groups := newGroupFixture()
	repo := &stubTaskRepo{tasks: make(map[string]*model.Task)}

	monitor := newTestMonitor(groups.audit, &recordingIncidents{}, &stubSecurityCache{}, &stubSessionRepo{})
	svc := NewTaskService(repo, groups.svc, monitor, zap.NewNop())

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &taskFixture{svc: svc, repo: repo, groups: groups, audit: groups.audit, now: now}
}

func TestCreateTaskRequiresWritePermission(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "viewer-1", "viewer")

	_, err := f.svc.CreateTask(context.Background(), "viewer-1", "group-1", TaskInput{Title: "Dishes"}, RequestMeta{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if f.audit.countType(security.EventPermissionDenied) != 1 {
		t.Errorf("events = %v, want one permission_denied", f.audit.eventTypes())
	}
	if len(f.repo.created) != 0 {
		t.Error("denied create still stored a task")
	}
}

func TestCreateTaskRejectsBlankTitle(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")

	_, err := f.svc.CreateTask(context.Background(), "member-1", "group-1", TaskInput{Title: "   "}, RequestMeta{})
	if !errors.Is(err, ErrEmptyTaskTitle) {
		t.Fatalf("err = %v, want ErrEmptyTaskTitle", err)
	}
}

func TestCreateTaskRejectsUnknownStatus(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")

	_, err := f.svc.CreateTask(context.Background(), "member-1", "group-1",
		TaskInput{Title: "Dishes", Status: "archived"}, RequestMeta{})
	if !errors.Is(err, ErrInvalidTaskStatus) {
		t.Fatalf("err = %v, want ErrInvalidTaskStatus", err)
	}
}

func TestCreateTaskRejectsOutsideAssignee(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")

	_, err := f.svc.CreateTask(context.Background(), "member-1", "group-1",
		TaskInput{Title: "Dishes", AssigneeID: "outsider"}, RequestMeta{})
	if !errors.Is(err, ErrAssigneeNotMember) {
		t.Fatalf("err = %v, want ErrAssigneeNotMember", err)
	}
}

func TestCreateTaskDefaultsToPendingAndAudits(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")

	task, err := f.svc.CreateTask(context.Background(), "member-1", "group-1",
		TaskInput{Title: "  Dishes  ", Description: "kitchen"}, RequestMeta{})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if task.Status != "pending" {
		t.Errorf("status = %s, want pending by default", task.Status)
	}
	if task.Title != "Dishes" {
		t.Errorf("title = %q, want trimmed input", task.Title)
	}
	if task.CreatedBy != "member-1" {
		t.Errorf("created by = %s, want the actor", task.CreatedBy)
	}
	if !task.CompletedAt.IsZero() {
		t.Error("pending task carries a completion time")
	}
	if f.audit.countType(security.EventTaskCreated) != 1 {
		t.Errorf("events = %v, want one task_created", f.audit.eventTypes())
	}
}

func TestCreateTaskCompletedStampsCompletionTime(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")

	task, err := f.svc.CreateTask(context.Background(), "member-1", "group-1",
		TaskInput{Title: "Dishes", Status: "completed"}, RequestMeta{})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if !task.CompletedAt.Equal(f.now) {
		t.Errorf("completed at = %v, want the creation time", task.CompletedAt)
	}
}

func TestUpdateTaskTransitionsCompletion(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")
	f.repo.tasks["group-1:task-1"] = &model.Task{
		TaskID:  "task-1",
		GroupID: "group-1",
		Title:   "Dishes",
		Status:  "in_progress",
	}

	task, err := f.svc.UpdateTask(context.Background(), "member-1", "group-1", "task-1",
		TaskInput{Title: "Dishes", Status: "completed"}, RequestMeta{})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !task.CompletedAt.Equal(f.now) {
		t.Errorf("completed at = %v, want stamped on transition into completed", task.CompletedAt)
	}

	// Reopening clears the stamp.
	task, err = f.svc.UpdateTask(context.Background(), "member-1", "group-1", "task-1",
		TaskInput{Title: "Dishes", Status: "pending"}, RequestMeta{})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !task.CompletedAt.IsZero() {
		t.Errorf("completed at = %v, want cleared on reopen", task.CompletedAt)
	}

	if f.audit.countType(security.EventTaskUpdated) != 2 {
		t.Errorf("events = %v, want two task_updated", f.audit.eventTypes())
	}
}

func TestUpdateTaskKeepsExistingCompletionTime(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")
	completedEarlier := f.now.Add(-2 * time.Hour)
	f.repo.tasks["group-1:task-1"] = &model.Task{
		TaskID:      "task-1",
		GroupID:     "group-1",
		Title:       "Dishes",
		Status:      "completed",
		CompletedAt: completedEarlier,
	}

	task, err := f.svc.UpdateTask(context.Background(), "member-1", "group-1", "task-1",
		TaskInput{Title: "Dishes again", Status: "completed"}, RequestMeta{})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !task.CompletedAt.Equal(completedEarlier) {
		t.Errorf("completed at = %v, want the original stamp preserved", task.CompletedAt)
	}
}

func TestListTasksValidatesStatusFilter(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "viewer-1", "viewer")

	_, err := f.svc.ListTasks(context.Background(), "viewer-1", "group-1",
		model.TaskFilter{Status: "archived"}, RequestMeta{})
	if !errors.Is(err, ErrInvalidTaskStatus) {
		t.Fatalf("err = %v, want ErrInvalidTaskStatus", err)
	}
}

func TestDeleteTaskRequiresDeletePermission(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "member-1", "member")
	f.repo.tasks["group-1:task-1"] = &model.Task{TaskID: "task-1", GroupID: "group-1"}

	err := f.svc.DeleteTask(context.Background(), "member-1", "group-1", "task-1", RequestMeta{})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied for the member role", err)
	}
	if len(f.repo.deleted) != 0 {
		t.Error("denied delete still removed the task")
	}
}

func TestDeleteTaskAuditsRemoval(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "admin-1", "admin")
	f.repo.tasks["group-1:task-1"] = &model.Task{TaskID: "task-1", GroupID: "group-1"}

	if err := f.svc.DeleteTask(context.Background(), "admin-1", "group-1", "task-1", RequestMeta{}); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if len(f.repo.deleted) != 1 || f.repo.deleted[0] != "group-1:task-1" {
		t.Errorf("deleted = %v, want [group-1:task-1]", f.repo.deleted)
	}
	if f.audit.countType(security.EventTaskDeleted) != 1 {
		t.Errorf("events = %v, want one task_deleted", f.audit.eventTypes())
	}
}

func TestDeleteTaskMissingTaskDoesNotAudit(t *testing.T) {
	f := newTaskFixture()
	f.groups.join("group-1", "admin-1", "admin")

	if err := f.svc.DeleteTask(context.Background(), "admin-1", "group-1", "missing", RequestMeta{}); err == nil {
		t.Fatal("DeleteTask on a missing task succeeded")
	}
	if f.audit.countType(security.EventTaskDeleted) != 0 {
		t.Errorf("events = %v, want no task_deleted", f.audit.eventTypes())
	}
}
