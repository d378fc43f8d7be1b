package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/security"
	"github.com/mattysabby19/taskly-api/internal/util"
)

var (
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrEmptyTaskTitle    = errors.New("task title is required")
	ErrAssigneeNotMember = errors.New("assignee does not belong to this group")
)

var validTaskStatuses = map[string]bool{
	"pending":     true,
	"in_progress": true,
	"completed":   true,
}

// TaskService owns task CRUD inside a group. Every operation runs the
// group permission check first; mutations are audited as low-risk events
// so the baseline sees normal activity, not just failures.
type TaskService struct {
	tasks   model.TaskRepository
	groups  *GroupService
	monitor *security.Monitor
	logger  *zap.Logger
	now     func() time.Time
}

func NewTaskService(tasks model.TaskRepository, groups *GroupService, monitor *security.Monitor, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:   tasks,
		groups:  groups,
		monitor: monitor,
		logger:  logger,
		now:     time.Now,
	}
}

// TaskInput is the caller-supplied portion of a task.
type TaskInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	AssigneeID  string    `json:"assignee_id"`
	DueAt       time.Time `json:"due_at"`
}

func (s *TaskService) CreateTask(ctx context.Context, actorID, groupID string, in TaskInput, meta RequestMeta) (*model.Task, error) {
	if err := s.groups.HasPermission(ctx, actorID, groupID, PermTasksWrite, meta); err != nil {
		return nil, err
	}

	title := util.SanitizeInput(in.Title)
	if title == "" {
		return nil, ErrEmptyTaskTitle
	}
	status := in.Status
	if status == "" {
		status = "pending"
	}
	if !validTaskStatuses[status] {
		return nil, ErrInvalidTaskStatus
	}
	if err := s.checkAssignee(groupID, in.AssigneeID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &model.Task{
		TaskID:      uuid.New().String(),
		GroupID:     groupID,
		Title:       title,
		Description: util.SanitizeInput(in.Description),
		Status:      status,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   actorID,
		DueAt:       in.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == "completed" {
		task.CompletedAt = now
	}

	if err := s.tasks.CreateTask(task); err != nil {
		return nil, err
	}

	s.monitor.LogEvent(ctx, security.EventTaskCreated, security.EventContext{
		ActorID:   actorID,
		GroupID:   groupID,
		IPAddress: meta.IPAddress,
		Extra:     map[string]interface{}{"task_id": task.TaskID},
	})
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, actorID, groupID, taskID string, meta RequestMeta) (*model.Task, error) {
	if err := s.groups.HasPermission(ctx, actorID, groupID, PermTasksRead, meta); err != nil {
		return nil, err
	}
	return s.tasks.GetTaskByID(groupID, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, actorID, groupID string, filter model.TaskFilter, meta RequestMeta) ([]*model.Task, error) {
	if err := s.groups.HasPermission(ctx, actorID, groupID, PermTasksRead, meta); err != nil {
		return nil, err
	}
	if filter.Status != "" && !validTaskStatuses[filter.Status] {
		return nil, ErrInvalidTaskStatus
	}
	return s.tasks.ListTasks(groupID, filter)
}

// UpdateTask applies a full update to an existing task. Transitioning into
// "completed" stamps the completion time; leaving it clears the stamp.
func (s *TaskService) UpdateTask(ctx context.Context, actorID, groupID, taskID string, in TaskInput, meta RequestMeta) (*model.Task, error) {
	if err := s.groups.HasPermission(ctx, actorID, groupID, PermTasksWrite, meta); err != nil {
		return nil, err
	}

	task, err := s.tasks.GetTaskByID(groupID, taskID)
	if err != nil {
		return nil, err
	}

	title := util.SanitizeInput(in.Title)
	if title == "" {
		return nil, ErrEmptyTaskTitle
	}
	if !validTaskStatuses[in.Status] {
		return nil, ErrInvalidTaskStatus
	}
	if err := s.checkAssignee(groupID, in.AssigneeID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	wasCompleted := task.Status == "completed"

	task.Title = title
	task.Description = util.SanitizeInput(in.Description)
	task.Status = in.Status
	task.AssigneeID = in.AssigneeID
	task.DueAt = in.DueAt
	task.UpdatedAt = now

	switch {
	case in.Status == "completed" && !wasCompleted:
		task.CompletedAt = now
	case in.Status != "completed":
		task.CompletedAt = time.Time{}
	}

	if err := s.tasks.UpdateTask(task); err != nil {
		return nil, err
	}

	s.monitor.LogEvent(ctx, security.EventTaskUpdated, security.EventContext{
		ActorID:   actorID,
		GroupID:   groupID,
		IPAddress: meta.IPAddress,
		Extra:     map[string]interface{}{"task_id": task.TaskID, "status": task.Status},
	})
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, actorID, groupID, taskID string, meta RequestMeta) error {
	if err := s.groups.HasPermission(ctx, actorID, groupID, PermTasksDelete, meta); err != nil {
		return err
	}

	if _, err := s.tasks.GetTaskByID(groupID, taskID); err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(groupID, taskID); err != nil {
		return err
	}

	s.monitor.LogEvent(ctx, security.EventTaskDeleted, security.EventContext{
		ActorID:   actorID,
		GroupID:   groupID,
		IPAddress: meta.IPAddress,
		Extra:     map[string]interface{}{"task_id": taskID},
	})
	return nil
}

func (s *TaskService) checkAssignee(groupID, assigneeID string) error {
	if assigneeID == "" {
		return nil
	}
	if !s.groups.IsMember(groupID, assigneeID) {
		return ErrAssigneeNotMember
	}
	return nil
}
