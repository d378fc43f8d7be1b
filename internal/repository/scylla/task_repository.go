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

var ErrTaskNotFound = fmt.Errorf("task not found")

// TaskRepository persists tasks partitioned by group. Listing filters are
// applied client-side after the partition read; the assignee access path
// uses a filtered scan, which is acceptable at household scale.
type TaskRepository struct {
	client *ScyllaClient
}

func NewTaskRepository(client *ScyllaClient) *TaskRepository {
	return &TaskRepository{client: client}
}

func (r *TaskRepository) CreateTask(task *model.Task) error {
	if task.TaskID == "" {
		task.TaskID = uuid.New().String()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = "pending"
	}

	err := r.client.Session.Query(`
        INSERT INTO tasks (group_id, task_id, title, description, status,
            assignee_id, created_by, due_at, created_at, updated_at, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.GroupID, task.TaskID, task.Title, task.Description, task.Status,
		task.AssigneeID, task.CreatedBy, task.DueAt, task.CreatedAt,
		task.UpdatedAt, task.CompletedAt).Exec()
	if err != nil {
		util.Error("Failed to create task",
			zap.String("group_id", task.GroupID),
			zap.String("task_id", task.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	util.Info("Task created",
		zap.String("group_id", task.GroupID),
		zap.String("task_id", task.TaskID))
	return nil
}

func (r *TaskRepository) GetTaskByID(groupID, taskID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.client.Session.Query(`
        SELECT group_id, task_id, title, description, status, assignee_id,
               created_by, due_at, created_at, updated_at, completed_at
        FROM tasks WHERE group_id = ? AND task_id = ?`, groupID, taskID).Scan(
		&task.GroupID, &task.TaskID, &task.Title, &task.Description, &task.Status,
		&task.AssigneeID, &task.CreatedBy, &task.DueAt, &task.CreatedAt,
		&task.UpdatedAt, &task.CompletedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) ListTasks(groupID string, filter model.TaskFilter) ([]*model.Task, error) {
	var tasks []*model.Task

	iter := r.client.Session.Query(`
        SELECT group_id, task_id, title, description, status, assignee_id,
               created_by, due_at, created_at, updated_at, completed_at
        FROM tasks WHERE group_id = ?`, groupID).Iter()
	for {
		task := &model.Task{}
		if !iter.Scan(&task.GroupID, &task.TaskID, &task.Title, &task.Description,
			&task.Status, &task.AssigneeID, &task.CreatedBy, &task.DueAt,
			&task.CreatedAt, &task.UpdatedAt, &task.CompletedAt) {
			break
		}
		if matchesFilter(task, filter) {
			tasks = append(tasks, task)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func matchesFilter(task *model.Task, filter model.TaskFilter) bool {
	if filter.Status != "" && task.Status != filter.Status {
		return false
	}
	if filter.AssigneeID != "" && task.AssigneeID != filter.AssigneeID {
		return false
	}
	if !filter.DueBefore.IsZero() && !task.DueAt.Before(filter.DueBefore) {
		return false
	}
	if !filter.DueAfter.IsZero() && !task.DueAt.After(filter.DueAfter) {
		return false
	}
	return true
}

func (r *TaskRepository) ListMemberTasks(memberID string) ([]*model.Task, error) {
	var tasks []*model.Task

	iter := r.client.Session.Query(`
        SELECT group_id, task_id, title, description, status, assignee_id,
               created_by, due_at, created_at, updated_at, completed_at
        FROM tasks WHERE assignee_id = ? ALLOW FILTERING`, memberID).Iter()
	for {
		task := &model.Task{}
		if !iter.Scan(&task.GroupID, &task.TaskID, &task.Title, &task.Description,
			&task.Status, &task.AssigneeID, &task.CreatedBy, &task.DueAt,
			&task.CreatedAt, &task.UpdatedAt, &task.CompletedAt) {
			break
		}
		tasks = append(tasks, task)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list member tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateTask(task *model.Task) error {
	task.UpdatedAt = time.Now().UTC()

	err := r.client.Session.Query(`
        UPDATE tasks SET title = ?, description = ?, status = ?, assignee_id = ?,
            due_at = ?, updated_at = ?, completed_at = ?
        WHERE group_id = ? AND task_id = ?`,
		task.Title, task.Description, task.Status, task.AssigneeID,
		task.DueAt, task.UpdatedAt, task.CompletedAt,
		task.GroupID, task.TaskID).Exec()
	if err != nil {
		util.Error("Failed to update task",
			zap.String("task_id", task.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (r *TaskRepository) DeleteTask(groupID, taskID string) error {
	err := r.client.Session.Query(`
        DELETE FROM tasks WHERE group_id = ? AND task_id = ?`, groupID, taskID).Exec()
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	util.Info("Task deleted",
		zap.String("group_id", groupID),
		zap.String("task_id", taskID))
	return nil
}

// UnassignMemberTasks clears the assignee on every task assigned to the
// member, part of GDPR deletion.
func (r *TaskRepository) UnassignMemberTasks(memberID string) error {
	tasks, err := r.ListMemberTasks(memberID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	batch := r.client.Session.NewBatch(gocql.UnloggedBatch)
	for _, task := range tasks {
		batch.Query(`UPDATE tasks SET assignee_id = '', updated_at = ?
            WHERE group_id = ? AND task_id = ?`,
			time.Now().UTC(), task.GroupID, task.TaskID)
	}

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to unassign member tasks: %w", err)
	}

	util.Info("Member tasks unassigned",
		zap.String("member_id", memberID),
		zap.Int("count", len(tasks)))
	return nil
}
