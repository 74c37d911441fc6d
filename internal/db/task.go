package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `task_id, project_id, task_id_in_project, title, description, status,
	creator_user_id, assignee_user_id, chat_id_created_in,
	created_at, updated_at, completed_at, due_date`

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.TaskID,
		&t.ProjectID,
		&t.TaskIDInProject,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.CreatorUserID,
		&t.AssigneeUserID,
		&t.ChatIDCreatedIn,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
		&t.DueDate,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskUpdate lists the changes UpdateTask applies. Nil pointers and unset
// Fields keep the stored value; Null clears the assignee or the due date.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	AssigneeID  Field[int64]
	DueDate     Field[time.Time]
}

func invalidStatus(status TaskStatus) error {
	return &ConflictError{Kind: ConflictInvalidStatus, Subject: string(status)}
}

// NextTaskNumber returns the number the next task of the project will get.
// Numbers start at 1 and are never handed out twice, even after the task
// holding the highest number is deleted.
func (s *Session) NextTaskNumber(ctx context.Context, projectID int64) (int64, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return s.nextTaskNumber(ctx, projectID, project.LastTaskNumber)
}

func (s *Session) nextTaskNumber(ctx context.Context, projectID, lastIssued int64) (int64, error) {
	var maxNumber sql.NullInt64
	err := s.queryRow(ctx, `SELECT MAX(task_id_in_project) FROM tasks WHERE project_id = ?`, projectID).Scan(&maxNumber)
	if err != nil {
		return 0, storageErr("next task number", err)
	}
	return max(maxNumber.Int64, lastIssued) + 1, nil
}

// CreateTask validates every referenced row and the status, then stores the
// task under the next per-project number.
func (s *Session) CreateTask(ctx context.Context, nt NewTask) (*Task, error) {
	status := nt.Status
	if status == "" {
		status = StatusNew
	}

	var task *Task
	err := s.write(ctx, "create task", func() (bool, error) {
		if _, err := s.GetProject(ctx, nt.ProjectID); err != nil {
			return false, err
		}
		if _, err := s.GetUser(ctx, nt.CreatorUserID); err != nil {
			return false, err
		}
		if _, err := s.GetChat(ctx, nt.ChatIDCreatedIn); err != nil {
			return false, err
		}
		if nt.AssigneeUserID != nil {
			if _, err := s.GetUser(ctx, *nt.AssigneeUserID); err != nil {
				return false, err
			}
		}
		if !status.Valid() {
			return false, invalidStatus(status)
		}

		// Touching the project row serializes task creation per project.
		var lastIssued int64
		err := s.queryRow(ctx, `
			UPDATE projects
			SET last_task_number = last_task_number
			WHERE project_id = ?
			RETURNING last_task_number
		`, nt.ProjectID).Scan(&lastIssued)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, notFound(EntityProject, nt.ProjectID)
			}
			return false, err
		}

		number, err := s.nextTaskNumber(ctx, nt.ProjectID, lastIssued)
		if err != nil {
			return false, err
		}

		now := s.m.timestamp()
		var completedAt sql.NullTime
		if status == StatusCompleted {
			completedAt = sql.NullTime{Time: now, Valid: true}
		}
		var dueDate sql.NullTime
		if nt.DueDate != nil {
			dueDate = sql.NullTime{Time: storedTime(*nt.DueDate), Valid: true}
		}

		var taskID int64
		err = s.queryRow(ctx, `
			INSERT INTO tasks (
				project_id, task_id_in_project, title, description, status,
				creator_user_id, assignee_user_id, chat_id_created_in,
				created_at, updated_at, completed_at, due_date
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING task_id
		`,
			nt.ProjectID, number, nt.Title, nt.Description, status,
			nt.CreatorUserID, nullInt64(nt.AssigneeUserID), nt.ChatIDCreatedIn,
			now, now, completedAt, dueDate,
		).Scan(&taskID)
		if err != nil {
			return false, err
		}

		if _, err := s.exec(ctx, `UPDATE projects SET last_task_number = ? WHERE project_id = ?`, number, nt.ProjectID); err != nil {
			return false, err
		}

		task, err = s.GetTask(ctx, taskID)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask returns the task with the given global ID.
func (s *Session) GetTask(ctx context.Context, taskID int64) (*Task, error) {
	row := s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityTask, taskID)
		}
		return nil, storageErr("get task", err)
	}
	return t, nil
}

// GetTaskByNumber returns the task with the given per-project number.
func (s *Session) GetTaskByNumber(ctx context.Context, projectID, number int64) (*Task, error) {
	row := s.queryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = ? AND task_id_in_project = ?
	`, projectID, number)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityTask, taskNumberKey(projectID, number))
		}
		return nil, storageErr("get task by number", err)
	}
	return t, nil
}

// GetTaskID resolves a per-project number to the global task ID.
func (s *Session) GetTaskID(ctx context.Context, projectID, number int64) (int64, error) {
	var taskID int64
	err := s.queryRow(ctx, `
		SELECT task_id
		FROM tasks
		WHERE project_id = ? AND task_id_in_project = ?
	`, projectID, number).Scan(&taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFound(EntityTask, taskNumberKey(projectID, number))
		}
		return 0, storageErr("get task id", err)
	}
	return taskID, nil
}

// ListProjectTasks returns the project's tasks ordered by number. The
// filter's ProjectID is ignored.
func (s *Session) ListProjectTasks(ctx context.Context, projectID int64, filter TaskFilter) ([]Task, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	filter.ProjectID = &projectID
	return s.listTasks(ctx, "list project tasks", filter, "task_id_in_project")
}

// ListAssignedTasks returns the tasks assigned to assigneeID ordered by
// project and number. The filter's AssigneeID is ignored.
func (s *Session) ListAssignedTasks(ctx context.Context, assigneeID int64, filter TaskFilter) ([]Task, error) {
	if _, err := s.GetUser(ctx, assigneeID); err != nil {
		return nil, err
	}
	if filter.ProjectID != nil {
		if _, err := s.GetProject(ctx, *filter.ProjectID); err != nil {
			return nil, err
		}
	}
	filter.AssigneeID = &assigneeID
	return s.listTasks(ctx, "list assigned tasks", filter, "project_id, task_id_in_project")
}

func (s *Session) listTasks(ctx context.Context, op string, filter TaskFilter, orderBy string) ([]Task, error) {
	var conds []string
	var args []any
	if filter.ProjectID != nil {
		conds = append(conds, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.AssigneeID != nil {
		conds = append(conds, "assignee_user_id = ?")
		args = append(args, *filter.AssigneeID)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY ` + orderBy

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storageErr(op, fmt.Errorf("failed to scan task row: %w", err))
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return tasks, nil
}

// UpdateTask applies upd in a single commit, or not at all when nothing
// changes. completed_at follows the transition between the stored status and
// the final one: entering completed stamps it, leaving completed clears it.
func (s *Session) UpdateTask(ctx context.Context, taskID int64, upd TaskUpdate) (*Task, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, invalidStatus(*upd.Status)
	}

	var task *Task
	err := s.write(ctx, "update task", func() (bool, error) {
		t, err := s.GetTask(ctx, taskID)
		if err != nil {
			return false, err
		}
		task = t

		previousStatus := t.Status
		changed := false

		if upd.Title != nil && t.Title != *upd.Title {
			t.Title = *upd.Title
			changed = true
		}
		if upd.Description != nil && t.Description != *upd.Description {
			t.Description = *upd.Description
			changed = true
		}
		if upd.Status != nil && t.Status != *upd.Status {
			t.Status = *upd.Status
			changed = true
		}
		if upd.AssigneeID.IsSet() {
			id, ok := upd.AssigneeID.Get()
			next := sql.NullInt64{Int64: id, Valid: ok}
			if next != t.AssigneeUserID {
				if ok {
					if _, err := s.GetUser(ctx, id); err != nil {
						return false, err
					}
				}
				t.AssigneeUserID = next
				changed = true
			}
		}
		if upd.DueDate.IsSet() {
			due, ok := upd.DueDate.Get()
			if ok {
				due = storedTime(due)
			}
			if ok != t.DueDate.Valid || (ok && !due.Equal(t.DueDate.Time)) {
				t.DueDate = sql.NullTime{Time: due, Valid: ok}
				changed = true
			}
		}

		now := s.m.timestamp()
		wasCompleted := previousStatus == StatusCompleted
		isCompleted := t.Status == StatusCompleted
		switch {
		case isCompleted && !wasCompleted:
			t.CompletedAt = sql.NullTime{Time: now, Valid: true}
			changed = true
		case !isCompleted && wasCompleted:
			t.CompletedAt = sql.NullTime{}
			changed = true
		}

		if !changed {
			return false, nil
		}
		t.UpdatedAt = now

		_, err = s.exec(ctx, `
			UPDATE tasks
			SET title = ?, description = ?, status = ?, assignee_user_id = ?,
			    due_date = ?, completed_at = ?, updated_at = ?
			WHERE task_id = ?
		`, t.Title, t.Description, t.Status, t.AssigneeUserID, t.DueDate, t.CompletedAt, t.UpdatedAt, taskID)
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes the task. Its number is not reused.
func (s *Session) DeleteTask(ctx context.Context, taskID int64) error {
	return s.write(ctx, "delete task", func() (bool, error) {
		res, err := s.exec(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, notFound(EntityTask, taskID)
		}
		return true, nil
	})
}
