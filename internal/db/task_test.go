package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskFixture struct {
	s       *Session
	clock   *testClock
	project *Project
	chatID  int64
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	clock := newTestClock()
	s := newTestSession(t, WithClock(clock.Now))
	mustUser(t, s, 1, "alice")
	mustUser(t, s, 2, "bob")
	mustChat(t, s, -100)
	return &taskFixture{
		s:       s,
		clock:   clock,
		project: mustProject(t, s, 1, "Apollo"),
		chatID:  -100,
	}
}

func (f *taskFixture) create(t *testing.T, title string) *Task {
	t.Helper()
	task, err := f.s.CreateTask(context.Background(), NewTask{
		ProjectID:       f.project.ProjectID,
		CreatorUserID:   1,
		Title:           title,
		ChatIDCreatedIn: f.chatID,
	})
	require.NoError(t, err)
	return task
}

func TestCreateTask_Numbering(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t)

	first := f.create(t, "one")
	second := f.create(t, "two")
	assert.Equal(t, int64(1), first.TaskIDInProject)
	assert.Equal(t, int64(2), second.TaskIDInProject)

	require.NoError(t, f.s.DeleteTask(ctx, first.TaskID))
	third := f.create(t, "three")
	assert.Equal(t, int64(3), third.TaskIDInProject)

	// The highest number is not handed out again after its task is gone.
	require.NoError(t, f.s.DeleteTask(ctx, third.TaskID))
	next, err := f.s.NextTaskNumber(ctx, f.project.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next)
	fourth := f.create(t, "four")
	assert.Equal(t, int64(4), fourth.TaskIDInProject)

	// Numbering is per project.
	other := mustProject(t, f.s, 2, "Gemini")
	task, err := f.s.CreateTask(ctx, NewTask{ProjectID: other.ProjectID, CreatorUserID: 2, Title: "x", ChatIDCreatedIn: f.chatID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), task.TaskIDInProject)
}

func TestCreateTask_Validation(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t)
	missing := int64(404)

	tests := []struct {
		name    string
		task    NewTask
		wantErr error
	}{
		{
			name:    "unknown project",
			task:    NewTask{ProjectID: 404, CreatorUserID: 1, Title: "x", ChatIDCreatedIn: f.chatID},
			wantErr: ErrProjectNotFound,
		},
		{
			name:    "unknown creator",
			task:    NewTask{ProjectID: f.project.ProjectID, CreatorUserID: 404, Title: "x", ChatIDCreatedIn: f.chatID},
			wantErr: ErrUserNotFound,
		},
		{
			name:    "unknown chat",
			task:    NewTask{ProjectID: f.project.ProjectID, CreatorUserID: 1, Title: "x", ChatIDCreatedIn: 42},
			wantErr: ErrChatNotFound,
		},
		{
			name:    "unknown assignee",
			task:    NewTask{ProjectID: f.project.ProjectID, CreatorUserID: 1, Title: "x", ChatIDCreatedIn: f.chatID, AssigneeUserID: &missing},
			wantErr: ErrUserNotFound,
		},
		{
			name:    "invalid status",
			task:    NewTask{ProjectID: f.project.ProjectID, CreatorUserID: 1, Title: "x", ChatIDCreatedIn: f.chatID, Status: "done"},
			wantErr: ErrInvalidTaskStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.s.CreateTask(ctx, tt.task)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	next, err := f.s.NextTaskNumber(ctx, f.project.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next, "failed creations consume no number")
}

func TestGetTask_ByIDAndNumber(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t)
	assignee := int64(2)
	due := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	created, err := f.s.CreateTask(ctx, NewTask{
		ProjectID:       f.project.ProjectID,
		CreatorUserID:   1,
		Title:           "Write report",
		Description:     "quarterly",
		ChatIDCreatedIn: f.chatID,
		AssigneeUserID:  &assignee,
		DueDate:         &due,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, created.Status)
	assert.False(t, created.CompletedAt.Valid)
	assert.Equal(t, int64(2), created.AssigneeUserID.Int64)
	assertSameTime(t, due, created.DueDate.Time)
	assertSameTime(t, f.clock.now, created.CreatedAt)

	byID, err := f.s.GetTask(ctx, created.TaskID)
	require.NoError(t, err)
	byNumber, err := f.s.GetTaskByNumber(ctx, f.project.ProjectID, created.TaskIDInProject)
	require.NoError(t, err)
	assert.Equal(t, byID, byNumber)

	id, err := f.s.GetTaskID(ctx, f.project.ProjectID, created.TaskIDInProject)
	require.NoError(t, err)
	assert.Equal(t, created.TaskID, id)

	_, err = f.s.GetTaskByNumber(ctx, f.project.ProjectID, 99)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = f.s.GetTaskID(ctx, f.project.ProjectID, 99)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = f.s.GetTask(ctx, 9999)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateTask_CompletedAt(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t)
	task := f.create(t, "ship")

	f.clock.Advance(time.Minute)
	completed := StatusCompleted
	task, err := f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	require.True(t, task.CompletedAt.Valid)
	assertSameTime(t, f.clock.now, task.CompletedAt.Time)
	assertSameTime(t, f.clock.now, task.UpdatedAt)

	stored, err := f.s.GetTask(ctx, task.TaskID)
	require.NoError(t, err)
	assert.True(t, stored.CompletedAt.Valid)

	f.clock.Advance(time.Minute)
	inProgress := StatusInProgress
	task, err = f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{Status: &inProgress})
	require.NoError(t, err)
	assert.False(t, task.CompletedAt.Valid)

	stored, err = f.s.GetTask(ctx, task.TaskID)
	require.NoError(t, err)
	assert.False(t, stored.CompletedAt.Valid)
	assert.Equal(t, StatusInProgress, stored.Status)
}

func TestCreateTask_Completed(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.s.CreateTask(context.Background(), NewTask{
		ProjectID:       f.project.ProjectID,
		CreatorUserID:   1,
		Title:           "already done",
		ChatIDCreatedIn: f.chatID,
		Status:          StatusCompleted,
	})
	require.NoError(t, err)
	require.True(t, task.CompletedAt.Valid)
	assertSameTime(t, f.clock.now, task.CompletedAt.Time)
}

func TestUpdateTask_Fields(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t)
	task := f.create(t, "draft")
	createdAt := f.clock.now

	f.clock.Advance(time.Hour)
	unchanged, err := f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{Title: &task.Title})
	require.NoError(t, err)
	assertSameTime(t, createdAt, unchanged.UpdatedAt)

	title := "final"
	description := "v2"
	due := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	task, err = f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{
		Title:       &title,
		Description: &description,
		AssigneeID:  Value[int64](2),
		DueDate:     Value(due),
	})
	require.NoError(t, err)
	assert.Equal(t, "final", task.Title)
	assert.Equal(t, "v2", task.Description)
	assert.Equal(t, int64(2), task.AssigneeUserID.Int64)
	assertSameTime(t, f.clock.now, task.UpdatedAt)

	assigned, err := f.s.ListAssignedTasks(ctx, 2, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assertSameTime(t, due, assigned[0].DueDate.Time)

	task, err = f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{AssigneeID: Null[int64](), DueDate: Null[time.Time]()})
	require.NoError(t, err)
	assert.False(t, task.AssigneeUserID.Valid)
	assert.False(t, task.DueDate.Valid)

	_, err = f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{AssigneeID: Value[int64](404)})
	assert.ErrorIs(t, err, ErrUserNotFound)

	bogus := TaskStatus("done")
	_, err = f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidTaskStatus)

	_, err = f.s.UpdateTask(ctx, 9999, TaskUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestListTasks(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t)
	a := f.create(t, "a")
	b := f.create(t, "b")
	f.create(t, "c")

	review := StatusReview
	_, err := f.s.UpdateTask(ctx, b.TaskID, TaskUpdate{Status: &review, AssigneeID: Value[int64](2)})
	require.NoError(t, err)
	_, err = f.s.UpdateTask(ctx, a.TaskID, TaskUpdate{AssigneeID: Value[int64](2)})
	require.NoError(t, err)

	all, err := f.s.ListProjectTasks(ctx, f.project.ProjectID, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, task := range all {
		assert.Equal(t, int64(i+1), task.TaskIDInProject)
	}

	inReview, err := f.s.ListProjectTasks(ctx, f.project.ProjectID, TaskFilter{Status: &review})
	require.NoError(t, err)
	require.Len(t, inReview, 1)
	assert.Equal(t, "b", inReview[0].Title)

	assigned, err := f.s.ListAssignedTasks(ctx, 2, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	assert.Equal(t, "a", assigned[0].Title)
	assert.Equal(t, "b", assigned[1].Title)

	_, err = f.s.ListProjectTasks(ctx, 404, TaskFilter{})
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = f.s.ListAssignedTasks(ctx, 404, TaskFilter{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = f.s.DeleteTask(ctx, 9999)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskDueDate_ForeignZone(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t)
	due := time.Date(2030, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))

	task, err := f.s.CreateTask(ctx, NewTask{
		ProjectID:       f.project.ProjectID,
		CreatorUserID:   1,
		Title:           "Zoned",
		ChatIDCreatedIn: f.chatID,
		DueDate:         &due,
	})
	require.NoError(t, err)
	assertSameTime(t, due, task.DueDate.Time)

	later := due.Add(24 * time.Hour).In(time.FixedZone("Y", -7200))
	_, err = f.s.UpdateTask(ctx, task.TaskID, TaskUpdate{DueDate: Value(later)})
	require.NoError(t, err)

	stored, err := f.s.GetTask(ctx, task.TaskID)
	require.NoError(t, err)
	assertSameTime(t, later, stored.DueDate.Time)
}
