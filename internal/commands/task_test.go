package commands

import (
	"database/sql"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/user/project-bot/internal/db"
)

func TestNewTaskCommand_Execute(t *testing.T) {
	t.Run("member creates task", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).
			WithProject(5, 10, "Apollo").
			WithRole(5, 40, db.RoleMember)
		store.On("CreateTask", mock.Anything, db.NewTask{
			ProjectID:       5,
			CreatorUserID:   40,
			Title:           "Write docs",
			Description:     "user guide",
			ChatIDCreatedIn: -100,
		}).Return(&db.Task{TaskID: 77, ProjectID: 5, TaskIDInProject: 3, Title: "Write docs", Status: db.StatusNew}, nil)

		cmd := NewNewTaskCommand(store.opener(), discardLogger())
		resp := cmd.Execute(CreateCommandMessage(-100, 40, "/new_task", "5 Write docs | user guide"))

		assert.Contains(t, resp.Text, "Задача #3 создана")
		markup, ok := resp.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok)
		require.Len(t, markup.InlineKeyboard, 1)
		assert.Len(t, markup.InlineKeyboard[0], len(db.TaskStatuses)-1)
		assert.Equal(t, "status:77:in_progress", *markup.InlineKeyboard[0][0].CallbackData)
		store.AssertExpectations(t)
	})

	t.Run("missing title", func(t *testing.T) {
		cmd := NewNewTaskCommand(newMockStore().opener(), discardLogger())
		resp := cmd.Execute(CreateCommandMessage(-100, 40, "/new_task", "5"))
		assert.Contains(t, resp.Text, "Использование")
	})

	t.Run("outsider", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).
			WithProject(5, 10, "Apollo").
			WithoutMembership(5, 50)

		resp := NewNewTaskCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 50, "/new_task", "5 Sneaky"))

		assert.Contains(t, resp.Text, "не участвуете")
		store.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	})
}

func TestTasksCommand_Execute(t *testing.T) {
	t.Run("lists tasks with status filter", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		review := db.StatusReview
		store.On("ListProjectTasks", mock.Anything, int64(5), db.TaskFilter{Status: &review}).Return([]db.Task{
			{TaskIDInProject: 1, Title: "Design", Status: db.StatusReview},
			{TaskIDInProject: 4, Title: "Build", Status: db.StatusReview},
		}, nil)

		resp := NewTasksCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/tasks", "5 review"))

		assert.Contains(t, resp.Text, "#1 Design [review]")
		assert.Contains(t, resp.Text, "#4 Build [review]")
	})

	t.Run("empty project", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("ListProjectTasks", mock.Anything, int64(5), db.TaskFilter{}).Return([]db.Task{}, nil)

		resp := NewTasksCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/tasks", "5"))

		assert.Contains(t, resp.Text, "задач нет")
	})

	t.Run("invalid status filter", func(t *testing.T) {
		store := newMockStore()
		resp := NewTasksCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/tasks", "5 done"))

		assert.Contains(t, resp.Text, "Неизвестный статус")
		store.AssertNotCalled(t, "GetProject", mock.Anything, mock.Anything)
	})
}

func TestStatusCommand_Execute(t *testing.T) {
	t.Run("updates status by number", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("GetTaskByNumber", mock.Anything, int64(5), int64(2)).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2, Status: db.StatusNew}, nil)
		completed := db.StatusCompleted
		store.On("UpdateTask", mock.Anything, int64(70), db.TaskUpdate{Status: &completed}).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2, Status: db.StatusCompleted}, nil)

		resp := NewStatusCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/status", "5 2 completed"))

		assert.Contains(t, resp.Text, "#2: выполнена")
		store.AssertExpectations(t)
	})

	t.Run("invalid status from storage", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("GetTaskByNumber", mock.Anything, int64(5), int64(2)).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2}, nil)
		store.On("UpdateTask", mock.Anything, int64(70), mock.Anything).
			Return(nil, &db.ConflictError{Kind: db.ConflictInvalidStatus, Subject: "done"})

		resp := NewStatusCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/status", "5 2 done"))

		assert.Contains(t, resp.Text, "Допустимые: new, in_progress, review, completed, cancelled")
	})

	t.Run("unknown task", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("GetTaskByNumber", mock.Anything, int64(5), int64(9)).
			Return(nil, &db.NotFoundError{Entity: db.EntityTask, Key: "(project=5, number=9)"})

		resp := NewStatusCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/status", "5 9 review"))

		assert.Contains(t, resp.Text, "Задача не найдена")
	})
}

func TestNewTaskCommand_AssigneeAndDueDate(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	t.Run("assigns member with due date", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("IsMember", mock.Anything, int64(5), int64(41)).Return(true, nil)
		store.On("CreateTask", mock.Anything, mock.MatchedBy(func(nt db.NewTask) bool {
			return nt.Title == "Deploy" && nt.Description == "" &&
				nt.AssigneeUserID != nil && *nt.AssigneeUserID == 41 &&
				nt.DueDate != nil && nt.DueDate.Equal(due)
		})).Return(&db.Task{
			TaskID:          80,
			ProjectID:       5,
			TaskIDInProject: 4,
			Title:           "Deploy",
			Status:          db.StatusNew,
			AssigneeUserID:  sql.NullInt64{Int64: 41, Valid: true},
			DueDate:         sql.NullTime{Time: due, Valid: true},
		}, nil)

		cmd := NewNewTaskCommand(store.opener(), discardLogger())
		cmd.now = func() time.Time { return now }
		resp := cmd.Execute(CreateCommandMessage(-100, 10, "/new_task", "5 Deploy | | 41 | 20.03.2025"))

		assert.Contains(t, resp.Text, "Исполнитель: 41")
		assert.Contains(t, resp.Text, "Срок: 20.03.2025")
		store.AssertExpectations(t)
	})

	t.Run("owner as assignee", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).
			WithProject(5, 10, "Apollo").
			WithRole(5, 40, db.RoleMember)
		store.On("CreateTask", mock.Anything, mock.MatchedBy(func(nt db.NewTask) bool {
			return nt.AssigneeUserID != nil && *nt.AssigneeUserID == 10 && nt.DueDate == nil
		})).Return(&db.Task{TaskID: 81, TaskIDInProject: 5, Title: "Review", Status: db.StatusNew}, nil)

		cmd := NewNewTaskCommand(store.opener(), discardLogger())
		resp := cmd.Execute(CreateCommandMessage(-100, 40, "/new_task", "5 Review | check it | 10"))

		assert.Contains(t, resp.Text, "Задача #5 создана")
		store.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("assignee outside project", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("IsMember", mock.Anything, int64(5), int64(99)).Return(false, nil)

		cmd := NewNewTaskCommand(store.opener(), discardLogger())
		resp := cmd.Execute(CreateCommandMessage(-100, 10, "/new_task", "5 Deploy | | 99"))

		assert.Contains(t, resp.Text, "Исполнитель должен быть")
		store.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	})

	t.Run("due date in the past", func(t *testing.T) {
		store := newMockStore()
		cmd := NewNewTaskCommand(store.opener(), discardLogger())
		cmd.now = func() time.Time { return now }
		resp := cmd.Execute(CreateCommandMessage(-100, 10, "/new_task", "5 Deploy | | | 13.03.2025"))

		assert.Contains(t, resp.Text, "Срок не может быть в прошлом")
		store.AssertNotCalled(t, "GetProject", mock.Anything, mock.Anything)
	})

	t.Run("malformed fields", func(t *testing.T) {
		cmd := NewNewTaskCommand(newMockStore().opener(), discardLogger())
		cmd.now = func() time.Time { return now }

		resp := cmd.Execute(CreateCommandMessage(-100, 10, "/new_task", "5 Deploy | | bob"))
		assert.Contains(t, resp.Text, "Некорректный id исполнителя")

		resp = cmd.Execute(CreateCommandMessage(-100, 10, "/new_task", "5 Deploy | | | tomorrow"))
		assert.Contains(t, resp.Text, "Некорректный срок")

		resp = cmd.Execute(CreateCommandMessage(-100, 10, "/new_task", "5 a | b | 1 | 20.03.2025 | extra"))
		assert.Contains(t, resp.Text, "Использование")
	})
}

func TestParseDueDate(t *testing.T) {
	now := time.Date(2025, 3, 14, 23, 30, 0, 0, time.FixedZone("X", -3*3600))

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr error
	}{
		{name: "dotted", input: "20.03.2025", want: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)},
		{name: "iso", input: "2025-03-20", want: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)},
		{name: "today in UTC", input: "15.03.2025", want: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "yesterday in UTC", input: "14.03.2025", wantErr: errDueInPast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDueDate(tt.input, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := parseDueDate("32.13.2025", now)
	assert.Error(t, err)
}

func TestAssignCommand_Execute(t *testing.T) {
	t.Run("assigns member", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).
			WithProject(5, 10, "Apollo").
			WithRole(5, 40, db.RoleMember)
		store.On("IsMember", mock.Anything, int64(5), int64(41)).Return(true, nil)
		store.On("GetTaskByNumber", mock.Anything, int64(5), int64(2)).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2}, nil)
		store.On("UpdateTask", mock.Anything, int64(70), db.TaskUpdate{AssigneeID: db.Value(int64(41))}).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2, AssigneeUserID: sql.NullInt64{Int64: 41, Valid: true}}, nil)

		resp := NewAssignCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 40, "/assign", "5 2 41"))

		assert.Contains(t, resp.Text, "назначена пользователю 41")
		store.AssertExpectations(t)
	})

	t.Run("clears assignee", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("GetTaskByNumber", mock.Anything, int64(5), int64(2)).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2}, nil)
		store.On("UpdateTask", mock.Anything, int64(70), db.TaskUpdate{AssigneeID: db.Null[int64]()}).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2}, nil)

		resp := NewAssignCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/assign", "5 2 -"))

		assert.Contains(t, resp.Text, "больше нет исполнителя")
		store.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lists candidates", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("GetTaskByNumber", mock.Anything, int64(5), int64(2)).
			Return(&db.Task{TaskID: 70, ProjectID: 5, TaskIDInProject: 2, Title: "Design"}, nil)
		store.On("GetUser", mock.Anything, int64(10)).Return(&db.User{UserID: 10, FirstName: "Alice"}, nil)
		store.On("ListProjectUsers", mock.Anything, int64(5)).Return([]db.User{{UserID: 41, FirstName: "Bob"}}, nil)

		resp := NewAssignCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/assign", "5 2"))

		assert.Contains(t, resp.Text, "«Design»")
		assert.Contains(t, resp.Text, "/assign 5 2 10  Alice [10]")
		assert.Contains(t, resp.Text, "/assign 5 2 41  Bob [41]")
		assert.Contains(t, resp.Text, "/assign 5 2 -")
		store.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("assignee outside project", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).WithProject(5, 10, "Apollo")
		store.On("IsMember", mock.Anything, int64(5), int64(99)).Return(false, nil)

		resp := NewAssignCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 10, "/assign", "5 2 99"))

		assert.Contains(t, resp.Text, "Исполнитель должен быть")
		store.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("outsider", func(t *testing.T) {
		store := newMockStore()
		ConfigureMockStore(store).
			WithProject(5, 10, "Apollo").
			WithoutMembership(5, 50)

		resp := NewAssignCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(-100, 50, "/assign", "5 2 50"))

		assert.Contains(t, resp.Text, "не участвуете")
	})
}

func TestMyTasksCommand_Execute(t *testing.T) {
	t.Run("lists assigned tasks", func(t *testing.T) {
		store := newMockStore()
		store.On("ListAssignedTasks", mock.Anything, int64(41), db.TaskFilter{}).Return([]db.Task{
			{ProjectID: 5, TaskIDInProject: 2, Title: "Design", Status: db.StatusInProgress},
			{
				ProjectID:       7,
				TaskIDInProject: 1,
				Title:           "Launch",
				Status:          db.StatusNew,
				DueDate:         sql.NullTime{Time: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), Valid: true},
			},
		}, nil)

		resp := NewMyTasksCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(41, 41, "/my_tasks"))

		assert.Contains(t, resp.Text, "[5] #2 Design [in_progress]")
		assert.Contains(t, resp.Text, "[7] #1 Launch [new] до 20.03.2025")
	})

	t.Run("status filter", func(t *testing.T) {
		store := newMockStore()
		review := db.StatusReview
		store.On("ListAssignedTasks", mock.Anything, int64(41), db.TaskFilter{Status: &review}).Return([]db.Task{}, nil)

		resp := NewMyTasksCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(41, 41, "/my_tasks", "review"))

		assert.Contains(t, resp.Text, "ни одной задачи")
		store.AssertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		store := newMockStore()
		store.On("ListAssignedTasks", mock.Anything, int64(41), db.TaskFilter{}).
			Return(nil, &db.NotFoundError{Entity: db.EntityUser, Key: "41"})

		resp := NewMyTasksCommand(store.opener(), discardLogger()).
			Execute(CreateCommandMessage(41, 41, "/my_tasks"))

		assert.Contains(t, resp.Text, "Пользователь не найден")
	})
}
