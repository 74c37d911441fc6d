package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/db"
)

const dueDateLayout = "02.01.2006"

var (
	errAssigneeOutside = errors.New("assignee takes no part in the project")
	errDueInPast       = errors.New("due date lies in the past")
)

const newTaskUsage = "Использование: /new_task <id проекта> <заголовок> | <описание> | <id исполнителя> | <срок ДД.ММ.ГГГГ>"

// NewTaskCommand handles /new_task
type NewTaskCommand struct {
	base
	now func() time.Time
}

func NewNewTaskCommand(stores StoreOpener, logger *slog.Logger) *NewTaskCommand {
	return &NewTaskCommand{base: newBase(stores, logger), now: time.Now}
}

func (c *NewTaskCommand) Name() string {
	return "new_task"
}

func (c *NewTaskCommand) Description() string {
	return "создать задачу: /new_task <id проекта> <заголовок> | <описание> | <id исполнителя> | <срок>"
}

func (c *NewTaskCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	rawProjectID, rest, _ := strings.Cut(strings.TrimSpace(message.CommandArguments()), " ")
	projectID, ok := parseID(rawProjectID)
	fields := splitFields(rest)
	if !ok || len(fields) > 4 || fields[0] == "" {
		return reply(message.Chat.ID, newTaskUsage)
	}

	nt := db.NewTask{
		ProjectID:       projectID,
		CreatorUserID:   message.From.ID,
		Title:           fields[0],
		ChatIDCreatedIn: message.Chat.ID,
	}
	if len(fields) > 1 {
		nt.Description = fields[1]
	}
	if len(fields) > 2 && fields[2] != "" {
		assigneeID, ok := parseID(fields[2])
		if !ok {
			return reply(message.Chat.ID, "Некорректный id исполнителя.")
		}
		nt.AssigneeUserID = &assigneeID
	}
	if len(fields) > 3 && fields[3] != "" {
		due, err := parseDueDate(fields[3], c.now())
		if errors.Is(err, errDueInPast) {
			return c.fail(message, c.Name(), err)
		}
		if err != nil {
			return reply(message.Chat.ID, "Некорректный срок, ожидается ДД.ММ.ГГГГ.")
		}
		nt.DueDate = &due
	}

	var task *db.Task
	err := c.withStore(func(ctx context.Context, st Store) error {
		project, _, err := projectRole(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		if nt.AssigneeUserID != nil {
			if err := requireParticipant(ctx, st, project, *nt.AssigneeUserID); err != nil {
				return err
			}
		}
		task, err = st.CreateTask(ctx, nt)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("task created",
		"project_id", projectID, "task_id", task.TaskID, "number", task.TaskIDInProject, "user_id", message.From.ID)

	msg := reply(message.Chat.ID, fmt.Sprintf("✅ Задача #%d создана\n%s", task.TaskIDInProject, formatTask(task)))
	msg.ReplyMarkup = StatusKeyboard(task)
	return msg
}

// AssignCommand handles /assign
type AssignCommand struct {
	base
}

func NewAssignCommand(stores StoreOpener, logger *slog.Logger) *AssignCommand {
	return &AssignCommand{base: newBase(stores, logger)}
}

func (c *AssignCommand) Name() string {
	return "assign"
}

func (c *AssignCommand) Description() string {
	return "назначить исполнителя: /assign <id проекта> <номер задачи> [id пользователя | -]"
}

func (c *AssignCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) < 2 || len(args) > 3 {
		return reply(message.Chat.ID, "Использование: /assign <id проекта> <номер задачи> [id пользователя | -]")
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}
	number, ok := parseID(args[1])
	if !ok {
		return reply(message.Chat.ID, "Некорректный номер задачи.")
	}
	if len(args) == 2 {
		return c.candidates(message, projectID, number)
	}

	var assignee db.Field[int64]
	if args[2] == "-" {
		assignee = db.Null[int64]()
	} else {
		userID, ok := parseID(args[2])
		if !ok {
			return reply(message.Chat.ID, "Некорректный id пользователя.")
		}
		assignee = db.Value(userID)
	}

	var task *db.Task
	err := c.withStore(func(ctx context.Context, st Store) error {
		project, _, err := projectRole(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		if userID, ok := assignee.Get(); ok {
			if err := requireParticipant(ctx, st, project, userID); err != nil {
				return err
			}
		}
		current, err := st.GetTaskByNumber(ctx, projectID, number)
		if err != nil {
			return err
		}
		task, err = st.UpdateTask(ctx, current.TaskID, db.TaskUpdate{AssigneeID: assignee})
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("task assignee changed",
		"project_id", projectID, "task_id", task.TaskID, "user_id", message.From.ID, "assignee_id", task.AssigneeUserID.Int64)
	if !task.AssigneeUserID.Valid {
		return reply(message.Chat.ID, fmt.Sprintf("👤 У задачи #%d больше нет исполнителя.", task.TaskIDInProject))
	}
	return reply(message.Chat.ID, fmt.Sprintf("👤 Задача #%d назначена пользователю %d.", task.TaskIDInProject, task.AssigneeUserID.Int64))
}

// candidates lists who the task can be assigned to.
func (c *AssignCommand) candidates(message *tgbotapi.Message, projectID, number int64) *tgbotapi.MessageConfig {
	var (
		task  *db.Task
		users []db.User
	)
	err := c.withStore(func(ctx context.Context, st Store) error {
		project, _, err := projectRole(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		task, err = st.GetTaskByNumber(ctx, projectID, number)
		if err != nil {
			return err
		}
		owner, err := st.GetUser(ctx, project.OwnerUserID)
		if err != nil {
			return err
		}
		members, err := st.ListProjectUsers(ctx, projectID)
		if err != nil {
			return err
		}
		users = append([]db.User{*owner}, members...)
		return nil
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Кому назначить задачу #%d «%s»?\n", task.TaskIDInProject, task.Title)
	for i := range users {
		fmt.Fprintf(&b, "/assign %d %d %d  %s\n", projectID, number, users[i].UserID, displayName(&users[i]))
	}
	fmt.Fprintf(&b, "/assign %d %d -  снять исполнителя", projectID, number)
	return reply(message.Chat.ID, b.String())
}

// MyTasksCommand handles /my_tasks
type MyTasksCommand struct {
	base
}

func NewMyTasksCommand(stores StoreOpener, logger *slog.Logger) *MyTasksCommand {
	return &MyTasksCommand{base: newBase(stores, logger)}
}

func (c *MyTasksCommand) Name() string {
	return "my_tasks"
}

func (c *MyTasksCommand) Description() string {
	return "задачи, назначенные мне: /my_tasks [статус]"
}

func (c *MyTasksCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) > 1 {
		return reply(message.Chat.ID, "Использование: /my_tasks [статус]")
	}
	var filter db.TaskFilter
	if len(args) == 1 {
		status := db.TaskStatus(args[0])
		if !status.Valid() {
			return c.fail(message, c.Name(), db.ErrInvalidTaskStatus)
		}
		filter.Status = &status
	}

	var tasks []db.Task
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		tasks, err = st.ListAssignedTasks(ctx, message.From.ID, filter)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	if len(tasks) == 0 {
		return reply(message.Chat.ID, "На вас не назначено ни одной задачи.")
	}

	var b strings.Builder
	b.WriteString("📌 Ваши задачи:\n")
	for i := range tasks {
		fmt.Fprintf(&b, "[%d] #%d %s [%s]", tasks[i].ProjectID, tasks[i].TaskIDInProject, tasks[i].Title, tasks[i].Status)
		if tasks[i].DueDate.Valid {
			b.WriteString(" до " + tasks[i].DueDate.Time.UTC().Format(dueDateLayout))
		}
		b.WriteString("\n")
	}
	return reply(message.Chat.ID, b.String())
}

// TasksCommand handles /tasks
type TasksCommand struct {
	base
}

func NewTasksCommand(stores StoreOpener, logger *slog.Logger) *TasksCommand {
	return &TasksCommand{base: newBase(stores, logger)}
}

func (c *TasksCommand) Name() string {
	return "tasks"
}

func (c *TasksCommand) Description() string {
	return "задачи проекта: /tasks <id проекта> [статус]"
}

func (c *TasksCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 || len(args) > 2 {
		return reply(message.Chat.ID, "Использование: /tasks <id проекта> [статус]")
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}

	var filter db.TaskFilter
	if len(args) == 2 {
		status := db.TaskStatus(args[1])
		if !status.Valid() {
			return c.fail(message, c.Name(), db.ErrInvalidTaskStatus)
		}
		filter.Status = &status
	}

	var (
		project *db.Project
		tasks   []db.Task
	)
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		project, _, err = projectRole(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		tasks, err = st.ListProjectTasks(ctx, projectID, filter)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	if len(tasks) == 0 {
		return reply(message.Chat.ID, fmt.Sprintf("В проекте «%s» задач нет.", project.Name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Задачи проекта «%s»:\n", project.Name)
	for i := range tasks {
		fmt.Fprintf(&b, "#%d %s [%s]\n", tasks[i].TaskIDInProject, tasks[i].Title, tasks[i].Status)
	}
	return reply(message.Chat.ID, b.String())
}

// StatusCommand handles /status
type StatusCommand struct {
	base
}

func NewStatusCommand(stores StoreOpener, logger *slog.Logger) *StatusCommand {
	return &StatusCommand{base: newBase(stores, logger)}
}

func (c *StatusCommand) Name() string {
	return "status"
}

func (c *StatusCommand) Description() string {
	return "сменить статус: /status <id проекта> <номер задачи> <статус>"
}

func (c *StatusCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 3 {
		return reply(message.Chat.ID, "Использование: /status <id проекта> <номер задачи> <статус>\nСтатусы: "+statusList())
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}
	number, ok := parseID(args[1])
	if !ok {
		return reply(message.Chat.ID, "Некорректный номер задачи.")
	}
	status := db.TaskStatus(args[2])

	var task *db.Task
	err := c.withStore(func(ctx context.Context, st Store) error {
		if _, _, err := projectRole(ctx, st, projectID, message.From.ID); err != nil {
			return err
		}
		current, err := st.GetTaskByNumber(ctx, projectID, number)
		if err != nil {
			return err
		}
		task, err = st.UpdateTask(ctx, current.TaskID, db.TaskUpdate{Status: &status})
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	return reply(message.Chat.ID, fmt.Sprintf("🔄 Задача #%d: %s", task.TaskIDInProject, statusTitle(task.Status)))
}

func formatTask(t *db.Task) string {
	var b strings.Builder
	b.WriteString(t.Title)
	if t.Description != "" {
		b.WriteString("\n" + t.Description)
	}
	b.WriteString("\nСтатус: " + statusTitle(t.Status))
	if t.AssigneeUserID.Valid {
		fmt.Fprintf(&b, "\nИсполнитель: %d", t.AssigneeUserID.Int64)
	}
	if t.DueDate.Valid {
		b.WriteString("\nСрок: " + t.DueDate.Time.UTC().Format(dueDateLayout))
	}
	return b.String()
}

// parseDueDate reads a DD.MM.YYYY or YYYY-MM-DD date as midnight UTC. Dates
// before today are rejected with errDueInPast.
func parseDueDate(s string, now time.Time) (time.Time, error) {
	due, err := time.Parse(dueDateLayout, s)
	if err != nil {
		due, err = time.Parse(time.DateOnly, s)
	}
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := now.UTC().Date()
	if due.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return time.Time{}, errDueInPast
	}
	return due, nil
}

// requireParticipant fails with errAssigneeOutside unless userID owns the
// project or is a member of it.
func requireParticipant(ctx context.Context, st Store, project *db.Project, userID int64) error {
	if project.OwnerUserID == userID {
		return nil
	}
	ok, err := st.IsMember(ctx, project.ProjectID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errAssigneeOutside
	}
	return nil
}

func statusTitle(s db.TaskStatus) string {
	switch s {
	case db.StatusNew:
		return "новая"
	case db.StatusInProgress:
		return "в работе"
	case db.StatusReview:
		return "на проверке"
	case db.StatusCompleted:
		return "выполнена"
	case db.StatusCancelled:
		return "отменена"
	}
	return string(s)
}

// StatusKeyboard offers every status the task is not in yet.
func StatusKeyboard(t *db.Task) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range db.TaskStatuses {
		if s == t.Status {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(statusTitle(s), StatusCallbackData(t.TaskID, s)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// StatusCallbackData encodes a status change as status:<task_id>:<status>.
func StatusCallbackData(taskID int64, status db.TaskStatus) string {
	return strings.Join([]string{CallbackStatus, strconv.FormatInt(taskID, 10), string(status)}, CallbackDataSeparator)
}
