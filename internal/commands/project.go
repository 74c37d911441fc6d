package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/db"
)

// NewProjectCommand handles /new_project
type NewProjectCommand struct {
	base
}

func NewNewProjectCommand(stores StoreOpener, logger *slog.Logger) *NewProjectCommand {
	return &NewProjectCommand{base: newBase(stores, logger)}
}

func (c *NewProjectCommand) Name() string {
	return "new_project"
}

func (c *NewProjectCommand) Description() string {
	return "создать проект: /new_project <название> | <описание>"
}

func (c *NewProjectCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	name, description := splitDescription(message.CommandArguments())
	if name == "" {
		return reply(message.Chat.ID, "Использование: /new_project <название> | <описание>")
	}

	var project *db.Project
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		project, err = st.CreateProject(ctx, message.From.ID, name, nullString(description))
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("project created", "project_id", project.ProjectID, "user_id", message.From.ID)
	return reply(message.Chat.ID, fmt.Sprintf(
		"✅ Проект «%s» создан, id %d.\nПривяжите чат командой /link %d",
		project.Name, project.ProjectID, project.ProjectID,
	))
}

// ProjectsCommand handles /projects
type ProjectsCommand struct {
	base
}

func NewProjectsCommand(stores StoreOpener, logger *slog.Logger) *ProjectsCommand {
	return &ProjectsCommand{base: newBase(stores, logger)}
}

func (c *ProjectsCommand) Name() string {
	return "projects"
}

func (c *ProjectsCommand) Description() string {
	return "мои проекты и роли в них"
}

func (c *ProjectsCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	var projects []db.ProjectWithRole
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		projects, err = st.ListUserProjectsWithRoles(ctx, message.From.ID)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	if len(projects) == 0 {
		return reply(message.Chat.ID, "У вас пока нет проектов. Создайте первый: /new_project <название>")
	}

	var b strings.Builder
	b.WriteString("📁 Ваши проекты:\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "%d. %s (%s)\n", p.Project.ProjectID, p.Project.Name, roleTitle(p.Role))
	}
	return reply(message.Chat.ID, b.String())
}

// TransferCommand handles /transfer
type TransferCommand struct {
	base
}

func NewTransferCommand(stores StoreOpener, logger *slog.Logger) *TransferCommand {
	return &TransferCommand{base: newBase(stores, logger)}
}

func (c *TransferCommand) Name() string {
	return "transfer"
}

func (c *TransferCommand) Description() string {
	return "передать проект: /transfer <id проекта> <id пользователя>"
}

func (c *TransferCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		return reply(message.Chat.ID, "Использование: /transfer <id проекта> <id пользователя>")
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}
	newOwnerID, ok := parseID(args[1])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id пользователя.")
	}

	var project *db.Project
	err := c.withStore(func(ctx context.Context, st Store) error {
		if _, err := requireOwner(ctx, st, projectID, message.From.ID); err != nil {
			return err
		}
		var err error
		project, err = st.TransferOwnership(ctx, projectID, newOwnerID)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("project ownership transferred",
		"project_id", projectID, "user_id", message.From.ID, "new_owner_id", newOwnerID)
	return reply(message.Chat.ID, fmt.Sprintf(
		"✅ Проект «%s» передан пользователю %d. Вы остаётесь участником.", project.Name, newOwnerID,
	))
}

// DeleteProjectCommand handles /delete_project
type DeleteProjectCommand struct {
	base
}

func NewDeleteProjectCommand(stores StoreOpener, logger *slog.Logger) *DeleteProjectCommand {
	return &DeleteProjectCommand{base: newBase(stores, logger)}
}

func (c *DeleteProjectCommand) Name() string {
	return "delete_project"
}

func (c *DeleteProjectCommand) Description() string {
	return "удалить проект со всеми задачами: /delete_project <id проекта>"
}

func (c *DeleteProjectCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	projectID, ok := parseID(message.CommandArguments())
	if !ok {
		return reply(message.Chat.ID, "Использование: /delete_project <id проекта>")
	}

	var project *db.Project
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		project, err = requireOwner(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		return st.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("project deleted", "project_id", projectID, "user_id", message.From.ID)
	return reply(message.Chat.ID, fmt.Sprintf("🗑 Проект «%s» удалён вместе с задачами и приглашениями.", project.Name))
}

// ChatProjectsCommand handles /chat_projects
type ChatProjectsCommand struct {
	base
}

func NewChatProjectsCommand(stores StoreOpener, logger *slog.Logger) *ChatProjectsCommand {
	return &ChatProjectsCommand{base: newBase(stores, logger)}
}

func (c *ChatProjectsCommand) Name() string {
	return "chat_projects"
}

func (c *ChatProjectsCommand) Description() string {
	return "проекты, привязанные к этому чату"
}

func (c *ChatProjectsCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	var projects []db.Project
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		projects, err = st.ListChatProjects(ctx, message.Chat.ID)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	if len(projects) == 0 {
		return reply(message.Chat.ID, "К этому чату не привязан ни один проект. Привязать: /link <id проекта>")
	}

	var b strings.Builder
	b.WriteString("🔗 Проекты этого чата:\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "%d. %s\n", p.ProjectID, p.Name)
	}
	return reply(message.Chat.ID, b.String())
}

func roleTitle(role db.Role) string {
	switch role {
	case db.RoleOwner:
		return "владелец"
	case db.RoleHelper:
		return "помощник"
	default:
		return "участник"
	}
}
