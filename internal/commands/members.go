package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/db"
)

var errKickManager = errors.New("helpers may remove plain members only")

// RoleCommand handles /role
type RoleCommand struct {
	base
}

func NewRoleCommand(stores StoreOpener, logger *slog.Logger) *RoleCommand {
	return &RoleCommand{base: newBase(stores, logger)}
}

func (c *RoleCommand) Name() string {
	return "role"
}

func (c *RoleCommand) Description() string {
	return "назначить роль: /role <id проекта> <id пользователя> <member|helper>"
}

func (c *RoleCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 3 {
		return reply(message.Chat.ID, "Использование: /role <id проекта> <id пользователя> <member|helper>")
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}
	userID, ok := parseID(args[1])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id пользователя.")
	}
	role := db.Role(strings.ToLower(args[2]))
	if !role.Assignable() {
		return c.fail(message, c.Name(), db.ErrInvalidRole)
	}

	var (
		project *db.Project
		member  *db.ProjectMember
	)
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		project, err = requireOwner(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		member, err = st.UpdateMemberRole(ctx, projectID, userID, role)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("member role changed",
		"project_id", projectID, "user_id", message.From.ID, "member_id", userID, "role", member.Role)
	return reply(message.Chat.ID, fmt.Sprintf(
		"✅ Пользователь %d теперь %s в проекте «%s».", userID, roleTitle(member.Role), project.Name,
	))
}

// KickCommand handles /kick
type KickCommand struct {
	base
}

func NewKickCommand(stores StoreOpener, logger *slog.Logger) *KickCommand {
	return &KickCommand{base: newBase(stores, logger)}
}

func (c *KickCommand) Name() string {
	return "kick"
}

func (c *KickCommand) Description() string {
	return "исключить участника: /kick <id проекта> <id пользователя>"
}

func (c *KickCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		return reply(message.Chat.ID, "Использование: /kick <id проекта> <id пользователя>")
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}
	userID, ok := parseID(args[1])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id пользователя.")
	}

	var project *db.Project
	err := c.withStore(func(ctx context.Context, st Store) error {
		var (
			role db.Role
			err  error
		)
		project, role, err = projectRole(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		switch role {
		case db.RoleOwner:
		case db.RoleHelper:
			target, err := st.GetMemberRole(ctx, projectID, userID)
			if err != nil {
				return err
			}
			if target == db.RoleHelper && userID != message.From.ID {
				return errKickManager
			}
		default:
			return errForbidden
		}
		return st.RemoveMember(ctx, projectID, userID)
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("member removed", "project_id", projectID, "user_id", message.From.ID, "member_id", userID)
	return reply(message.Chat.ID, fmt.Sprintf("👋 Пользователь %d исключён из проекта «%s».", userID, project.Name))
}
