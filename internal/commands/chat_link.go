package commands

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// LinkCommand handles /link and /unlink. Only owners and helpers may change
// which chats a project is attached to.
type LinkCommand struct {
	base
	unlink bool
}

func NewLinkCommand(stores StoreOpener, logger *slog.Logger) *LinkCommand {
	return &LinkCommand{base: newBase(stores, logger)}
}

func NewUnlinkCommand(stores StoreOpener, logger *slog.Logger) *LinkCommand {
	return &LinkCommand{base: newBase(stores, logger), unlink: true}
}

func (c *LinkCommand) Name() string {
	if c.unlink {
		return "unlink"
	}
	return "link"
}

func (c *LinkCommand) Description() string {
	if c.unlink {
		return "отвязать этот чат от проекта: /unlink <id проекта>"
	}
	return "привязать этот чат к проекту: /link <id проекта>"
}

func (c *LinkCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	projectID, ok := parseID(message.CommandArguments())
	if !ok {
		return reply(message.Chat.ID, fmt.Sprintf("Использование: /%s <id проекта>", c.Name()))
	}

	var projectName string
	err := c.withStore(func(ctx context.Context, st Store) error {
		project, err := requireManager(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		projectName = project.Name
		if c.unlink {
			return st.UnlinkChat(ctx, projectID, message.Chat.ID)
		}
		return st.LinkChat(ctx, projectID, message.Chat.ID)
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	if c.unlink {
		return reply(message.Chat.ID, fmt.Sprintf("🔌 Чат отвязан от проекта «%s».", projectName))
	}
	return reply(message.Chat.ID, fmt.Sprintf("🔗 Чат привязан к проекту «%s».", projectName))
}
