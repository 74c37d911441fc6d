package commands

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// StartCommand handles the /start command
type StartCommand struct {
	registry *Registry
}

// NewStartCommand creates a new start command handler
func NewStartCommand(registry *Registry) *StartCommand {
	return &StartCommand{
		registry: registry,
	}
}

// Name returns the command name
func (c *StartCommand) Name() string {
	return "start"
}

// Description returns the command description
func (c *StartCommand) Description() string {
	return "начать работу с ботом"
}

func (c *StartCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	welcomeText := `🤖 Привет! Я веду проекты и задачи прямо в чате.

Как пользоваться:
1️⃣ Создай проект
/new_project <название> | <описание>

2️⃣ Привяжи к нему этот чат
/link <id проекта>

3️⃣ Ставь задачи и меняй их статус
/new_task <id проекта> <заголовок> | <описание>
/status <id проекта> <номер> <статус>

4️⃣ Зови коллег
/invite <id проекта> — выдать код приглашения
/join <код> — вступить в проект

`
	msg := tgbotapi.NewMessage(message.Chat.ID, welcomeText+c.registry.GenerateHelpText())
	return &msg
}

// HelpCommand handles the /help command
type HelpCommand struct {
	registry *Registry
}

// NewHelpCommand creates a new help command handler
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		registry: registry,
	}
}

// Name returns the command name
func (c *HelpCommand) Name() string {
	return "help"
}

// Description returns the command description
func (c *HelpCommand) Description() string {
	return "показать список доступных команд"
}

func (c *HelpCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(message.Chat.ID, c.registry.GenerateHelpText())
	return &msg
}
