package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/commands"
	"github.com/user/project-bot/internal/httpclient"
)

const recordTimeout = 5 * time.Second

// Options configures the Telegram transport and the commands the bot
// registers. A zero HTTP config selects httpclient.DefaultConfig and an empty
// APIEndpoint the public Bot API.
type Options struct {
	APIEndpoint string
	HTTP        httpclient.Config
	Invites     commands.InviteDefaults
	Logger      *slog.Logger
}

type Bot struct {
	api             *tgbotapi.BotAPI
	commandRegistry *commands.Registry
	callbackHandler *commands.CallbackHandler
	stores          commands.StoreOpener
	logger          *slog.Logger
	wg              sync.WaitGroup
	stopCh          chan struct{}
}

func New(telegramToken string, stores commands.StoreOpener, opts Options) (*Bot, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpConfig := opts.HTTP
	if httpConfig == (httpclient.Config{}) {
		httpConfig = httpclient.DefaultConfig()
	}
	client := httpclient.NewClient(httpConfig).
		WithMiddleware(httpclient.LoggingMiddleware(logger.With("component", "telegram")))

	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithClient(telegramToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram client: %s", httpclient.RedactURL(err.Error()))
	}

	return &Bot{
		api:             api,
		commandRegistry: NewRegistry(stores, opts.Invites, logger),
		callbackHandler: commands.NewCallbackHandler(stores, logger),
		stores:          stores,
		logger:          logger,
		stopCh:          make(chan struct{}),
	}, nil
}

// NewRegistry registers every chat command in the order /help lists them.
func NewRegistry(stores commands.StoreOpener, invites commands.InviteDefaults, logger *slog.Logger) *commands.Registry {
	registry := commands.NewRegistry()

	registry.Register(commands.NewStartCommand(registry))
	registry.Register(commands.NewHelpCommand(registry))

	// Projects
	registry.Register(commands.NewNewProjectCommand(stores, logger))
	registry.Register(commands.NewProjectsCommand(stores, logger))
	registry.Register(commands.NewLinkCommand(stores, logger))
	registry.Register(commands.NewUnlinkCommand(stores, logger))
	registry.Register(commands.NewTransferCommand(stores, logger))
	registry.Register(commands.NewDeleteProjectCommand(stores, logger))
	registry.Register(commands.NewChatProjectsCommand(stores, logger))

	// Tasks
	registry.Register(commands.NewNewTaskCommand(stores, logger))
	registry.Register(commands.NewTasksCommand(stores, logger))
	registry.Register(commands.NewStatusCommand(stores, logger))
	registry.Register(commands.NewAssignCommand(stores, logger))
	registry.Register(commands.NewMyTasksCommand(stores, logger))

	// Membership
	registry.Register(commands.NewInviteCommand(stores, invites, logger))
	registry.Register(commands.NewJoinCommand(stores, logger))
	registry.Register(commands.NewMembersCommand(stores, logger))
	registry.Register(commands.NewRoleCommand(stores, logger))
	registry.Register(commands.NewKickCommand(stores, logger))
	registry.Register(commands.NewInvitesCommand(stores, logger))
	registry.Register(commands.NewRevokeCommand(stores, logger))

	return registry
}

// Start begins listening for updates from Telegram
func (b *Bot) Start() error {
	if err := b.publishCommands(); err != nil {
		b.logger.Warn("failed to publish command list", "error", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleUpdates(updates)
	}()

	b.logger.Info("bot started", "username", b.api.Self.UserName)
	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() {
	close(b.stopCh)
	b.api.StopReceivingUpdates()
	b.wg.Wait()
}

// publishCommands fills the command menu Telegram clients show.
func (b *Bot) publishCommands() error {
	var cmds []tgbotapi.BotCommand
	for _, cmd := range b.commandRegistry.GetAll() {
		cmds = append(cmds, tgbotapi.BotCommand{Command: cmd.Name(), Description: cmd.Description()})
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

// handleUpdates processes incoming updates from Telegram
func (b *Bot) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-b.stopCh:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(update)
		}
	}
}

// handleUpdate processes a single update from Telegram
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
		return
	}

	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}
}

// recordParticipants keeps users and chats in sync before any command runs.
func (b *Bot) recordParticipants(from *tgbotapi.User, chat *tgbotapi.Chat) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	st := b.stores.OpenStore()
	defer st.Close()

	if err := commands.RecordParticipants(ctx, st, from, chat); err != nil {
		attrs := []any{"error", err}
		if chat != nil {
			attrs = append(attrs, "chat_id", chat.ID)
		}
		b.logger.Error("failed to record participants", attrs...)
	}
}

// handleCallback processes callback queries from inline buttons
func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	b.logger.Debug("callback received", "user_id", callback.From.ID, "data", callback.Data)

	var chat *tgbotapi.Chat
	if callback.Message != nil {
		chat = callback.Message.Chat
	}
	b.recordParticipants(callback.From, chat)

	resp := b.callbackHandler.HandleCallback(callback)
	if resp == nil {
		return
	}
	if resp.CallbackConfig != nil {
		if _, err := b.api.Request(resp.CallbackConfig); err != nil {
			b.logger.Error("failed to answer callback", "user_id", callback.From.ID, "error", err)
		}
	}
	if resp.EditMarkup != nil {
		if _, err := b.api.Request(resp.EditMarkup); err != nil {
			b.logger.Warn("failed to update buttons", "chat_id", resp.EditMarkup.ChatID, "error", err)
		}
	}
	b.sendResponse(resp.ResponseMessage)
}

// handleMessage processes a single message from a user
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	b.recordParticipants(message.From, message.Chat)

	if !message.IsCommand() || message.From == nil {
		return
	}

	commandName := message.Command()
	b.logger.Info("command received",
		"command", commandName, "chat_id", message.Chat.ID, "user_id", message.From.ID)

	command, exists := b.commandRegistry.Get(commandName)
	if !exists {
		b.sendMessage(message.Chat.ID, "Неизвестная команда. Список команд: /help")
		return
	}

	b.sendResponse(command.Execute(message))
}

// sendResponse sends a prepared message and logs delivery failures
func (b *Bot) sendResponse(msgConfig *tgbotapi.MessageConfig) {
	if msgConfig == nil {
		return
	}

	if _, err := b.api.Send(msgConfig); err != nil {
		b.logger.Error("failed to send message", "chat_id", msgConfig.ChatID, "error", err)
	}
}

// sendMessage simplified method for sending text messages
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	b.sendResponse(&msg)
}
