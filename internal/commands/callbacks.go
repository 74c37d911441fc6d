package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/db"
)

// CallbackStatus prefixes inline buttons that change a task status.
const CallbackStatus = "status"

// Separator used in callback data
const CallbackDataSeparator = ":"

// CallbackResponse contains the response data for a callback query
type CallbackResponse struct {
	CallbackConfig  *tgbotapi.CallbackConfig
	ResponseMessage *tgbotapi.MessageConfig
	// EditMarkup replaces the buttons of the message the callback came from.
	EditMarkup *tgbotapi.EditMessageReplyMarkupConfig
}

// CallbackHandler processes callback queries from buttons
type CallbackHandler struct {
	base
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(stores StoreOpener, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{base: newBase(stores, logger)}
}

func answer(callback *tgbotapi.CallbackQuery, text string) *CallbackResponse {
	cfg := tgbotapi.NewCallback(callback.ID, text)
	return &CallbackResponse{CallbackConfig: &cfg}
}

// HandleCallback processes callback queries
func (h *CallbackHandler) HandleCallback(callback *tgbotapi.CallbackQuery) *CallbackResponse {
	parts := strings.Split(callback.Data, CallbackDataSeparator)
	if len(parts) != 3 || parts[0] != CallbackStatus {
		h.logger.Warn("unknown callback data", "data", callback.Data, "user_id", callback.From.ID)
		return answer(callback, "Неизвестное действие")
	}

	taskID, ok := parseID(parts[1])
	if !ok {
		return answer(callback, "Некорректная задача")
	}
	return h.handleStatus(callback, taskID, db.TaskStatus(parts[2]))
}

func (h *CallbackHandler) handleStatus(callback *tgbotapi.CallbackQuery, taskID int64, status db.TaskStatus) *CallbackResponse {
	var task *db.Task
	err := h.withStore(func(ctx context.Context, st Store) error {
		current, err := st.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if _, _, err := projectRole(ctx, st, current.ProjectID, callback.From.ID); err != nil {
			return err
		}
		task, err = st.UpdateTask(ctx, taskID, db.TaskUpdate{Status: &status})
		return err
	})
	if err != nil {
		text, known := errorText(err)
		if !known {
			h.logger.Error("status callback failed", "task_id", taskID, "user_id", callback.From.ID, "error", err)
		}
		return answer(callback, text)
	}

	resp := answer(callback, "Статус: "+statusTitle(task.Status))
	if callback.Message != nil {
		chatID := callback.Message.Chat.ID
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("🔄 Задача #%d: %s", task.TaskIDInProject, statusTitle(task.Status)))
		resp.ResponseMessage = &msg

		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID, StatusKeyboard(task))
		resp.EditMarkup = &edit
	}
	return resp
}
