package commands

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/db"
)

var errorReplies = []struct {
	target error
	text   string
}{
	{errNoAccess, "⛔ Вы не участвуете в этом проекте."},
	{errForbidden, "⛔ Недостаточно прав: действие доступно владельцу и помощникам."},
	{errNotOwner, "⛔ Это может сделать только владелец проекта."},
	{errKickManager, "⛔ Помощник может исключать только участников."},
	{errAssigneeOutside, "⚠️ Исполнитель должен быть владельцем или участником проекта."},
	{errDueInPast, "⚠️ Срок не может быть в прошлом."},
	{db.ErrProjectNotFound, "❌ Проект не найден."},
	{db.ErrTaskNotFound, "❌ Задача не найдена."},
	{db.ErrUserNotFound, "❌ Пользователь не найден. Он должен сначала написать боту."},
	{db.ErrMembershipNotFound, "❌ Пользователь не состоит в проекте."},
	{db.ErrChatNotFound, "❌ Чат не найден."},
	{db.ErrInviteNotFound, "❌ Приглашение не найдено или уже использовано."},
	{db.ErrInviteExpired, "⌛ Срок действия приглашения истёк."},
	{db.ErrInviteExhausted, "⌛ Приглашение больше недействительно."},
	{db.ErrProjectNameTaken, "⚠️ Проект с таким названием уже существует."},
	{db.ErrAlreadyMember, "ℹ️ Вы уже участник этого проекта."},
	{db.ErrOwnerAsMember, "ℹ️ Владелец проекта не может быть его участником."},
	{db.ErrChatAlreadyLinked, "ℹ️ Этот чат уже привязан к проекту."},
	{db.ErrChatNotLinked, "ℹ️ Этот чат не привязан к проекту."},
	{db.ErrInvalidRole, "⚠️ Роль должна быть member или helper."},
	{db.ErrInvalidTaskStatus, "⚠️ Неизвестный статус. Допустимые: " + statusList() + "."},
}

func statusList() string {
	names := make([]string, len(db.TaskStatuses))
	for i, s := range db.TaskStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// errorText renders err for the chat. known is false for errors that carry
// no domain meaning and have to be logged.
func errorText(err error) (text string, known bool) {
	for _, r := range errorReplies {
		if errors.Is(err, r.target) {
			return r.text, true
		}
	}
	return "❌ Что-то пошло не так, попробуйте позже.", false
}

// fail turns err into the reply for message, logging unexpected failures.
func (b base) fail(message *tgbotapi.Message, command string, err error) *tgbotapi.MessageConfig {
	text, known := errorText(err)
	if !known {
		attrs := []any{"command", command, "chat_id", message.Chat.ID, "error", err}
		if message.From != nil {
			attrs = append(attrs, "user_id", message.From.ID)
		}
		b.logger.Error("command failed", attrs...)
	}
	return reply(message.Chat.ID, text)
}
