package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/db"
)

const defaultTimeout = 10 * time.Second

var (
	errNoAccess  = errors.New("user takes no part in the project")
	errForbidden = errors.New("role does not allow the action")
	errNotOwner  = errors.New("only the owner may do this")
)

// base carries what every database-backed command needs.
type base struct {
	stores StoreOpener
	logger *slog.Logger
}

func newBase(stores StoreOpener, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{stores: stores, logger: logger}
}

// withStore runs fn on a fresh store bounded by defaultTimeout.
func (b base) withStore(fn func(ctx context.Context, st Store) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	st := b.stores.OpenStore()
	defer func() {
		if err := st.Close(); err != nil {
			b.logger.Warn("failed to close store", "error", err)
		}
	}()
	return fn(ctx, st)
}

// projectRole returns the role userID effectively holds in the project. Only
// the project's owner gets RoleOwner; a membership row claiming it counts as
// RoleMember. Users without a membership get errNoAccess.
func projectRole(ctx context.Context, st Store, projectID, userID int64) (*db.Project, db.Role, error) {
	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	if project.OwnerUserID == userID {
		return project, db.RoleOwner, nil
	}

	role, err := st.GetMemberRole(ctx, projectID, userID)
	if errors.Is(err, db.ErrMembershipNotFound) || errors.Is(err, db.ErrUserNotFound) {
		return nil, "", errNoAccess
	}
	if err != nil {
		return nil, "", err
	}
	if !role.Assignable() {
		role = db.RoleMember
	}
	return project, role, nil
}

// requireOwner allows the project's owner only.
func requireOwner(ctx context.Context, st Store, projectID, userID int64) (*db.Project, error) {
	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerUserID != userID {
		return nil, errNotOwner
	}
	return project, nil
}

// requireManager allows owners and helpers only.
func requireManager(ctx context.Context, st Store, projectID, userID int64) (*db.Project, error) {
	project, role, err := projectRole(ctx, st, projectID, userID)
	if err != nil {
		return nil, err
	}
	if role != db.RoleOwner && role != db.RoleHelper {
		return nil, errForbidden
	}
	return project, nil
}

// RecordParticipants stores the sender and the chat of an update, so every
// later lookup by Telegram ID succeeds.
func RecordParticipants(ctx context.Context, st Store, from *tgbotapi.User, chat *tgbotapi.Chat) error {
	if from != nil {
		_, err := st.UpsertUser(ctx, db.UserInfo{
			UserID:    from.ID,
			Username:  nullString(from.UserName),
			FirstName: from.FirstName,
			IsBot:     from.IsBot,
		})
		if err != nil {
			return fmt.Errorf("failed to record user %d: %w", from.ID, err)
		}
	}
	if chat != nil {
		_, err := st.EnsureChat(ctx, chat.ID, chat.Type, nullString(chat.Title))
		if err != nil {
			return fmt.Errorf("failed to record chat %d: %w", chat.ID, err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// splitDescription splits "title | description".
func splitDescription(s string) (string, string) {
	title, description, _ := strings.Cut(s, "|")
	return strings.TrimSpace(title), strings.TrimSpace(description)
}

// splitFields splits "a | b | c" into trimmed fields. The result always has
// at least one element.
func splitFields(s string) []string {
	fields := strings.Split(s, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func reply(chatID int64, text string) *tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	return &msg
}
