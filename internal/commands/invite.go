package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/project-bot/internal/db"
)

// InviteDefaults configures invites issued by /invite. Zero values mean no
// expiry and no use limit.
type InviteDefaults struct {
	TTL     time.Duration
	MaxUses int64
}

// InviteCommand handles /invite
type InviteCommand struct {
	base
	defaults InviteDefaults
	now      func() time.Time
}

func NewInviteCommand(stores StoreOpener, defaults InviteDefaults, logger *slog.Logger) *InviteCommand {
	return &InviteCommand{
		base:     newBase(stores, logger),
		defaults: defaults,
		now:      time.Now,
	}
}

func (c *InviteCommand) Name() string {
	return "invite"
}

func (c *InviteCommand) Description() string {
	return "выдать код приглашения: /invite <id проекта> [лимит использований]"
}

func (c *InviteCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 || len(args) > 2 {
		return reply(message.Chat.ID, "Использование: /invite <id проекта> [лимит использований]")
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}

	maxUses := c.defaults.MaxUses
	if len(args) == 2 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || n <= 0 {
			return reply(message.Chat.ID, "Лимит использований должен быть положительным числом.")
		}
		maxUses = n
	}

	ni := db.NewInvite{ProjectID: projectID, GeneratedByUserID: message.From.ID}
	if maxUses > 0 {
		ni.MaxUses = &maxUses
	}
	if c.defaults.TTL > 0 {
		expiresAt := c.now().Add(c.defaults.TTL)
		ni.ExpiresAt = &expiresAt
	}

	var (
		project *db.Project
		invite  *db.Invite
	)
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		project, err = requireManager(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		ni.InviteCode, err = st.NewInviteCode(ctx)
		if err != nil {
			return err
		}
		invite, err = st.CreateInvite(ctx, ni)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("invite created", "project_id", projectID, "user_id", message.From.ID, "invite_id", invite.InviteID)

	var b strings.Builder
	fmt.Fprintf(&b, "✉️ Приглашение в проект «%s»:\n/join %s\n", project.Name, invite.InviteCode)
	if invite.MaxUses.Valid {
		fmt.Fprintf(&b, "Использований: %d\n", invite.MaxUses.Int64)
	}
	if invite.ExpiresAt.Valid {
		fmt.Fprintf(&b, "Действует до %s UTC\n", invite.ExpiresAt.Time.UTC().Format("02.01.2006 15:04"))
	}
	return reply(message.Chat.ID, b.String())
}

// JoinCommand handles /join
type JoinCommand struct {
	base
}

func NewJoinCommand(stores StoreOpener, logger *slog.Logger) *JoinCommand {
	return &JoinCommand{base: newBase(stores, logger)}
}

func (c *JoinCommand) Name() string {
	return "join"
}

func (c *JoinCommand) Description() string {
	return "вступить в проект по коду: /join <код>"
}

func (c *JoinCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	code := strings.TrimSpace(message.CommandArguments())
	if code == "" {
		return reply(message.Chat.ID, "Использование: /join <код>")
	}

	var project *db.Project
	err := c.withStore(func(ctx context.Context, st Store) error {
		member, err := st.AcceptInvite(ctx, message.From.ID, code)
		if member == nil {
			return err
		}
		if err != nil {
			// The membership is already stored, only the invite bookkeeping failed.
			c.logger.Warn("invite accepted with error", "user_id", message.From.ID, "project_id", member.ProjectID, "error", err)
		}
		project, err = st.GetProject(ctx, member.ProjectID)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("invite accepted", "project_id", project.ProjectID, "user_id", message.From.ID)
	return reply(message.Chat.ID, fmt.Sprintf("🎉 Вы вступили в проект «%s».", project.Name))
}

// MembersCommand handles /members
type MembersCommand struct {
	base
}

func NewMembersCommand(stores StoreOpener, logger *slog.Logger) *MembersCommand {
	return &MembersCommand{base: newBase(stores, logger)}
}

func (c *MembersCommand) Name() string {
	return "members"
}

func (c *MembersCommand) Description() string {
	return "участники проекта: /members <id проекта>"
}

func (c *MembersCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	projectID, ok := parseID(message.CommandArguments())
	if !ok {
		return reply(message.Chat.ID, "Использование: /members <id проекта>")
	}

	var (
		project *db.Project
		owner   *db.User
		members []db.MemberWithUser
	)
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		project, _, err = projectRole(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		owner, err = st.GetUser(ctx, project.OwnerUserID)
		if err != nil {
			return err
		}
		members, err = st.ListMembers(ctx, projectID)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 Участники проекта «%s»:\n", project.Name)
	fmt.Fprintf(&b, "%s (%s)\n", displayName(owner), roleTitle(db.RoleOwner))
	for i := range members {
		fmt.Fprintf(&b, "%s (%s)\n", displayName(&members[i].User), roleTitle(members[i].Role))
	}
	return reply(message.Chat.ID, b.String())
}

func displayName(u *db.User) string {
	if u.Username.Valid {
		return fmt.Sprintf("%s @%s [%d]", u.FirstName, u.Username.String, u.UserID)
	}
	return fmt.Sprintf("%s [%d]", u.FirstName, u.UserID)
}

// InvitesCommand handles /invites
type InvitesCommand struct {
	base
}

func NewInvitesCommand(stores StoreOpener, logger *slog.Logger) *InvitesCommand {
	return &InvitesCommand{base: newBase(stores, logger)}
}

func (c *InvitesCommand) Name() string {
	return "invites"
}

func (c *InvitesCommand) Description() string {
	return "действующие приглашения: /invites <id проекта>"
}

func (c *InvitesCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	projectID, ok := parseID(message.CommandArguments())
	if !ok {
		return reply(message.Chat.ID, "Использование: /invites <id проекта>")
	}

	var (
		project *db.Project
		invites []db.Invite
	)
	err := c.withStore(func(ctx context.Context, st Store) error {
		var err error
		project, err = requireManager(ctx, st, projectID, message.From.ID)
		if err != nil {
			return err
		}
		invites, err = st.ListProjectInvites(ctx, projectID)
		return err
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	if len(invites) == 0 {
		return reply(message.Chat.ID, fmt.Sprintf("У проекта «%s» нет приглашений. Создать: /invite %d", project.Name, projectID))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✉️ Приглашения проекта «%s»:\n", project.Name)
	for i := range invites {
		b.WriteString(formatInvite(&invites[i]) + "\n")
	}
	b.WriteString("Отозвать: /revoke <id проекта> <id приглашения>")
	return reply(message.Chat.ID, b.String())
}

// RevokeCommand handles /revoke
type RevokeCommand struct {
	base
}

func NewRevokeCommand(stores StoreOpener, logger *slog.Logger) *RevokeCommand {
	return &RevokeCommand{base: newBase(stores, logger)}
}

func (c *RevokeCommand) Name() string {
	return "revoke"
}

func (c *RevokeCommand) Description() string {
	return "отозвать приглашение: /revoke <id проекта> <id приглашения>"
}

func (c *RevokeCommand) Execute(message *tgbotapi.Message) *tgbotapi.MessageConfig {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		return reply(message.Chat.ID, "Использование: /revoke <id проекта> <id приглашения>")
	}
	projectID, ok := parseID(args[0])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id проекта.")
	}
	inviteID, ok := parseID(args[1])
	if !ok {
		return reply(message.Chat.ID, "Некорректный id приглашения.")
	}

	err := c.withStore(func(ctx context.Context, st Store) error {
		if _, err := requireManager(ctx, st, projectID, message.From.ID); err != nil {
			return err
		}
		invite, err := st.GetInviteByID(ctx, inviteID)
		if err != nil {
			return err
		}
		// Only invites of the managed project can be revoked.
		if invite.ProjectID != projectID {
			return db.ErrInviteNotFound
		}
		return st.DeleteInviteByID(ctx, inviteID)
	})
	if err != nil {
		return c.fail(message, c.Name(), err)
	}

	c.logger.Info("invite revoked", "project_id", projectID, "user_id", message.From.ID, "invite_id", inviteID)
	return reply(message.Chat.ID, fmt.Sprintf("🚫 Приглашение %d отозвано.", inviteID))
}

func formatInvite(inv *db.Invite) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s, использований %d", inv.InviteID, inv.InviteCode, inv.CurrentUses)
	if inv.MaxUses.Valid {
		fmt.Fprintf(&b, " из %d", inv.MaxUses.Int64)
	}
	if inv.ExpiresAt.Valid {
		fmt.Fprintf(&b, ", до %s UTC", inv.ExpiresAt.Time.UTC().Format("02.01.2006 15:04"))
	}
	return b.String()
}
