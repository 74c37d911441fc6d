package commands

import (
	"context"
	"database/sql"

	"github.com/user/project-bot/internal/db"
)

// Store is the part of a db.Session the commands use. Every command opens
// one Store per message and closes it before replying.
type Store interface {
	UpsertUser(ctx context.Context, info db.UserInfo) (*db.User, error)
	GetUser(ctx context.Context, userID int64) (*db.User, error)
	EnsureChat(ctx context.Context, chatID int64, chatType string, title sql.NullString) (*db.Chat, error)

	CreateProject(ctx context.Context, ownerID int64, name string, description sql.NullString) (*db.Project, error)
	GetProject(ctx context.Context, projectID int64) (*db.Project, error)
	ListUserProjectsWithRoles(ctx context.Context, userID int64) ([]db.ProjectWithRole, error)
	TransferOwnership(ctx context.Context, projectID, newOwnerID int64) (*db.Project, error)
	DeleteProject(ctx context.Context, projectID int64) error
	ListChatProjects(ctx context.Context, chatID int64) ([]db.Project, error)

	GetMemberRole(ctx context.Context, projectID, userID int64) (db.Role, error)
	ListMembers(ctx context.Context, projectID int64) ([]db.MemberWithUser, error)
	ListProjectUsers(ctx context.Context, projectID int64) ([]db.User, error)
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	UpdateMemberRole(ctx context.Context, projectID, userID int64, role db.Role) (*db.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID int64) error

	LinkChat(ctx context.Context, projectID, chatID int64) error
	UnlinkChat(ctx context.Context, projectID, chatID int64) error

	CreateTask(ctx context.Context, nt db.NewTask) (*db.Task, error)
	GetTask(ctx context.Context, taskID int64) (*db.Task, error)
	GetTaskByNumber(ctx context.Context, projectID, number int64) (*db.Task, error)
	ListProjectTasks(ctx context.Context, projectID int64, filter db.TaskFilter) ([]db.Task, error)
	ListAssignedTasks(ctx context.Context, assigneeID int64, filter db.TaskFilter) ([]db.Task, error)
	UpdateTask(ctx context.Context, taskID int64, upd db.TaskUpdate) (*db.Task, error)

	NewInviteCode(ctx context.Context) (string, error)
	CreateInvite(ctx context.Context, ni db.NewInvite) (*db.Invite, error)
	AcceptInvite(ctx context.Context, userID int64, code string) (*db.ProjectMember, error)
	ListProjectInvites(ctx context.Context, projectID int64) ([]db.Invite, error)
	GetInviteByID(ctx context.Context, inviteID int64) (*db.Invite, error)
	DeleteInviteByID(ctx context.Context, inviteID int64) error

	Close() error
}

var _ Store = (*db.Session)(nil)

// StoreOpener hands out a fresh Store per request.
type StoreOpener interface {
	OpenStore() Store
}

// StoreOpenerFunc adapts a function to StoreOpener.
type StoreOpenerFunc func() Store

func (f StoreOpenerFunc) OpenStore() Store {
	return f()
}

// ManagerStores opens db.Sessions on m.
func ManagerStores(m *db.Manager) StoreOpener {
	return StoreOpenerFunc(func() Store { return m.NewSession() })
}
