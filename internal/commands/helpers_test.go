package commands

import (
	"context"
	"database/sql"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
	"github.com/user/project-bot/internal/db"
)

// CreateCommandMessage builds a command message from userID in chatID with
// the bot_command entity Telegram attaches.
func CreateCommandMessage(chatID, userID int64, commandText string, args ...string) *tgbotapi.Message {
	fullText := commandText
	if len(args) > 0 {
		fullText += " " + strings.Join(args, " ")
	}

	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Tester"},
		Chat: &tgbotapi.Chat{
			ID:   chatID,
			Type: "group",
		},
		Text: fullText,
		Entities: []tgbotapi.MessageEntity{
			{
				Type:   "bot_command",
				Offset: 0,
				Length: len(commandText),
			},
		},
	}
}

// MockStore implements Store for command tests.
type MockStore struct {
	mock.Mock
}

func newMockStore() *MockStore {
	m := new(MockStore)
	m.On("Close").Return(nil).Maybe()
	return m
}

func (m *MockStore) opener() StoreOpener {
	return StoreOpenerFunc(func() Store { return m })
}

func (m *MockStore) UpsertUser(ctx context.Context, info db.UserInfo) (*db.User, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.User), args.Error(1)
}

func (m *MockStore) EnsureChat(ctx context.Context, chatID int64, chatType string, title sql.NullString) (*db.Chat, error) {
	args := m.Called(ctx, chatID, chatType, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Chat), args.Error(1)
}

func (m *MockStore) CreateProject(ctx context.Context, ownerID int64, name string, description sql.NullString) (*db.Project, error) {
	args := m.Called(ctx, ownerID, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Project), args.Error(1)
}

func (m *MockStore) GetProject(ctx context.Context, projectID int64) (*db.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Project), args.Error(1)
}

func (m *MockStore) ListUserProjectsWithRoles(ctx context.Context, userID int64) ([]db.ProjectWithRole, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.ProjectWithRole), args.Error(1)
}

func (m *MockStore) TransferOwnership(ctx context.Context, projectID, newOwnerID int64) (*db.Project, error) {
	args := m.Called(ctx, projectID, newOwnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Project), args.Error(1)
}

func (m *MockStore) GetMemberRole(ctx context.Context, projectID, userID int64) (db.Role, error) {
	args := m.Called(ctx, projectID, userID)
	return args.Get(0).(db.Role), args.Error(1)
}

func (m *MockStore) ListMembers(ctx context.Context, projectID int64) ([]db.MemberWithUser, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.MemberWithUser), args.Error(1)
}

func (m *MockStore) LinkChat(ctx context.Context, projectID, chatID int64) error {
	args := m.Called(ctx, projectID, chatID)
	return args.Error(0)
}

func (m *MockStore) UnlinkChat(ctx context.Context, projectID, chatID int64) error {
	args := m.Called(ctx, projectID, chatID)
	return args.Error(0)
}

func (m *MockStore) CreateTask(ctx context.Context, nt db.NewTask) (*db.Task, error) {
	args := m.Called(ctx, nt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Task), args.Error(1)
}

func (m *MockStore) GetTask(ctx context.Context, taskID int64) (*db.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Task), args.Error(1)
}

func (m *MockStore) GetTaskByNumber(ctx context.Context, projectID, number int64) (*db.Task, error) {
	args := m.Called(ctx, projectID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Task), args.Error(1)
}

func (m *MockStore) ListProjectTasks(ctx context.Context, projectID int64, filter db.TaskFilter) ([]db.Task, error) {
	args := m.Called(ctx, projectID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Task), args.Error(1)
}

func (m *MockStore) UpdateTask(ctx context.Context, taskID int64, upd db.TaskUpdate) (*db.Task, error) {
	args := m.Called(ctx, taskID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Task), args.Error(1)
}

func (m *MockStore) NewInviteCode(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockStore) CreateInvite(ctx context.Context, ni db.NewInvite) (*db.Invite, error) {
	args := m.Called(ctx, ni)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Invite), args.Error(1)
}

func (m *MockStore) AcceptInvite(ctx context.Context, userID int64, code string) (*db.ProjectMember, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.ProjectMember), args.Error(1)
}

func (m *MockStore) DeleteProject(ctx context.Context, projectID int64) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *MockStore) ListChatProjects(ctx context.Context, chatID int64) ([]db.Project, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Project), args.Error(1)
}

func (m *MockStore) ListProjectUsers(ctx context.Context, projectID int64) ([]db.User, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.User), args.Error(1)
}

func (m *MockStore) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	args := m.Called(ctx, projectID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) UpdateMemberRole(ctx context.Context, projectID, userID int64, role db.Role) (*db.ProjectMember, error) {
	args := m.Called(ctx, projectID, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.ProjectMember), args.Error(1)
}

func (m *MockStore) RemoveMember(ctx context.Context, projectID, userID int64) error {
	args := m.Called(ctx, projectID, userID)
	return args.Error(0)
}

func (m *MockStore) ListAssignedTasks(ctx context.Context, assigneeID int64, filter db.TaskFilter) ([]db.Task, error) {
	args := m.Called(ctx, assigneeID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Task), args.Error(1)
}

func (m *MockStore) ListProjectInvites(ctx context.Context, projectID int64) ([]db.Invite, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Invite), args.Error(1)
}

func (m *MockStore) GetInviteByID(ctx context.Context, inviteID int64) (*db.Invite, error) {
	args := m.Called(ctx, inviteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Invite), args.Error(1)
}

func (m *MockStore) DeleteInviteByID(ctx context.Context, inviteID int64) error {
	args := m.Called(ctx, inviteID)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ConfigureMockStore starts a fluent set of expectations on m.
func ConfigureMockStore(m *MockStore) *MockStoreHelper {
	return &MockStoreHelper{mock: m}
}

// MockStoreHelper provides a fluent interface for configuring mock expectations
type MockStoreHelper struct {
	mock *MockStore
}

// WithProject makes GetProject return a project owned by ownerID.
func (h *MockStoreHelper) WithProject(projectID, ownerID int64, name string) *MockStoreHelper {
	h.mock.On("GetProject", mock.Anything, projectID).
		Return(&db.Project{ProjectID: projectID, OwnerUserID: ownerID, Name: name}, nil)
	return h
}

// WithMissingProject makes GetProject fail with ErrProjectNotFound.
func (h *MockStoreHelper) WithMissingProject(projectID int64) *MockStoreHelper {
	h.mock.On("GetProject", mock.Anything, projectID).
		Return(nil, &db.NotFoundError{Entity: db.EntityProject, Key: "missing"})
	return h
}

// WithRole sets the stored membership role of userID.
func (h *MockStoreHelper) WithRole(projectID, userID int64, role db.Role) *MockStoreHelper {
	h.mock.On("GetMemberRole", mock.Anything, projectID, userID).Return(role, nil)
	return h
}

// WithoutMembership makes GetMemberRole report that userID has no membership.
func (h *MockStoreHelper) WithoutMembership(projectID, userID int64) *MockStoreHelper {
	h.mock.On("GetMemberRole", mock.Anything, projectID, userID).
		Return(db.Role(""), &db.NotFoundError{Entity: db.EntityMembership, Key: "missing"})
	return h
}
