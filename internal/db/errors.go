package db

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Entity names the table a lookup missed on.
type Entity string

const (
	EntityUser       Entity = "user"
	EntityProject    Entity = "project"
	EntityMembership Entity = "membership"
	EntityTask       Entity = "task"
	EntityInvite     Entity = "invite"
	EntityChat       Entity = "chat"
)

// NotFoundError is returned by every keyed lookup that finds no row.
type NotFoundError struct {
	Entity Entity
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// Is matches ErrNotFound and the per-entity sentinels such as ErrUserNotFound.
func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	t, ok := target.(*NotFoundError)
	return ok && t.Key == "" && t.Entity == e.Entity
}

var (
	ErrUserNotFound       = &NotFoundError{Entity: EntityUser}
	ErrProjectNotFound    = &NotFoundError{Entity: EntityProject}
	ErrMembershipNotFound = &NotFoundError{Entity: EntityMembership}
	ErrTaskNotFound       = &NotFoundError{Entity: EntityTask}
	ErrInviteNotFound     = &NotFoundError{Entity: EntityInvite}
	ErrChatNotFound       = &NotFoundError{Entity: EntityChat}
)

func notFound(entity Entity, key any) error {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

func memberKey(projectID, userID int64) string {
	return fmt.Sprintf("(project=%d, user=%d)", projectID, userID)
}

func taskNumberKey(projectID, number int64) string {
	return fmt.Sprintf("(project=%d, number=%d)", projectID, number)
}

// ConflictKind classifies a ConflictError.
type ConflictKind string

const (
	ConflictProjectName       ConflictKind = "project_name_taken"
	ConflictAlreadyMember     ConflictKind = "already_member"
	ConflictInviteCode        ConflictKind = "invite_code_taken"
	ConflictChatExists        ConflictKind = "chat_exists"
	ConflictUserExists        ConflictKind = "user_exists"
	ConflictUsername          ConflictKind = "username_taken"
	ConflictOwnerAsMember     ConflictKind = "owner_cannot_be_member"
	ConflictInviteExpired     ConflictKind = "invite_expired"
	ConflictInviteExhausted   ConflictKind = "invite_exhausted"
	ConflictInvalidStatus     ConflictKind = "invalid_task_status"
	ConflictInvalidRole       ConflictKind = "invalid_role"
	ConflictChatAlreadyLinked ConflictKind = "chat_already_linked"
	ConflictChatNotLinked     ConflictKind = "chat_not_linked"
)

// ConflictError reports a uniqueness or state violation. Subject carries the
// offending value (a name, a code, a status) and the IDs identify the rows
// involved where they apply.
type ConflictError struct {
	Kind      ConflictKind
	Subject   string
	UserID    int64
	ProjectID int64
	ChatID    int64
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case ConflictProjectName:
		return fmt.Sprintf("project name %q is already taken", e.Subject)
	case ConflictAlreadyMember:
		return fmt.Sprintf("user %d is already a member of project %d", e.UserID, e.ProjectID)
	case ConflictInviteCode:
		return fmt.Sprintf("invite code %q already exists", e.Subject)
	case ConflictChatExists:
		return fmt.Sprintf("chat %d already exists", e.ChatID)
	case ConflictUserExists:
		return fmt.Sprintf("user %d already exists", e.UserID)
	case ConflictUsername:
		return fmt.Sprintf("username %q is already taken", e.Subject)
	case ConflictOwnerAsMember:
		return fmt.Sprintf("user %d owns project %d and cannot be added as a member", e.UserID, e.ProjectID)
	case ConflictInviteExpired:
		return fmt.Sprintf("invite %q has expired", e.Subject)
	case ConflictInviteExhausted:
		return fmt.Sprintf("invite %q reached its use limit", e.Subject)
	case ConflictInvalidStatus:
		return fmt.Sprintf("invalid task status %q, valid statuses: %s", e.Subject, joinStatuses())
	case ConflictInvalidRole:
		return fmt.Sprintf("invalid role %q", e.Subject)
	case ConflictChatAlreadyLinked:
		return fmt.Sprintf("chat %d is already linked to project %d", e.ChatID, e.ProjectID)
	case ConflictChatNotLinked:
		return fmt.Sprintf("chat %d is not linked to project %d", e.ChatID, e.ProjectID)
	}
	return fmt.Sprintf("conflict: %s", e.Kind)
}

// Is matches ErrConflict and the per-kind sentinels such as ErrInviteExpired.
func (e *ConflictError) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	t, ok := target.(*ConflictError)
	return ok && t.Subject == "" && t.UserID == 0 && t.ProjectID == 0 && t.ChatID == 0 && t.Kind == e.Kind
}

var (
	ErrProjectNameTaken  = &ConflictError{Kind: ConflictProjectName}
	ErrAlreadyMember     = &ConflictError{Kind: ConflictAlreadyMember}
	ErrInviteCodeTaken   = &ConflictError{Kind: ConflictInviteCode}
	ErrChatExists        = &ConflictError{Kind: ConflictChatExists}
	ErrUserExists        = &ConflictError{Kind: ConflictUserExists}
	ErrUsernameTaken     = &ConflictError{Kind: ConflictUsername}
	ErrOwnerAsMember     = &ConflictError{Kind: ConflictOwnerAsMember}
	ErrInviteExpired     = &ConflictError{Kind: ConflictInviteExpired}
	ErrInviteExhausted   = &ConflictError{Kind: ConflictInviteExhausted}
	ErrInvalidTaskStatus = &ConflictError{Kind: ConflictInvalidStatus}
	ErrInvalidRole       = &ConflictError{Kind: ConflictInvalidRole}
	ErrChatAlreadyLinked = &ConflictError{Kind: ConflictChatAlreadyLinked}
	ErrChatNotLinked     = &ConflictError{Kind: ConflictChatNotLinked}
)

func joinStatuses() string {
	names := make([]string, len(TaskStatuses))
	for i, s := range TaskStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// StorageError wraps any driver failure that has no domain meaning.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsDomainError reports whether err already belongs to the package's error
// set and must be passed through untouched.
func IsDomainError(err error) bool {
	var nf *NotFoundError
	var ce *ConflictError
	var se *StorageError
	return errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &se)
}

// storageErr converts err into a StorageError unless it already is a domain
// error.
func storageErr(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
