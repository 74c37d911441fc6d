package db

import (
	"database/sql"
	"time"
)

// Role is the role a member holds inside a project.
type Role string

const (
	RoleMember Role = "member"
	RoleHelper Role = "helper"
	// RoleOwner is never stored for the actual owner; ownership lives in
	// Project.OwnerUserID. It is reported by ListUserProjectsWithRoles.
	RoleOwner Role = "owner"
)

// Roles lists every valid role.
var Roles = []Role{RoleMember, RoleHelper, RoleOwner}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// Assignable reports whether r may be stored on a membership row. Ownership
// is never stored as a membership.
func (r Role) Assignable() bool {
	return r == RoleMember || r == RoleHelper
}

// TaskStatus is the fixed set of task states.
type TaskStatus string

const (
	StatusNew        TaskStatus = "new"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every valid status in workflow order.
var TaskStatuses = []TaskStatus{StatusNew, StatusInProgress, StatusReview, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of TaskStatuses.
func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type User struct {
	UserID    int64          `db:"user_id"`
	Username  sql.NullString `db:"username"`
	FirstName string         `db:"first_name"`
	IsBot     bool           `db:"is_bot"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// UserInfo carries the caller-supplied identity fields of a user.
type UserInfo struct {
	UserID    int64
	Username  sql.NullString
	FirstName string
	IsBot     bool
}

type Project struct {
	ProjectID      int64          `db:"project_id"`
	Name           string         `db:"name"`
	Description    sql.NullString `db:"description"`
	OwnerUserID    int64          `db:"owner_user_id"`
	LastTaskNumber int64          `db:"last_task_number"`
	CreatedAt      time.Time      `db:"created_at"`
}

// ProjectWithRole pairs a project with the role a user holds in it.
type ProjectWithRole struct {
	Project Project
	Role    Role
}

type ProjectMember struct {
	ProjectID int64     `db:"project_id"`
	UserID    int64     `db:"user_id"`
	Role      Role      `db:"role"`
	AddedAt   time.Time `db:"added_at"`
}

// MemberWithUser is a membership row together with the member's user row.
type MemberWithUser struct {
	ProjectMember
	User User
}

type Task struct {
	TaskID          int64         `db:"task_id"`
	ProjectID       int64         `db:"project_id"`
	TaskIDInProject int64         `db:"task_id_in_project"`
	Title           string        `db:"title"`
	Description     string        `db:"description"`
	Status          TaskStatus    `db:"status"`
	CreatorUserID   sql.NullInt64 `db:"creator_user_id"`
	AssigneeUserID  sql.NullInt64 `db:"assignee_user_id"`
	ChatIDCreatedIn sql.NullInt64 `db:"chat_id_created_in"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
	CompletedAt     sql.NullTime  `db:"completed_at"`
	DueDate         sql.NullTime  `db:"due_date"`
}

// NewTask holds the arguments of CreateTask. Status defaults to StatusNew.
type NewTask struct {
	ProjectID       int64
	CreatorUserID   int64
	Title           string
	Description     string
	ChatIDCreatedIn int64
	AssigneeUserID  *int64
	Status          TaskStatus
	DueDate         *time.Time
}

// TaskFilter narrows task listings. Nil fields are not applied.
type TaskFilter struct {
	ProjectID  *int64
	Status     *TaskStatus
	AssigneeID *int64
}

type Chat struct {
	ChatID    int64          `db:"chat_id"`
	Title     sql.NullString `db:"title"`
	Type      string         `db:"type"`
	CreatedAt time.Time      `db:"created_at"`
}

type Invite struct {
	InviteID          int64         `db:"invite_id"`
	InviteCode        string        `db:"invite_code"`
	ProjectID         int64         `db:"project_id"`
	MaxUses           sql.NullInt64 `db:"max_uses"`
	CurrentUses       int64         `db:"current_uses"`
	GeneratedByUserID int64         `db:"generated_by_user_id"`
	CreatedAt         time.Time     `db:"created_at"`
	ExpiresAt         sql.NullTime  `db:"expires_at"`
}

// Expired reports whether the invite has an expiry before now.
func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt.Valid && i.ExpiresAt.Time.Before(now)
}

// Exhausted reports whether a limited invite has no uses left.
func (i *Invite) Exhausted() bool {
	return i.MaxUses.Valid && i.CurrentUses >= i.MaxUses.Int64
}

// NewInvite holds the arguments of CreateInvite. A nil MaxUses means unlimited.
type NewInvite struct {
	ProjectID         int64
	GeneratedByUserID int64
	InviteCode        string
	MaxUses           *int64
	ExpiresAt         *time.Time
}
