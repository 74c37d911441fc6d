package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func scanMember(row rowScanner) (*ProjectMember, error) {
	var pm ProjectMember
	if err := row.Scan(&pm.ProjectID, &pm.UserID, &pm.Role, &pm.AddedAt); err != nil {
		return nil, err
	}
	return &pm, nil
}

// AddMember adds userID to the project with the given role, RoleMember when
// empty. The owner can never be a member, a user holds at most one
// membership per project, and RoleOwner is not a membership role.
func (s *Session) AddMember(ctx context.Context, projectID, userID int64, role Role) (*ProjectMember, error) {
	if role == "" {
		role = RoleMember
	}
	if !role.Assignable() {
		return nil, &ConflictError{Kind: ConflictInvalidRole, Subject: string(role)}
	}

	var member *ProjectMember
	err := s.write(ctx, "add member", func() (bool, error) {
		pm, err := s.addMember(ctx, projectID, userID, role)
		if err != nil {
			return false, err
		}
		member = pm
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// addMember runs the checks and the insert of AddMember inside the caller's
// transaction.
func (s *Session) addMember(ctx context.Context, projectID, userID int64, role Role) (*ProjectMember, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if project.OwnerUserID == userID {
		return nil, &ConflictError{Kind: ConflictOwnerAsMember, UserID: userID, ProjectID: projectID}
	}

	exists, err := s.memberExists(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &ConflictError{Kind: ConflictAlreadyMember, UserID: userID, ProjectID: projectID}
	}

	_, err = s.exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role, added_at)
		VALUES (?, ?, ?, ?)
	`, projectID, userID, role, s.m.timestamp())
	if err != nil {
		if s.uniqueViolation(err, "project_members") {
			return nil, &ConflictError{Kind: ConflictAlreadyMember, UserID: userID, ProjectID: projectID}
		}
		return nil, err
	}
	return s.member(ctx, projectID, userID)
}

func (s *Session) memberExists(ctx context.Context, projectID, userID int64) (bool, error) {
	var exists bool
	err := s.queryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM project_members
			WHERE project_id = ? AND user_id = ?
		)
	`, projectID, userID).Scan(&exists)
	if err != nil {
		return false, storageErr("check membership", err)
	}
	return exists, nil
}

// GetMember returns the membership of userID in the project.
func (s *Session) GetMember(ctx context.Context, projectID, userID int64) (*ProjectMember, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	return s.member(ctx, projectID, userID)
}

func (s *Session) member(ctx context.Context, projectID, userID int64) (*ProjectMember, error) {
	row := s.queryRow(ctx, `
		SELECT project_id, user_id, role, added_at
		FROM project_members
		WHERE project_id = ? AND user_id = ?
	`, projectID, userID)
	pm, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityMembership, memberKey(projectID, userID))
		}
		return nil, storageErr("get member", err)
	}
	return pm, nil
}

// IsMember reports whether userID holds a membership in the project.
func (s *Session) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return false, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return false, err
	}
	return s.memberExists(ctx, projectID, userID)
}

// GetMemberRole returns the stored role of userID in the project.
func (s *Session) GetMemberRole(ctx context.Context, projectID, userID int64) (Role, error) {
	pm, err := s.GetMember(ctx, projectID, userID)
	if err != nil {
		return "", err
	}
	return pm.Role, nil
}

// ListMembers returns the project's memberships with their users, ordered by
// the time they joined.
func (s *Session) ListMembers(ctx context.Context, projectID int64) ([]MemberWithUser, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT pm.project_id, pm.user_id, pm.role, pm.added_at,
		       u.user_id, u.username, u.first_name, u.is_bot, u.created_at, u.updated_at
		FROM project_members pm
		JOIN users u ON u.user_id = pm.user_id
		WHERE pm.project_id = ?
		ORDER BY pm.added_at, pm.user_id
	`, projectID)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	defer rows.Close()

	var members []MemberWithUser
	for rows.Next() {
		var m MemberWithUser
		err := rows.Scan(
			&m.ProjectID, &m.UserID, &m.Role, &m.AddedAt,
			&m.User.UserID, &m.User.Username, &m.User.FirstName, &m.User.IsBot, &m.User.CreatedAt, &m.User.UpdatedAt,
		)
		if err != nil {
			return nil, storageErr("list members", fmt.Errorf("failed to scan member row: %w", err))
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list members", err)
	}
	return members, nil
}

// ListProjectUsers returns the members of the project as users, ordered by
// first name and username. The owner is not included.
func (s *Session) ListProjectUsers(ctx context.Context, projectID int64) ([]User, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT u.user_id, u.username, u.first_name, u.is_bot, u.created_at, u.updated_at
		FROM users u
		JOIN project_members pm ON pm.user_id = u.user_id
		WHERE pm.project_id = ?
		ORDER BY u.first_name, u.username
	`, projectID)
	if err != nil {
		return nil, storageErr("list project users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageErr("list project users", fmt.Errorf("failed to scan user row: %w", err))
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list project users", err)
	}
	return users, nil
}

// UpdateMemberRole changes the stored role. An unchanged role is not written;
// RoleOwner is rejected, ownership moves through TransferOwnership.
func (s *Session) UpdateMemberRole(ctx context.Context, projectID, userID int64, role Role) (*ProjectMember, error) {
	if !role.Assignable() {
		return nil, &ConflictError{Kind: ConflictInvalidRole, Subject: string(role)}
	}

	var member *ProjectMember
	err := s.write(ctx, "update member role", func() (bool, error) {
		pm, err := s.GetMember(ctx, projectID, userID)
		if err != nil {
			return false, err
		}
		member = pm
		if pm.Role == role {
			return false, nil
		}

		_, err = s.exec(ctx, `
			UPDATE project_members
			SET role = ?
			WHERE project_id = ? AND user_id = ?
		`, role, projectID, userID)
		if err != nil {
			return false, err
		}
		pm.Role = role
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember deletes the membership of userID in the project.
func (s *Session) RemoveMember(ctx context.Context, projectID, userID int64) error {
	return s.write(ctx, "remove member", func() (bool, error) {
		if _, err := s.GetMember(ctx, projectID, userID); err != nil {
			return false, err
		}
		_, err := s.exec(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
		if err != nil {
			return false, err
		}
		return true, nil
	})
}
