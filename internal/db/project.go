package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const projectColumns = `project_id, name, description, owner_user_id, last_task_number, created_at`

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	err := row.Scan(&p.ProjectID, &p.Name, &p.Description, &p.OwnerUserID, &p.LastTaskNumber, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Session) scanProjects(ctx context.Context, op, query string, args ...any) ([]Project, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, storageErr(op, fmt.Errorf("failed to scan project row: %w", err))
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return projects, nil
}

// ProjectUpdate lists the changes UpdateProject applies. A nil Name keeps
// the current name.
type ProjectUpdate struct {
	Name        *string
	Description Field[string]
}

// CreateProject creates a project owned by ownerID. Project names are
// globally unique.
func (s *Session) CreateProject(ctx context.Context, ownerID int64, name string, description sql.NullString) (*Project, error) {
	var project *Project
	err := s.write(ctx, "create project", func() (bool, error) {
		if _, err := s.GetUser(ctx, ownerID); err != nil {
			return false, err
		}

		var projectID int64
		err := s.queryRow(ctx, `
			INSERT INTO projects (name, description, owner_user_id, last_task_number, created_at)
			VALUES (?, ?, ?, 0, ?)
			RETURNING project_id
		`, name, description, ownerID, s.m.timestamp()).Scan(&projectID)
		if err != nil {
			return false, s.projectWriteErr(err, name, ownerID)
		}
		project, err = s.GetProject(ctx, projectID)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Session) projectWriteErr(err error, name string, ownerID int64) error {
	v, ok := s.m.dialect.classify(err)
	if !ok {
		return err
	}
	switch {
	case v.kind == violationUnique && v.mentions("name"):
		return &ConflictError{Kind: ConflictProjectName, Subject: name}
	case v.kind == violationForeignKey:
		return notFound(EntityUser, ownerID)
	}
	return err
}

// GetProject returns the project with the given ID.
func (s *Session) GetProject(ctx context.Context, projectID int64) (*Project, error) {
	row := s.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id = ?`, projectID)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityProject, projectID)
		}
		return nil, storageErr("get project", err)
	}
	return p, nil
}

// ListProjectsByOwner returns the projects ownerID owns.
func (s *Session) ListProjectsByOwner(ctx context.Context, ownerID int64) ([]Project, error) {
	return s.scanProjects(ctx, "list projects by owner", `
		SELECT `+projectColumns+`
		FROM projects
		WHERE owner_user_id = ?
		ORDER BY project_id
	`, ownerID)
}

// ListProjectsForMember returns the projects userID holds a membership in.
// Owned projects are not included.
func (s *Session) ListProjectsForMember(ctx context.Context, userID int64) ([]Project, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.scanProjects(ctx, "list projects for member", `
		SELECT p.project_id, p.name, p.description, p.owner_user_id, p.last_task_number, p.created_at
		FROM projects p
		JOIN project_members pm ON pm.project_id = p.project_id
		WHERE pm.user_id = ?
		ORDER BY p.project_id
	`, userID)
}

// UpdateProject applies upd and commits only when a value actually changes.
func (s *Session) UpdateProject(ctx context.Context, projectID int64, upd ProjectUpdate) (*Project, error) {
	var project *Project
	err := s.write(ctx, "update project", func() (bool, error) {
		p, err := s.GetProject(ctx, projectID)
		if err != nil {
			return false, err
		}
		project = p

		changed := false
		if upd.Name != nil && p.Name != *upd.Name {
			p.Name = *upd.Name
			changed = true
		}
		if upd.Description.IsSet() {
			v, ok := upd.Description.Get()
			desc := sql.NullString{String: v, Valid: ok}
			if !sameNullString(p.Description, desc) {
				p.Description = desc
				changed = true
			}
		}
		if !changed {
			return false, nil
		}

		_, err = s.exec(ctx, `
			UPDATE projects
			SET name = ?, description = ?
			WHERE project_id = ?
		`, p.Name, p.Description, projectID)
		if err != nil {
			return false, s.projectWriteErr(err, p.Name, p.OwnerUserID)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// TransferOwnership hands the project to newOwnerID. In one transaction the
// owner is reassigned, the new owner's membership (if any) is dropped and
// the previous owner becomes a regular member.
func (s *Session) TransferOwnership(ctx context.Context, projectID, newOwnerID int64) (*Project, error) {
	var project *Project
	err := s.write(ctx, "transfer project ownership", func() (bool, error) {
		p, err := s.GetProject(ctx, projectID)
		if err != nil {
			return false, err
		}
		project = p
		if _, err := s.GetUser(ctx, newOwnerID); err != nil {
			return false, err
		}

		oldOwnerID := p.OwnerUserID
		if oldOwnerID == newOwnerID {
			return false, nil
		}

		if _, err := s.exec(ctx, `UPDATE projects SET owner_user_id = ? WHERE project_id = ?`, newOwnerID, projectID); err != nil {
			return false, err
		}
		if _, err := s.exec(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, newOwnerID); err != nil {
			return false, err
		}
		_, err = s.exec(ctx, `
			INSERT INTO project_members (project_id, user_id, role, added_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (project_id, user_id) DO UPDATE SET role = excluded.role
		`, projectID, oldOwnerID, RoleMember, s.m.timestamp())
		if err != nil {
			return false, err
		}

		p.OwnerUserID = newOwnerID
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject removes the project together with its memberships, tasks,
// invites and chat links.
func (s *Session) DeleteProject(ctx context.Context, projectID int64) error {
	return s.write(ctx, "delete project", func() (bool, error) {
		res, err := s.exec(ctx, `DELETE FROM projects WHERE project_id = ?`, projectID)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, notFound(EntityProject, projectID)
		}
		return true, nil
	})
}

// ListUserProjectsWithRoles returns every project userID takes part in.
// Owned projects are reported with RoleOwner, even if a stale membership
// row exists for them.
func (s *Session) ListUserProjectsWithRoles(ctx context.Context, userID int64) ([]ProjectWithRole, error) {
	owned, err := s.ListProjectsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT p.project_id, p.name, p.description, p.owner_user_id, p.last_task_number, p.created_at, pm.role
		FROM project_members pm
		JOIN projects p ON p.project_id = pm.project_id
		WHERE pm.user_id = ?
		ORDER BY p.project_id
	`, userID)
	if err != nil {
		return nil, storageErr("list user projects", err)
	}
	defer rows.Close()

	result := make([]ProjectWithRole, 0, len(owned))
	seen := make(map[int64]bool, len(owned))
	for _, p := range owned {
		result = append(result, ProjectWithRole{Project: p, Role: RoleOwner})
		seen[p.ProjectID] = true
	}

	for rows.Next() {
		var p Project
		var role Role
		err := rows.Scan(&p.ProjectID, &p.Name, &p.Description, &p.OwnerUserID, &p.LastTaskNumber, &p.CreatedAt, &role)
		if err != nil {
			return nil, storageErr("list user projects", fmt.Errorf("failed to scan membership row: %w", err))
		}
		if seen[p.ProjectID] {
			continue
		}
		seen[p.ProjectID] = true
		result = append(result, ProjectWithRole{Project: p, Role: role})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list user projects", err)
	}
	return result, nil
}
