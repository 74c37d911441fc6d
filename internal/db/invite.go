package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
)

const (
	// InviteCodeLength is the length of codes produced by GenerateInviteCode.
	InviteCodeLength = 15

	inviteCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeAttempts = 5
)

const inviteColumns = `invite_id, invite_code, project_id, max_uses, current_uses, generated_by_user_id, created_at, expires_at`

func scanInvite(row rowScanner) (*Invite, error) {
	var i Invite
	err := row.Scan(
		&i.InviteID,
		&i.InviteCode,
		&i.ProjectID,
		&i.MaxUses,
		&i.CurrentUses,
		&i.GeneratedByUserID,
		&i.CreatedAt,
		&i.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// GenerateInviteCode returns a random alphanumeric code of length n.
func GenerateInviteCode(n int) (string, error) {
	if n <= 0 {
		n = InviteCodeLength
	}
	limit := big.NewInt(int64(len(inviteCodeAlphabet)))
	code := make([]byte, n)
	for i := range code {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		code[i] = inviteCodeAlphabet[idx.Int64()]
	}
	return string(code), nil
}

// NewInviteCode generates codes until one is not in use. CreateInvite still
// rejects a code that got taken in the meantime.
func (s *Session) NewInviteCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := GenerateInviteCode(InviteCodeLength)
		if err != nil {
			return "", err
		}
		_, err = s.GetInvite(ctx, code)
		if errors.Is(err, ErrInviteNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free invite code after %d attempts", inviteCodeAttempts)
}

// CreateInvite stores an invite with a caller-generated code.
func (s *Session) CreateInvite(ctx context.Context, ni NewInvite) (*Invite, error) {
	var invite *Invite
	err := s.write(ctx, "create invite", func() (bool, error) {
		if _, err := s.GetProject(ctx, ni.ProjectID); err != nil {
			return false, err
		}
		if _, err := s.GetUser(ctx, ni.GeneratedByUserID); err != nil {
			return false, err
		}

		var expiresAt sql.NullTime
		if ni.ExpiresAt != nil {
			expiresAt = sql.NullTime{Time: storedTime(*ni.ExpiresAt), Valid: true}
		}

		var inviteID int64
		err := s.queryRow(ctx, `
			INSERT INTO invites (invite_code, project_id, max_uses, current_uses, generated_by_user_id, created_at, expires_at)
			VALUES (?, ?, ?, 0, ?, ?, ?)
			RETURNING invite_id
		`, ni.InviteCode, ni.ProjectID, nullInt64(ni.MaxUses), ni.GeneratedByUserID, s.m.timestamp(), expiresAt).Scan(&inviteID)
		if err != nil {
			if s.uniqueViolation(err, "invite_code") {
				return false, &ConflictError{Kind: ConflictInviteCode, Subject: ni.InviteCode}
			}
			return false, err
		}
		invite, err = s.GetInviteByID(ctx, inviteID)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// GetInvite returns the invite with the given code.
func (s *Session) GetInvite(ctx context.Context, code string) (*Invite, error) {
	row := s.queryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE invite_code = ?`, code)
	i, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityInvite, code)
		}
		return nil, storageErr("get invite", err)
	}
	return i, nil
}

// GetInviteByID returns the invite with the given ID.
func (s *Session) GetInviteByID(ctx context.Context, inviteID int64) (*Invite, error) {
	row := s.queryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE invite_id = ?`, inviteID)
	i, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityInvite, inviteID)
		}
		return nil, storageErr("get invite by id", err)
	}
	return i, nil
}

// ListProjectInvites returns the project's invites, oldest first.
func (s *Session) ListProjectInvites(ctx context.Context, projectID int64) ([]Invite, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT `+inviteColumns+`
		FROM invites
		WHERE project_id = ?
		ORDER BY invite_id
	`, projectID)
	if err != nil {
		return nil, storageErr("list project invites", err)
	}
	defer rows.Close()

	var invites []Invite
	for rows.Next() {
		i, err := scanInvite(rows)
		if err != nil {
			return nil, storageErr("list project invites", fmt.Errorf("failed to scan invite row: %w", err))
		}
		invites = append(invites, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list project invites", err)
	}
	return invites, nil
}

// IncrementInviteUses counts one use of the invite. When the use reaches
// the limit the increment is still committed and the returned invite comes
// with ErrInviteExhausted.
func (s *Session) IncrementInviteUses(ctx context.Context, code string) (*Invite, error) {
	var invite *Invite
	err := s.write(ctx, "increment invite uses", func() (bool, error) {
		res, err := s.exec(ctx, `
			UPDATE invites
			SET current_uses = current_uses + 1
			WHERE invite_code = ?
		`, code)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, notFound(EntityInvite, code)
		}
		invite, err = s.GetInvite(ctx, code)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	if invite.Exhausted() {
		return invite, &ConflictError{Kind: ConflictInviteExhausted, Subject: code}
	}
	return invite, nil
}

// DeleteInvite removes the invite with the given code.
func (s *Session) DeleteInvite(ctx context.Context, code string) error {
	return s.deleteInvite(ctx, "delete invite", `DELETE FROM invites WHERE invite_code = ?`, code)
}

// DeleteInviteByID removes the invite with the given ID.
func (s *Session) DeleteInviteByID(ctx context.Context, inviteID int64) error {
	return s.deleteInvite(ctx, "delete invite by id", `DELETE FROM invites WHERE invite_id = ?`, inviteID)
}

func (s *Session) deleteInvite(ctx context.Context, op, query string, key any) error {
	return s.write(ctx, op, func() (bool, error) {
		res, err := s.exec(ctx, query, key)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, notFound(EntityInvite, key)
		}
		return true, nil
	})
}

// AcceptInvite makes userID a member of the invite's project.
//
// Every check runs before the membership is written. The membership, the
// use count and the removal of an exhausted invite are committed one after
// another: once the membership exists it stays, even if a later step fails.
// In that case the membership is returned together with the error.
func (s *Session) AcceptInvite(ctx context.Context, userID int64, code string) (*ProjectMember, error) {
	invite, err := s.GetInvite(ctx, code)
	if err != nil {
		return nil, err
	}
	if invite.Expired(s.m.now()) {
		return nil, &ConflictError{Kind: ConflictInviteExpired, Subject: code, ProjectID: invite.ProjectID}
	}
	if invite.Exhausted() {
		return nil, &ConflictError{Kind: ConflictInviteExhausted, Subject: code, ProjectID: invite.ProjectID}
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	exists, err := s.memberExists(ctx, invite.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &ConflictError{Kind: ConflictAlreadyMember, UserID: userID, ProjectID: invite.ProjectID}
	}

	member, err := s.AddMember(ctx, invite.ProjectID, userID, RoleMember)
	if err != nil {
		return nil, err
	}

	_, err = s.IncrementInviteUses(ctx, code)
	switch {
	case errors.Is(err, ErrInviteExhausted):
		err = s.DeleteInvite(ctx, code)
		if errors.Is(err, ErrInviteNotFound) {
			// A concurrent acceptance removed it first.
			err = nil
		}
	case errors.Is(err, ErrInviteNotFound):
		err = nil
	}
	return member, err
}
