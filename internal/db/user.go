package db

import (
	"context"
	"database/sql"
	"errors"
)

const userColumns = `user_id, username, first_name, is_bot, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.Username, &u.FirstName, &u.IsBot, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user. It fails with ErrUserExists when the ID is
// taken and ErrUsernameTaken when the username is.
func (s *Session) CreateUser(ctx context.Context, info UserInfo) (*User, error) {
	var user *User
	err := s.write(ctx, "create user", func() (bool, error) {
		now := s.m.timestamp()
		_, err := s.exec(ctx, `
			INSERT INTO users (user_id, username, first_name, is_bot, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, info.UserID, info.Username, info.FirstName, info.IsBot, now, now)
		if err != nil {
			return false, s.userWriteErr(err, info)
		}
		user, err = s.GetUser(ctx, info.UserID)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Session) userWriteErr(err error, info UserInfo) error {
	if v, ok := s.m.dialect.classify(err); ok && v.kind == violationUnique {
		if v.mentions("username") {
			return &ConflictError{Kind: ConflictUsername, Subject: info.Username.String, UserID: info.UserID}
		}
		return &ConflictError{Kind: ConflictUserExists, UserID: info.UserID}
	}
	return err
}

// GetUser returns the user with the given Telegram ID.
func (s *Session) GetUser(ctx context.Context, userID int64) (*User, error) {
	row := s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityUser, userID)
		}
		return nil, storageErr("get user", err)
	}
	return u, nil
}

// UpsertUser keeps the stored identity in sync with what the chat platform
// reports. A missing user is created; an existing one is rewritten only when
// a field differs, so repeated calls with the same data never write.
func (s *Session) UpsertUser(ctx context.Context, info UserInfo) (*User, error) {
	user, err := s.GetUser(ctx, info.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return s.CreateUser(ctx, info)
	}
	if err != nil {
		return nil, err
	}

	if sameNullString(user.Username, info.Username) && user.FirstName == info.FirstName && user.IsBot == info.IsBot {
		return user, nil
	}

	err = s.write(ctx, "update user", func() (bool, error) {
		_, err := s.exec(ctx, `
			UPDATE users
			SET username = ?, first_name = ?, is_bot = ?, updated_at = ?
			WHERE user_id = ?
		`, info.Username, info.FirstName, info.IsBot, s.m.timestamp(), info.UserID)
		if err != nil {
			return false, s.userWriteErr(err, info)
		}
		user, err = s.GetUser(ctx, info.UserID)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func sameNullString(a, b sql.NullString) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.String == b.String
}
