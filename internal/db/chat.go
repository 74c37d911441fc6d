package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const chatColumns = `chat_id, title, type, created_at`

func scanChat(row rowScanner) (*Chat, error) {
	var c Chat
	if err := row.Scan(&c.ChatID, &c.Title, &c.Type, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChat registers a chat the bot takes part in.
func (s *Session) CreateChat(ctx context.Context, chatID int64, chatType string, title sql.NullString) (*Chat, error) {
	var chat *Chat
	err := s.write(ctx, "create chat", func() (bool, error) {
		_, err := s.exec(ctx, `
			INSERT INTO chats (chat_id, title, type, created_at)
			VALUES (?, ?, ?, ?)
		`, chatID, title, chatType, s.m.timestamp())
		if err != nil {
			if v, ok := s.m.dialect.classify(err); ok && v.kind == violationUnique {
				return false, &ConflictError{Kind: ConflictChatExists, ChatID: chatID}
			}
			return false, err
		}
		chat, err = s.GetChat(ctx, chatID)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// EnsureChat returns the chat, creating it first if it is unknown. A chat
// created concurrently by another request is fetched instead.
func (s *Session) EnsureChat(ctx context.Context, chatID int64, chatType string, title sql.NullString) (*Chat, error) {
	chat, err := s.GetChat(ctx, chatID)
	if err == nil || !errors.Is(err, ErrChatNotFound) {
		return chat, err
	}

	chat, err = s.CreateChat(ctx, chatID, chatType, title)
	if errors.Is(err, ErrChatExists) {
		return s.GetChat(ctx, chatID)
	}
	return chat, err
}

// GetChat returns the chat with the given Telegram ID.
func (s *Session) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	row := s.queryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE chat_id = ?`, chatID)
	c, err := scanChat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(EntityChat, chatID)
		}
		return nil, storageErr("get chat", err)
	}
	return c, nil
}

func (s *Session) scanChats(ctx context.Context, op, query string, args ...any) ([]Chat, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, storageErr(op, fmt.Errorf("failed to scan chat row: %w", err))
		}
		chats = append(chats, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return chats, nil
}

// ListProjectChats returns the chats linked to the project.
func (s *Session) ListProjectChats(ctx context.Context, projectID int64) ([]Chat, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.scanChats(ctx, "list project chats", `
		SELECT c.chat_id, c.title, c.type, c.created_at
		FROM chats c
		JOIN project_chats pc ON pc.chat_id = c.chat_id
		WHERE pc.project_id = ?
		ORDER BY c.chat_id
	`, projectID)
}

// ListChatProjects returns the projects linked to the chat.
func (s *Session) ListChatProjects(ctx context.Context, chatID int64) ([]Project, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	return s.scanProjects(ctx, "list chat projects", `
		SELECT p.project_id, p.name, p.description, p.owner_user_id, p.last_task_number, p.created_at
		FROM projects p
		JOIN project_chats pc ON pc.project_id = p.project_id
		WHERE pc.chat_id = ?
		ORDER BY p.project_id
	`, chatID)
}

func containsChat(chats []Chat, chatID int64) bool {
	for _, c := range chats {
		if c.ChatID == chatID {
			return true
		}
	}
	return false
}

// LinkChat associates the chat with the project.
func (s *Session) LinkChat(ctx context.Context, projectID, chatID int64) error {
	return s.write(ctx, "link chat", func() (bool, error) {
		chats, err := s.ListProjectChats(ctx, projectID)
		if err != nil {
			return false, err
		}
		if _, err := s.GetChat(ctx, chatID); err != nil {
			return false, err
		}
		if containsChat(chats, chatID) {
			return false, &ConflictError{Kind: ConflictChatAlreadyLinked, ChatID: chatID, ProjectID: projectID}
		}

		_, err = s.exec(ctx, `INSERT INTO project_chats (project_id, chat_id) VALUES (?, ?)`, projectID, chatID)
		if err != nil {
			if s.uniqueViolation(err, "project_chats") {
				return false, &ConflictError{Kind: ConflictChatAlreadyLinked, ChatID: chatID, ProjectID: projectID}
			}
			return false, err
		}
		return true, nil
	})
}

// UnlinkChat removes the association between the chat and the project.
func (s *Session) UnlinkChat(ctx context.Context, projectID, chatID int64) error {
	return s.write(ctx, "unlink chat", func() (bool, error) {
		chats, err := s.ListProjectChats(ctx, projectID)
		if err != nil {
			return false, err
		}
		if !containsChat(chats, chatID) {
			return false, &ConflictError{Kind: ConflictChatNotLinked, ChatID: chatID, ProjectID: projectID}
		}

		_, err = s.exec(ctx, `DELETE FROM project_chats WHERE project_id = ? AND chat_id = ?`, projectID, chatID)
		if err != nil {
			return false, err
		}
		return true, nil
	})
}
