package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"furbook.app/petpals/models"
)

type MessageStore struct {
	pool pgxIface
}

func NewMessageStore(pool pgxIface) *MessageStore {
	return &MessageStore{pool: pool}
}

// Page returns one page of a group's history. Pages count back from the
// newest message and each page is ordered oldest to newest.
func (s *MessageStore) Page(ctx context.Context, groupID int, page Page) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, group_id, content, created_at FROM (
			SELECT id, username, group_id, content, created_at
			FROM messages
			WHERE group_id = $1
			ORDER BY id DESC
			LIMIT $2 OFFSET $3
		) latest
		ORDER BY id ASC`, groupID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	return msgs, nil
}

func scanMessage(row pgx.CollectableRow) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.Username, &m.GroupID, &m.Content, &m.CreatedAt)
	return m, err
}

func (s *MessageStore) Last(ctx context.Context, groupID int) (*models.Message, error) {
	var m models.Message
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, group_id, content, created_at
		FROM messages WHERE group_id = $1
		ORDER BY id DESC LIMIT 1`, groupID).
		Scan(&m.ID, &m.Username, &m.GroupID, &m.Content, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last message: %w", err)
	}
	return &m, nil
}

// Create stores a message and bumps the group's activity in one transaction.
func (s *MessageStore) Create(ctx context.Context, groupID int, username, content string) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	m := models.Message{GroupID: groupID, Username: username, Content: content}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (group_id, username, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, groupID, username, content).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE chat_groups SET last_activity = $2 WHERE id = $1", groupID, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch group: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &m, nil
}
