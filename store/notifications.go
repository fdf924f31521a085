package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"furbook.app/petpals/models"
)

const notiColumns = "id, username, icon, description, link, read, created_at"

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(row rowScanner) (models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.Username, &n.Icon, &n.Desc, &n.Link, &n.Read, &n.CreatedAt)
	return n, err
}

func (s *NotificationStore) Get(ctx context.Context, id int) (*models.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx,
		"SELECT "+notiColumns+" FROM notifications WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

func (s *NotificationStore) List(ctx context.Context, username string, page Page) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notiColumns+`
		FROM notifications
		WHERE username = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, username, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notis := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notis = append(notis, n)
	}
	return notis, rows.Err()
}

func (s *NotificationStore) UnreadCount(ctx context.Context, username string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE username = $1 AND NOT read", username).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// CreateMany stores every notification in one transaction and returns them
// with their ids and timestamps filled.
func (s *NotificationStore) CreateMany(ctx context.Context, notis []models.Notification) ([]models.Notification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notifications (username, icon, description, link)
		VALUES ($1, $2, $3, $4)
		RETURNING id, read, created_at`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	created := make([]models.Notification, 0, len(notis))
	for _, n := range notis {
		if err := stmt.QueryRowContext(ctx, n.Username, n.Icon, n.Desc, n.Link).
			Scan(&n.ID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert notification: %w", err)
		}
		created = append(created, n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *NotificationStore) SetRead(ctx context.Context, id int, read bool) (*models.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx, `
		UPDATE notifications SET read = $2 WHERE id = $1
		RETURNING `+notiColumns, id, read))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	return &n, nil
}

func (s *NotificationStore) ReadAll(ctx context.Context, username string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE username = $1 AND NOT read", username)
	if err != nil {
		return 0, fmt.Errorf("read all: %w", err)
	}
	return res.RowsAffected()
}

func (s *NotificationStore) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
