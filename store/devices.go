package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// Register binds a push token to username. A token seen before moves to the
// new owner.
func (s *DeviceStore) Register(ctx context.Context, username, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (token, username)
		VALUES ($1, $2)
		ON CONFLICT (token) DO UPDATE SET username = EXCLUDED.username, updated_at = NOW()`,
		token, username)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	return nil
}

func (s *DeviceStore) Remove(ctx context.Context, username, token string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM devices WHERE token = $1 AND username = $2", token, username)
	if err != nil {
		return fmt.Errorf("remove device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DeviceStore) Tokens(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT token FROM devices WHERE username = $1 ORDER BY updated_at DESC", username)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *DeviceStore) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM devices WHERE token = ANY($1)", pq.Array(tokens)); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
