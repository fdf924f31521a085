package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"furbook.app/petpals/models"
)

type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM credentials WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check credential: %w", err)
	}
	return exists, nil
}

func (s *CredentialStore) Get(ctx context.Context, username string) (*models.Credential, error) {
	var c models.Credential
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hashed, salt, created_at
		FROM credentials WHERE username = $1`, username).
		Scan(&c.Username, &c.PasswordHashed, &c.Salt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

func (s *CredentialStore) Create(ctx context.Context, c models.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (username, password_hashed, salt)
		VALUES ($1, $2, $3)`, c.Username, c.PasswordHashed, c.Salt)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}
