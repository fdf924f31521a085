package store

import (
	"context"
	"database/sql"
	"fmt"

	"furbook.app/petpals/models"
)

type FriendStore struct {
	db *sql.DB
}

func NewFriendStore(db *sql.DB) *FriendStore {
	return &FriendStore{db: db}
}

func (s *FriendStore) Friends(ctx context.Context, username string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM friendships fr
		JOIN users u ON u.username = fr.friend_name
		WHERE fr.username = $1
		ORDER BY fr.created_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	friends, err := scanUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("scan friends: %w", err)
	}
	return friends, nil
}

// Requests returns the users who have a pending request to username.
func (s *FriendStore) Requests(ctx context.Context, username string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM friend_requests fr
		JOIN users u ON u.username = fr.sender
		WHERE fr.receiver = $1
		ORDER BY fr.created_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	senders, err := scanUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("scan friend requests: %w", err)
	}
	return senders, nil
}

// Friendship resolves the relation of a towards b. friend wins over sent,
// sent wins over received.
func (s *FriendStore) Friendship(ctx context.Context, a, b string) (models.Friendship, error) {
	var friend, sent, received bool
	err := s.db.QueryRowContext(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM friendships WHERE username = $1 AND friend_name = $2),
			EXISTS(SELECT 1 FROM friend_requests WHERE sender = $1 AND receiver = $2),
			EXISTS(SELECT 1 FROM friend_requests WHERE sender = $2 AND receiver = $1)`,
		a, b).Scan(&friend, &sent, &received)
	if err != nil {
		return models.FriendshipNone, fmt.Errorf("check friendship: %w", err)
	}
	switch {
	case friend:
		return models.FriendshipFriend, nil
	case sent:
		return models.FriendshipSent, nil
	case received:
		return models.FriendshipReceived, nil
	default:
		return models.FriendshipNone, nil
	}
}

// SendRequest records a request from sender to receiver. A reciprocal
// pending request is consumed and turns into a friendship instead. The pair
// is serialized with a transaction-scoped advisory lock so two opposite
// requests cannot both be stored.
func (s *FriendStore) SendRequest(ctx context.Context, sender, receiver string) (models.FriendRequestResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.FriendRequestNone, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", DirectKey(sender, receiver)); err != nil {
		return models.FriendRequestNone, fmt.Errorf("lock pair: %w", err)
	}

	var friends, pending, reciprocal bool
	err = tx.QueryRowContext(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM friendships WHERE username = $1 AND friend_name = $2),
			EXISTS(SELECT 1 FROM friend_requests WHERE sender = $1 AND receiver = $2),
			EXISTS(SELECT 1 FROM friend_requests WHERE sender = $2 AND receiver = $1)`,
		sender, receiver).Scan(&friends, &pending, &reciprocal)
	if err != nil {
		return models.FriendRequestNone, fmt.Errorf("check request: %w", err)
	}
	if friends || pending {
		return models.FriendRequestNone, nil
	}

	result := models.FriendRequestSent
	if reciprocal {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM friend_requests WHERE sender = $1 AND receiver = $2", receiver, sender); err != nil {
			return models.FriendRequestNone, fmt.Errorf("consume request: %w", err)
		}
		if err := insertFriendship(ctx, tx, sender, receiver); err != nil {
			return models.FriendRequestNone, err
		}
		result = models.FriendRequestAccepted
	} else {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO friend_requests (sender, receiver)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, sender, receiver); err != nil {
			return models.FriendRequestNone, fmt.Errorf("insert request: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.FriendRequestNone, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

func insertFriendship(ctx context.Context, tx *sql.Tx, a, b string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO friendships (username, friend_name)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING`, a, b)
	if err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (s *FriendStore) DeleteRequest(ctx context.Context, sender, receiver string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM friend_requests WHERE sender = $1 AND receiver = $2", sender, receiver)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveFriend deletes both directions of the friendship together.
func (s *FriendStore) RemoveFriend(ctx context.Context, a, b string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM friendships
		WHERE (username = $1 AND friend_name = $2) OR (username = $2 AND friend_name = $1)`, a, b)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
