package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"furbook.app/petpals/models"
)

const userColumns = `u.username, u.display_name, u.avatar, u.bio, u.created_at,
	(SELECT COUNT(*) FROM friendships f WHERE f.username = u.username) AS friend_num`

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.Username, &u.DisplayName, &u.Avatar, &u.Bio, &u.CreatedAt, &u.FriendNum)
	return u, err
}

func scanUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()
	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) Get(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u WHERE u.username = $1", username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// List returns the users that exist, in the order they were asked for.
func (s *UserStore) List(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return []models.User{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users u WHERE u.username = ANY($1)", pq.Array(usernames))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	found, err := scanUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}

	byName := make(map[string]models.User, len(found))
	for _, u := range found {
		byName[u.Username] = u
	}
	ordered := make([]models.User, 0, len(found))
	seen := make(map[string]bool, len(usernames))
	for _, name := range usernames {
		if u, ok := byName[name]; ok && !seen[name] {
			ordered = append(ordered, u)
			seen[name] = true
		}
	}
	return ordered, nil
}

func (s *UserStore) Create(ctx context.Context, username, displayName string) (*models.User, error) {
	u := models.User{Username: username, DisplayName: displayName}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, display_name)
		VALUES ($1, $2)
		RETURNING created_at`, username, displayName).Scan(&u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Update(ctx context.Context, username string, upd models.UserUpdate) (*models.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			avatar = COALESCE($3, avatar),
			bio = COALESCE($4, bio)
		WHERE username = $1`,
		username, nullString(upd.DisplayName), nullString(upd.Avatar), nullString(upd.Bio))
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, username)
}

// Delete removes the profile. Friendships and requests go with it through
// the cascading foreign keys.
func (s *UserStore) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE username = $1", username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches username or display name case-insensitively, prefix
// matches first.
func (s *UserStore) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	pattern := likePattern(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.username ILIKE '%' || $1 || '%' OR u.display_name ILIKE '%' || $1 || '%'
		ORDER BY
			CASE WHEN u.username ILIKE $1 || '%' OR u.display_name ILIKE $1 || '%' THEN 0 ELSE 1 END,
			u.username
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
