package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"furbook.app/petpals/models"
)

const groupColumns = "id, name, is_direct, COALESCE(owner_name, ''), created_at, last_activity"

type GroupStore struct {
	pool pgxIface
}

func NewGroupStore(pool pgxIface) *GroupStore {
	return &GroupStore{pool: pool}
}

// DirectKey identifies the direct group of an unordered pair.
func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

func scanGroup(row pgx.Row) (*models.Group, error) {
	var g models.Group
	if err := row.Scan(&g.ID, &g.Name, &g.IsDirect, &g.OwnerName, &g.CreatedAt, &g.LastActivity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) Get(ctx context.Context, id int) (*models.Group, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM chat_groups WHERE id = $1", id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, err
}

func (s *GroupStore) Members(ctx context.Context, id int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT username FROM group_members WHERE group_id = $1 ORDER BY joined_at, username", id)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}
	return members, nil
}

func (s *GroupStore) IsMember(ctx context.Context, id int, username string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND username = $2)",
		id, username).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return ok, nil
}

// OfUser lists the groups of username, most recently active first.
func (s *GroupStore) OfUser(ctx context.Context, username string, page Page) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.name, g.is_direct, COALESCE(g.owner_name, ''), g.created_at, g.last_activity
		FROM chat_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.username = $1
		ORDER BY g.last_activity DESC, g.id DESC
		LIMIT $2 OFFSET $3`, username, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func (s *GroupStore) Direct(ctx context.Context, a, b string) (*models.Group, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM chat_groups WHERE direct_key = $1", DirectKey(a, b)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get direct group: %w", err)
	}
	return g, err
}

// EnsureDirect returns the direct group of a and b, creating it on first
// use. Concurrent callers converge on the same row through direct_key.
func (s *GroupStore) EnsureDirect(ctx context.Context, a, b string) (*models.Group, error) {
	if g, err := s.Direct(ctx, a, b); err == nil {
		return g, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	g, err := scanGroup(tx.QueryRow(ctx, `
		INSERT INTO chat_groups (name, is_direct, direct_key)
		VALUES ('', TRUE, $1)
		ON CONFLICT (direct_key) DO NOTHING
		RETURNING `+groupColumns, DirectKey(a, b)))
	if errors.Is(err, ErrNotFound) {
		// lost the race, the other insert is committed
		return s.Direct(ctx, a, b)
	}
	if err != nil {
		return nil, fmt.Errorf("insert direct group: %w", err)
	}
	if err := addMembers(ctx, tx, g.ID, []string{a, b}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

// Create makes a multi-party group owned by owner. The owner is always a
// member and duplicates are dropped.
func (s *GroupStore) Create(ctx context.Context, name, owner string, members []string) (*models.Group, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	g, err := scanGroup(tx.QueryRow(ctx, `
		INSERT INTO chat_groups (name, is_direct, owner_name)
		VALUES ($1, FALSE, $2)
		RETURNING `+groupColumns, name, owner))
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	if err := addMembers(ctx, tx, g.ID, UniqueMembers(owner, members)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

// UniqueMembers puts owner first and drops blanks and repeats.
func UniqueMembers(owner string, members []string) []string {
	seen := map[string]bool{owner: true}
	out := []string{owner}
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func addMembers(ctx context.Context, tx pgx.Tx, groupID int, usernames []string) error {
	batch := &pgx.Batch{}
	for _, u := range usernames {
		batch.Queue(`
			INSERT INTO group_members (group_id, username)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, groupID, u)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert members: %w", err)
	}
	return nil
}

func (s *GroupStore) Rename(ctx context.Context, id int, name string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE chat_groups SET name = $2 WHERE id = $1", id, name)
	if err != nil {
		return fmt.Errorf("rename group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the group. Members and messages cascade.
func (s *GroupStore) Delete(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM chat_groups WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GroupStore) AddMember(ctx context.Context, id int, username string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, username)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, id, username)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *GroupStore) RemoveMember(ctx context.Context, id int, username string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM group_members WHERE group_id = $1 AND username = $2", id, username)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
