package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furbook.app/petpals/models"
)

var groupCols = []string{"id", "name", "is_direct", "owner_name", "created_at", "last_activity"}

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "alice:bob", DirectKey("bob", "alice"))
	assert.Equal(t, DirectKey("alice", "bob"), DirectKey("bob", "alice"))
}

func TestEnsureDirectReturnsExisting(t *testing.T) {
	mock := newPgxMock(t)
	s := NewGroupStore(mock)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE direct_key = \\$1").WithArgs("alice:bob").
		WillReturnRows(pgxmock.NewRows(groupCols).AddRow(5, "", true, "", at, at))

	g, err := s.EnsureDirect(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, &models.Group{ID: 5, IsDirect: true, CreatedAt: at, LastActivity: at}, g)
}

func TestEnsureDirectLostRaceReadsWinner(t *testing.T) {
	mock := newPgxMock(t)
	s := NewGroupStore(mock)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE direct_key = \\$1").WithArgs("alice:bob").WillReturnError(pgx.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)INSERT INTO chat_groups.*ON CONFLICT \(direct_key\) DO NOTHING`).
		WithArgs("alice:bob").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("WHERE direct_key = \\$1").WithArgs("alice:bob").
		WillReturnRows(pgxmock.NewRows(groupCols).AddRow(9, "", true, "", at, at))
	mock.ExpectRollback()

	g, err := s.EnsureDirect(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 9, g.ID)
}

func TestGroupsOfUserMostRecentFirst(t *testing.T) {
	mock := newPgxMock(t)
	s := NewGroupStore(mock)
	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	mock.ExpectQuery(`(?s)WHERE m.username = \$1.*ORDER BY g.last_activity DESC, g.id DESC.*LIMIT \$2 OFFSET \$3`).
		WithArgs("alice", 10, 10).
		WillReturnRows(pgxmock.NewRows(groupCols).
			AddRow(2, "walkers", false, "alice", older, newer).
			AddRow(1, "", true, "", older, older))

	groups, err := s.OfUser(context.Background(), "alice", NewPage(2, 10))
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []int{2, 1}, []int{groups[0].ID, groups[1].ID})
	assert.Equal(t, "alice", groups[0].OwnerName)
}

func TestGetGroupMissing(t *testing.T) {
	mock := newPgxMock(t)
	s := NewGroupStore(mock)

	mock.ExpectQuery("FROM chat_groups WHERE id = \\$1").WithArgs(3).WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMembersInJoinOrder(t *testing.T) {
	mock := newPgxMock(t)
	s := NewGroupStore(mock)

	mock.ExpectQuery("ORDER BY joined_at, username").WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"username"}).AddRow("alice").AddRow("bob"))

	members, err := s.Members(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)
}

func TestGroupWritesCheckAffectedRows(t *testing.T) {
	mock := newPgxMock(t)
	s := NewGroupStore(mock)

	mock.ExpectExec("DELETE FROM group_members").WithArgs(3, "carol").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("UPDATE chat_groups SET name").WithArgs(3, "pack").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.ErrorIs(t, s.RemoveMember(context.Background(), 3, "carol"), ErrNotFound)
	assert.NoError(t, s.Rename(context.Background(), 3, "pack"))
}
