package handlers

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

type memGroups struct {
	groups  map[int]*models.Group
	members map[int][]string
	direct  map[string]int
	next    int
}

func newMemGroups() *memGroups {
	return &memGroups{groups: map[int]*models.Group{}, members: map[int][]string{}, direct: map[string]int{}}
}

func (m *memGroups) add(g models.Group, members ...string) int {
	m.next++
	g.ID = m.next
	m.groups[g.ID] = &g
	m.members[g.ID] = members
	return g.ID
}

func (m *memGroups) Get(_ context.Context, id int) (*models.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGroups) Members(_ context.Context, id int) ([]string, error) {
	return slices.Clone(m.members[id]), nil
}

func (m *memGroups) IsMember(_ context.Context, id int, username string) (bool, error) {
	return slices.Contains(m.members[id], username), nil
}

func (m *memGroups) OfUser(_ context.Context, username string, _ store.Page) ([]models.Group, error) {
	out := []models.Group{}
	for id := 1; id <= m.next; id++ {
		if g, ok := m.groups[id]; ok && slices.Contains(m.members[id], username) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *memGroups) Direct(ctx context.Context, a, b string) (*models.Group, error) {
	id, ok := m.direct[store.DirectKey(a, b)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *memGroups) EnsureDirect(ctx context.Context, a, b string) (*models.Group, error) {
	key := store.DirectKey(a, b)
	if _, ok := m.direct[key]; !ok {
		m.direct[key] = m.add(models.Group{IsDirect: true}, a, b)
	}
	return m.Direct(ctx, a, b)
}

func (m *memGroups) Create(ctx context.Context, name, owner string, members []string) (*models.Group, error) {
	id := m.add(models.Group{Name: name, OwnerName: owner}, store.UniqueMembers(owner, members)...)
	return m.Get(ctx, id)
}

func (m *memGroups) Rename(_ context.Context, id int, name string) error {
	g, ok := m.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Name = name
	return nil
}

func (m *memGroups) Delete(_ context.Context, id int) error {
	if _, ok := m.groups[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.groups, id)
	delete(m.members, id)
	return nil
}

func (m *memGroups) AddMember(_ context.Context, id int, username string) error {
	if !slices.Contains(m.members[id], username) {
		m.members[id] = append(m.members[id], username)
	}
	return nil
}

func (m *memGroups) RemoveMember(_ context.Context, id int, username string) error {
	if !slices.Contains(m.members[id], username) {
		return store.ErrNotFound
	}
	m.members[id] = slices.DeleteFunc(m.members[id], func(u string) bool { return u == username })
	return nil
}

type memMessages struct {
	msgs []models.Message
}

func (m *memMessages) Page(_ context.Context, groupID int, page store.Page) ([]models.Message, error) {
	var all []models.Message
	for _, msg := range m.msgs {
		if msg.GroupID == groupID {
			all = append(all, msg)
		}
	}
	end := max(len(all)-page.Offset(), 0)
	start := max(end-page.Size, 0)
	return append([]models.Message{}, all[start:end]...), nil
}

func (m *memMessages) Last(_ context.Context, groupID int) (*models.Message, error) {
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].GroupID == groupID {
			msg := m.msgs[i]
			return &msg, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memMessages) Create(_ context.Context, groupID int, username, content string) (*models.Message, error) {
	msg := models.Message{ID: len(m.msgs) + 1, GroupID: groupID, Username: username, Content: content, CreatedAt: time.Now()}
	m.msgs = append(m.msgs, msg)
	return &msg, nil
}

type fakeChatPusher struct {
	sent []models.ChatPayload
	err  error
}

func (f *fakeChatPusher) SendChat(_ context.Context, msg models.ChatPayload) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func newMessageDeps() (MessageDeps, *memGroups, *memMessages, *fakeChatPusher) {
	groups := newMemGroups()
	msgs := &memMessages{}
	push := &fakeChatPusher{}
	users := newFakeDirectory(
		models.User{Username: "mochi", DisplayName: "Mochi", Avatar: "m.png"},
		models.User{Username: "bean", DisplayName: "Bean", Avatar: "b.png"},
		models.User{Username: "pico", DisplayName: "Pico"},
	)
	return MessageDeps{Groups: groups, Messages: msgs, Users: users, Push: push}, groups, msgs, push
}

func groupPath(id int, suffix string) string {
	return "/api/group/" + strconv.Itoa(id) + suffix
}

func TestCreateGroupAndMembership(t *testing.T) {
	d, groups, _, _ := newMessageDeps()

	rec := call(t, CreateGroup(d), "/api/group", http.MethodPost, "/api/group", "mochi",
		map[string]any{"groupName": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, CreateGroup(d), "/api/group", http.MethodPost, "/api/group", "mochi",
		map[string]any{"groupName": "Walkers", "members": []string{"bean", "bean", "mochi"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	chat := decode[models.GroupChat](t, rec)
	assert.Equal(t, "mochi", chat.OwnerName)
	assert.ElementsMatch(t, []string{"mochi", "bean"}, chat.Members)
	assert.Nil(t, chat.LastMessage)

	rec = call(t, GetGroup(d), "/api/group/{groupId}", http.MethodGet, groupPath(chat.ID, ""), "pico", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, GetGroup(d), "/api/group/{groupId}", http.MethodGet, groupPath(99, ""), "mochi", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, AddGroupMember(d), "/api/group/{groupId}/members", http.MethodPost, groupPath(chat.ID, "/members"),
		"bean", map[string]string{"username": "pico"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, AddGroupMember(d), "/api/group/{groupId}/members", http.MethodPost, groupPath(chat.ID, "/members"),
		"mochi", map[string]string{"username": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = call(t, AddGroupMember(d), "/api/group/{groupId}/members", http.MethodPost, groupPath(chat.ID, "/members"),
		"mochi", map[string]string{"username": "pico"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, GetGroupMembers(d), "/api/group/{groupId}/members", http.MethodGet, groupPath(chat.ID, "/members"), "pico", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.User](t, rec), 3)

	remove := func(caller, target string) int {
		return call(t, RemoveGroupMember(d), "/api/group/{groupId}/members", http.MethodDelete,
			groupPath(chat.ID, "/members"), caller, map[string]string{"username": target}).Code
	}
	assert.Equal(t, http.StatusForbidden, remove("bean", "pico"))
	assert.Equal(t, http.StatusBadRequest, remove("mochi", "mochi"))
	assert.Equal(t, http.StatusOK, remove("pico", "pico"))
	assert.Equal(t, http.StatusOK, remove("mochi", "bean"))
	assert.Equal(t, []string{"mochi"}, groups.members[chat.ID])
}

func TestRenameAndDeleteAreOwnerOnly(t *testing.T) {
	d, groups, _, _ := newMessageDeps()
	id := groups.add(models.Group{Name: "Old", OwnerName: "mochi"}, "mochi", "bean")

	rec := call(t, RenameGroup(d), "/api/group/{groupId}", http.MethodPut, groupPath(id, ""), "bean",
		map[string]string{"groupName": "New"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, RenameGroup(d), "/api/group/{groupId}", http.MethodPut, groupPath(id, ""), "mochi",
		map[string]string{"groupName": "New"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New", decode[models.GroupChat](t, rec).Name)

	rec = call(t, DeleteGroup(d), "/api/group/{groupId}", http.MethodDelete, groupPath(id, ""), "bean", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, DeleteGroup(d), "/api/group/{groupId}", http.MethodDelete, groupPath(id, ""), "mochi", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, groups.groups)
}

func TestDirectGroupPresentsPeer(t *testing.T) {
	d, groups, _, _ := newMessageDeps()
	h := GetDirectGroup(d)

	rec := call(t, h, "/api/group/direct/{username}", http.MethodGet, "/api/group/direct/mochi", "mochi", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = call(t, h, "/api/group/direct/{username}", http.MethodGet, "/api/group/direct/ghost", "mochi", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, "/api/group/direct/{username}", http.MethodGet, "/api/group/direct/bean", "mochi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[models.GroupChat](t, rec)
	assert.True(t, first.IsDirect)
	assert.Equal(t, "Bean", first.Name)
	assert.Equal(t, "b.png", first.Avatar)

	rec = call(t, h, "/api/group/direct/{username}", http.MethodGet, "/api/group/direct/mochi", "bean", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[models.GroupChat](t, rec)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Mochi", second.Name)
	assert.Len(t, groups.groups, 1)

	rec = call(t, AddGroupMember(d), "/api/group/{groupId}/members", http.MethodPost, groupPath(first.ID, "/members"),
		"mochi", map[string]string{"username": "pico"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, RemoveGroupMember(d), "/api/group/{groupId}/members", http.MethodDelete, groupPath(first.ID, "/members"),
		"mochi", map[string]string{"username": "mochi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGroupsOnlyForCaller(t *testing.T) {
	d, groups, msgs, _ := newMessageDeps()
	id := groups.add(models.Group{Name: "Walkers", OwnerName: "mochi"}, "mochi", "bean")
	groups.add(models.Group{Name: "Other", OwnerName: "pico"}, "pico")
	msgs.Create(context.Background(), id, "bean", "hello")

	rec := call(t, GetGroups(d), "/api/group", http.MethodGet, "/api/group?username=bean", "mochi", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, GetGroups(d), "/api/group", http.MethodGet, "/api/group?username=mochi", "mochi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.GroupChat](t, rec)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hello", list[0].LastMessage.Content)
}

func TestSendGroupMessage(t *testing.T) {
	d, groups, msgs, push := newMessageDeps()
	id := groups.add(models.Group{Name: "Walkers", OwnerName: "mochi"}, "mochi", "bean")
	send := func(user, content string) int {
		return call(t, SendGroupMessage(d), "/api/message/group/{groupId}", http.MethodPost,
			"/api/message/group/"+strconv.Itoa(id), user, map[string]string{"content": content}).Code
	}

	assert.Equal(t, http.StatusBadRequest, send("mochi", ""))
	assert.Equal(t, http.StatusBadRequest, send("mochi", strings.Repeat("z", maxMessageChars+1)))
	assert.Equal(t, http.StatusCreated, send("mochi", strings.Repeat("ü", maxMessageChars)))
	assert.Equal(t, http.StatusForbidden, send("pico", "let me in"))

	push.err = &services.HTTPError{Status: http.StatusNotFound, Message: "nobody online"}
	assert.Equal(t, http.StatusCreated, send("bean", "woof"))

	require.Len(t, push.sent, 2)
	assert.Equal(t, "bean", push.sent[1].Username)
	assert.Equal(t, id, push.sent[1].GroupID)
	assert.Len(t, msgs.msgs, 2)
}

func TestDirectMessages(t *testing.T) {
	d, groups, _, push := newMessageDeps()

	rec := call(t, GetDirectMessages(d), "/api/message/direct", http.MethodGet, "/api/message/direct?oppUsername=bean", "mochi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Empty(t, groups.groups)

	rec = call(t, SendDirectMessage(d), "/api/message/direct", http.MethodPost, "/api/message/direct", "mochi",
		map[string]string{"oppUsername": "mochi", "content": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, c := range []string{"one", "two", "three"} {
		rec = call(t, SendDirectMessage(d), "/api/message/direct", http.MethodPost, "/api/message/direct", "mochi",
			map[string]string{"oppUsername": "bean", "content": c})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Len(t, groups.groups, 1)
	assert.Len(t, push.sent, 3)

	rec = call(t, GetDirectMessages(d), "/api/message/direct", http.MethodGet,
		"/api/message/direct?oppUsername=mochi&page=1&size=2", "bean", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[[]models.Message](t, rec)
	require.Len(t, page, 2)
	assert.Equal(t, "two", page[0].Content)
	assert.Equal(t, "three", page[1].Content)
}
