package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"furbook.app/petpals/models"
	"furbook.app/petpals/store"
)

type GroupRepo interface {
	Get(ctx context.Context, id int) (*models.Group, error)
	Members(ctx context.Context, id int) ([]string, error)
	IsMember(ctx context.Context, id int, username string) (bool, error)
	OfUser(ctx context.Context, username string, page store.Page) ([]models.Group, error)
	Direct(ctx context.Context, a, b string) (*models.Group, error)
	EnsureDirect(ctx context.Context, a, b string) (*models.Group, error)
	Create(ctx context.Context, name, owner string, members []string) (*models.Group, error)
	Rename(ctx context.Context, id int, name string) error
	Delete(ctx context.Context, id int) error
	AddMember(ctx context.Context, id int, username string) error
	RemoveMember(ctx context.Context, id int, username string) error
}

type MessageRepo interface {
	Page(ctx context.Context, groupID int, page store.Page) ([]models.Message, error)
	Last(ctx context.Context, groupID int) (*models.Message, error)
	Create(ctx context.Context, groupID int, username, content string) (*models.Message, error)
}

type ChatPusher interface {
	SendChat(ctx context.Context, msg models.ChatPayload) error
}

type MessageDeps struct {
	Groups   GroupRepo
	Messages MessageRepo
	Users    UserLookup
	Push     ChatPusher
}

// present builds the GroupChat view of g for viewer. Direct groups borrow
// the other member's display name and avatar.
func (d MessageDeps) present(ctx context.Context, g *models.Group, viewer string) (models.GroupChat, error) {
	members, err := d.Groups.Members(ctx, g.ID)
	if err != nil {
		return models.GroupChat{}, err
	}
	chat := models.GroupChat{
		ID:        g.ID,
		Name:      g.Name,
		IsDirect:  g.IsDirect,
		OwnerName: g.OwnerName,
		Members:   members,
	}

	last, err := d.Messages.Last(ctx, g.ID)
	switch {
	case err == nil:
		chat.LastMessage = last
	case !errors.Is(err, store.ErrNotFound):
		return models.GroupChat{}, err
	}

	if g.IsDirect {
		for _, m := range members {
			if m == viewer {
				continue
			}
			chat.Name = m
			users, err := d.Users.FindUsers(ctx, []string{m})
			if err != nil {
				log.Warn().Err(err).Str("user", m).Msg("direct peer lookup failed")
			} else if len(users) == 1 {
				chat.Name = users[0].DisplayName
				chat.Avatar = users[0].Avatar
			}
		}
	}
	return chat, nil
}

// memberGroup loads a group the caller belongs to, answering 404 or 403
// itself otherwise.
func (d MessageDeps) memberGroup(w http.ResponseWriter, r *http.Request) (*models.Group, bool) {
	id, ok := intVar(r, "groupId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid group id")
		return nil, false
	}
	g, err := d.Groups.Get(r.Context(), id)
	if err != nil {
		storeError(w, r, err, "Group not found")
		return nil, false
	}
	member, err := d.Groups.IsMember(r.Context(), id, currentUser(r))
	if err != nil {
		storeError(w, r, err, "")
		return nil, false
	}
	if !member {
		writeError(w, http.StatusForbidden, "Not a member of this group")
		return nil, false
	}
	return g, true
}

func (d MessageDeps) ownedGroup(w http.ResponseWriter, r *http.Request) (*models.Group, bool) {
	g, ok := d.memberGroup(w, r)
	if !ok {
		return nil, false
	}
	if g.IsDirect || g.OwnerName != currentUser(r) {
		writeError(w, http.StatusForbidden, "Only the group owner can do this")
		return nil, false
	}
	return g, true
}

func (d MessageDeps) userExists(ctx context.Context, username string) (bool, error) {
	users, err := d.Users.FindUsers(ctx, []string{username})
	if err != nil {
		return false, err
	}
	return len(users) == 1, nil
}

func GetGroup(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := d.memberGroup(w, r)
		if !ok {
			return
		}
		chat, err := d.present(r.Context(), g, currentUser(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, chat)
	}
}

func GetGroupMembers(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := d.memberGroup(w, r)
		if !ok {
			return
		}
		names, err := d.Groups.Members(r.Context(), g.ID)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		users, err := d.Users.FindUsers(r.Context(), names)
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// GetGroups lists the caller's groups, most recently active first.
func GetGroups(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := currentUser(r)
		if q := r.URL.Query().Get("username"); q != "" && q != username {
			writeError(w, http.StatusForbidden, "Cannot list groups of another user")
			return
		}
		groups, err := d.Groups.OfUser(r.Context(), username, parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		out := make([]models.GroupChat, 0, len(groups))
		for i := range groups {
			chat, err := d.present(r.Context(), &groups[i], username)
			if err != nil {
				storeError(w, r, err, "")
				return
			}
			out = append(out, chat)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetDirectGroup(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := currentUser(r)
		other := mux.Vars(r)["username"]
		if other == username {
			writeError(w, http.StatusBadRequest, "Cannot chat with yourself")
			return
		}
		exists, err := d.userExists(r.Context(), other)
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		g, err := d.Groups.EnsureDirect(r.Context(), username, other)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		chat, err := d.present(r.Context(), g, username)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, chat)
	}
}

func CreateGroup(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			GroupName string   `json:"groupName"`
			Members   []string `json:"members"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		name := strings.TrimSpace(req.GroupName)
		if name == "" {
			writeError(w, http.StatusBadRequest, "Group name is required")
			return
		}

		owner := currentUser(r)
		g, err := d.Groups.Create(r.Context(), name, owner, req.Members)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		chat, err := d.present(r.Context(), g, owner)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, chat)
	}
}

func RenameGroup(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			GroupName string `json:"groupName"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		name := strings.TrimSpace(req.GroupName)
		if name == "" {
			writeError(w, http.StatusBadRequest, "Group name is required")
			return
		}
		g, ok := d.ownedGroup(w, r)
		if !ok {
			return
		}
		if err := d.Groups.Rename(r.Context(), g.ID, name); err != nil {
			storeError(w, r, err, "Group not found")
			return
		}
		g.Name = name
		chat, err := d.present(r.Context(), g, currentUser(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, chat)
	}
}

func DeleteGroup(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := d.ownedGroup(w, r)
		if !ok {
			return
		}
		if err := d.Groups.Delete(r.Context(), g.ID); err != nil {
			storeError(w, r, err, "Group not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AddGroupMember(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		g, ok := d.ownedGroup(w, r)
		if !ok {
			return
		}
		exists, err := d.userExists(r.Context(), req.Username)
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if err := d.Groups.AddMember(r.Context(), g.ID, req.Username); err != nil {
			storeError(w, r, err, "Group not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Member added"})
	}
}

// RemoveGroupMember lets the owner remove anyone else and a member remove
// themselves.
func RemoveGroupMember(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		g, ok := d.memberGroup(w, r)
		if !ok {
			return
		}
		caller := currentUser(r)
		switch {
		case g.IsDirect:
			writeError(w, http.StatusBadRequest, "Direct chats have fixed members")
			return
		case req.Username == g.OwnerName:
			writeError(w, http.StatusBadRequest, "The owner cannot leave, delete the group instead")
			return
		case caller != g.OwnerName && caller != req.Username:
			writeError(w, http.StatusForbidden, "Only the group owner can remove other members")
			return
		}
		if err := d.Groups.RemoveMember(r.Context(), g.ID, req.Username); err != nil {
			storeError(w, r, err, "Member not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Member removed"})
	}
}
