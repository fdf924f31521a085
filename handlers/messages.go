package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

const maxMessageChars = 1024

func validMessage(content string) bool {
	n := utf8.RuneCountInString(content)
	return strings.TrimSpace(content) != "" && n <= maxMessageChars
}

func GetGroupMessages(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := d.memberGroup(w, r)
		if !ok {
			return
		}
		msgs, err := d.Messages.Page(r.Context(), g.ID, parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// GetDirectMessages returns an empty page when the two users never talked.
func GetDirectMessages(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		other := r.URL.Query().Get("oppUsername")
		if other == "" {
			writeError(w, http.StatusBadRequest, "oppUsername is required")
			return
		}
		g, err := d.Groups.Direct(r.Context(), currentUser(r), other)
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, []models.Message{})
			return
		}
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		msgs, err := d.Messages.Page(r.Context(), g.ID, parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func SendGroupMessage(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if !validMessage(req.Content) {
			writeError(w, http.StatusBadRequest, "Message must be between 1 and 1024 characters")
			return
		}
		g, ok := d.memberGroup(w, r)
		if !ok {
			return
		}
		d.send(w, r, g.ID, req.Content)
	}
}

func SendDirectMessage(d MessageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OppUsername string `json:"oppUsername"`
			Content     string `json:"content"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if !validMessage(req.Content) {
			writeError(w, http.StatusBadRequest, "Message must be between 1 and 1024 characters")
			return
		}
		username := currentUser(r)
		if req.OppUsername == "" || req.OppUsername == username {
			writeError(w, http.StatusBadRequest, "A different oppUsername is required")
			return
		}
		exists, err := d.userExists(r.Context(), req.OppUsername)
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		g, err := d.Groups.EnsureDirect(r.Context(), username, req.OppUsername)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		d.send(w, r, g.ID, req.Content)
	}
}

func (d MessageDeps) send(w http.ResponseWriter, r *http.Request, groupID int, content string) {
	msg, err := d.Messages.Create(r.Context(), groupID, currentUser(r), content)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	d.relay(r.Context(), msg)
	writeJSON(w, http.StatusCreated, msg)
}

// relay pushes the stored message to online members. Nobody online is a
// normal outcome.
func (d MessageDeps) relay(ctx context.Context, msg *models.Message) {
	err := d.Push.SendChat(ctx, models.ChatPayload{
		MessageID: msg.ID,
		Username:  msg.Username,
		GroupID:   msg.GroupID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil && !services.IsStatus(err, http.StatusNotFound) {
		log.Warn().Err(err).Int("group", msg.GroupID).Msg("chat relay failed")
	}
}
