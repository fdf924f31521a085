package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"furbook.app/petpals/models"
)

const maxCommentChars = 2048

func GetComments(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comments, err := d.Posts.Comments(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}

		names := make([]string, 0, len(comments))
		for _, c := range comments {
			names = append(names, c.Username)
		}
		byName := d.profiles(r.Context(), names)

		out := make([]models.CommentWithUser, 0, len(comments))
		for _, c := range comments {
			u := byName[c.Username]
			out = append(out, models.CommentWithUser{Comment: c, DisplayName: u.DisplayName, Avatar: u.Avatar})
		}
		writeJSON(w, http.StatusOK, map[string][]models.CommentWithUser{"comments": out})
	}
}

func CreateComment(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		content := strings.TrimSpace(req.Content)
		if content == "" || len([]rune(content)) > maxCommentChars {
			writeError(w, http.StatusBadRequest, "Comment must be between 1 and 2048 characters")
			return
		}

		username := currentUser(r)
		p, err := d.Posts.AddComment(r.Context(), mux.Vars(r)["id"], models.Comment{
			Username:  username,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		d.notifyOwner(r.Context(), p, username, "comment")
		writeJSON(w, http.StatusCreated, d.decorateOne(r.Context(), p))
	}
}

func DeleteComments(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := d.Posts.RemoveComments(r.Context(), mux.Vars(r)["id"], currentUser(r))
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		writeJSON(w, http.StatusOK, d.decorateOne(r.Context(), p))
	}
}

func SetInteraction(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type models.InteractionType `json:"type"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Type != models.InteractionLike && req.Type != models.InteractionHeart {
			writeError(w, http.StatusBadRequest, "Interaction type must be like or heart")
			return
		}

		username := currentUser(r)
		p, err := d.Posts.SetInteraction(r.Context(), mux.Vars(r)["id"], username, req.Type)
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		d.notifyOwner(r.Context(), p, username, "interaction")
		writeJSON(w, http.StatusOK, d.decorateOne(r.Context(), p))
	}
}

func DeleteInteraction(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := d.Posts.RemoveInteraction(r.Context(), mux.Vars(r)["id"], currentUser(r))
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		writeJSON(w, http.StatusOK, d.decorateOne(r.Context(), p))
	}
}

// Participation adds or removes the caller as a helper on a lost or found
// post.
func Participation(d PostDeps, join bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		existing, err := d.Posts.Get(r.Context(), id)
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		if !existing.Type.IsLostFound() {
			writeError(w, http.StatusBadRequest, "Only lost and found posts accept participants")
			return
		}

		username := currentUser(r)
		var p *models.Post
		event := "participate"
		if join {
			p, err = d.Posts.AddParticipant(r.Context(), id, username)
		} else {
			p, err = d.Posts.RemoveParticipant(r.Context(), id, username)
			event = "unparticipate"
		}
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		d.notifyOwner(r.Context(), p, username, event)
		writeJSON(w, http.StatusOK, d.decorateOne(r.Context(), p))
	}
}
