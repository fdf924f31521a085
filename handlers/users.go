package handlers

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"furbook.app/petpals/models"
)

const (
	searchLimit    = 20
	maxSearchChars = 50
)

type UserRepo interface {
	Get(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, usernames []string) ([]models.User, error)
	Create(ctx context.Context, username, displayName string) (*models.User, error)
	Update(ctx context.Context, username string, upd models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, username string) error
	Search(ctx context.Context, query string, limit int) ([]models.User, error)
}

func GetUser(users UserRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.Get(r.Context(), mux.Vars(r)["username"])
		if err != nil {
			storeError(w, r, err, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func ListUsers(users UserRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Usernames []string `json:"usernames"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		list, err := users.List(r.Context(), req.Usernames)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateUser(users UserRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username    string `json:"username"`
			DisplayName string `json:"displayName"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.Username == "" || req.DisplayName == "" {
			writeError(w, http.StatusBadRequest, "Username and display name are required")
			return
		}
		if _, err := users.Get(r.Context(), req.Username); err == nil {
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}

		u, err := users.Create(r.Context(), req.Username, req.DisplayName)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

func UpdateUser(users UserRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd models.UserUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		if upd.DisplayName != nil && strings.TrimSpace(*upd.DisplayName) == "" {
			writeError(w, http.StatusBadRequest, "Display name cannot be empty")
			return
		}

		username := currentUser(r)
		var (
			u   *models.User
			err error
		)
		if upd.Empty() {
			u, err = users.Get(r.Context(), username)
		} else {
			u, err = users.Update(r.Context(), username, upd)
		}
		if err != nil {
			storeError(w, r, err, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func DeleteUser(users UserRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := users.Delete(r.Context(), currentUser(r)); err != nil {
			storeError(w, r, err, "User not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SearchUsers(users UserRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := truncateRunes(strings.TrimSpace(r.URL.Query().Get("q")), maxSearchChars)
		if q == "" {
			writeJSON(w, http.StatusOK, []models.User{})
			return
		}
		found, err := users.Search(r.Context(), q, searchLimit)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
