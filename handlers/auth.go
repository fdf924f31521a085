package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

const minPasswordLen = 6

type CredentialRepo interface {
	Exists(ctx context.Context, username string) (bool, error)
	Get(ctx context.Context, username string) (*models.Credential, error)
	Create(ctx context.Context, c models.Credential) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, displayName string) (*models.User, error)
	DeleteUser(ctx context.Context, username string) error
}

type TokenService interface {
	Issue(username string) (string, error)
	Parse(token string) (string, error)
}

type authRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token,omitempty"`
	User  *models.User `json:"user"`
}

func UsernameExists(creds CredentialRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exists, err := creds.Exists(r.Context(), mux.Vars(r)["username"])
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
	}
}

func Signup(creds CredentialRepo, users UserDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.Username == "" || req.DisplayName == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "Username, display name and password are required")
			return
		}
		if req.Username == services.SystemUser {
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}
		if utf8.RuneCountInString(req.Password) < minPasswordLen {
			writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
			return
		}
		if len(req.Password) > services.MaxPasswordBytes {
			writeError(w, http.StatusBadRequest, "Password is too long")
			return
		}

		exists, err := creds.Exists(r.Context(), req.Username)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		if exists {
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}

		salt, err := services.NewSalt()
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		hashed, err := services.HashPassword(req.Password, salt)
		if err != nil {
			storeError(w, r, err, "")
			return
		}

		user, err := users.CreateUser(r.Context(), req.Username, req.DisplayName)
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		if err := creds.Create(r.Context(), models.Credential{
			Username:       req.Username,
			PasswordHashed: hashed,
			Salt:           salt,
		}); err != nil {
			// Roll back the profile so the name stays free.
			if derr := users.DeleteUser(r.Context(), req.Username); derr != nil {
				log.Error().Err(derr).Str("user", req.Username).Msg("orphaned profile after failed signup")
			}
			storeError(w, r, err, "")
			return
		}

		log.Info().Str("user", req.Username).Msg("user signed up")
		writeJSON(w, http.StatusCreated, authResponse{User: user})
	}
}

func Login(creds CredentialRepo, users UserDirectory, tokens TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		cred, err := creds.Get(r.Context(), strings.TrimSpace(req.Username))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		if !services.CheckPassword(cred.PasswordHashed, req.Password, cred.Salt) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}

		token, err := tokens.Issue(cred.Username)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		user, err := users.GetUser(r.Context(), cred.Username)
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
	}
}

func CheckAuth(users UserDirectory, tokens TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "No token provided")
			return
		}
		username, err := tokens.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		user, err := users.GetUser(r.Context(), username)
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// Identity resolves the bearer token into UserHeader. A client-supplied
// UserHeader is always discarded; no token means an anonymous request.
func Identity(tokens TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(UserHeader)
			if r.Header.Get("Authorization") != "" {
				token, ok := bearerToken(r)
				if !ok {
					writeError(w, http.StatusUnauthorized, "Invalid token")
					return
				}
				username, err := tokens.Parse(token)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "Invalid token")
					return
				}
				r.Header.Set(UserHeader, username)
			}
			next.ServeHTTP(w, r)
		})
	}
}
