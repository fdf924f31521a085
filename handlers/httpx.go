package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

// UserHeader carries the caller identity from the gateway to the services.
const UserHeader = "X-Username"

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func currentUser(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

// RequireUser rejects requests that reached the service without an identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSystem admits only other services calling as the system user.
func RequireSystem(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) != services.SystemUser {
			writeError(w, http.StatusForbidden, "Service only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parsePage(r *http.Request) store.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return store.NewPage(page, size)
}

func intVar(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	return v, err == nil
}

// storeError answers with 404 for store.ErrNotFound and 500 for anything
// else, logging the latter.
func storeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// upstreamError relays the status of a failed inter-service call.
func upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *services.HTTPError
	if errors.As(err, &httpErr) {
		writeError(w, httpErr.Status, httpErr.Message)
		return
	}
	log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream call failed")
	writeError(w, http.StatusBadGateway, "Upstream unavailable")
}
