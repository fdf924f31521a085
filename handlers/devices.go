package handlers

import (
	"net/http"
	"strings"
)

type deviceRequest struct {
	Token string `json:"token"`
}

func decodeDevice(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req deviceRequest
	if !decodeJSON(w, r, &req) {
		return "", false
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return "", false
	}
	return token, true
}

// RegisterDevice binds a push token to the caller. A token already bound to
// another user moves to the caller.
func RegisterDevice(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := decodeDevice(w, r)
		if !ok {
			return
		}
		if err := d.Devices.Register(r.Context(), currentUser(r), token); err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "Device registered"})
	}
}

func RemoveDevice(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := decodeDevice(w, r)
		if !ok {
			return
		}
		if err := d.Devices.Remove(r.Context(), currentUser(r), token); err != nil {
			storeError(w, r, err, "Device not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
