package handlers

import (
	"context"
	"errors"
	"net/http"

	"furbook.app/petpals/hub"
	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
)

// FramePusher is the hub surface behind the gateway's internal listener.
type FramePusher interface {
	PushChat(ctx context.Context, msg models.ChatPayload) error
	PushNotification(n models.Notification) error
}

// PushMessage relays a stored chat message. The sender comes from UserHeader.
func PushMessage(p FramePusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg models.ChatPayload
		if !decodeJSON(w, r, &msg) {
			return
		}
		msg.Username = currentUser(r)

		err := p.PushChat(r.Context(), msg)
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		case errors.Is(err, hub.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "Group not found or no member online")
		default:
			upstreamError(w, r, err)
		}
	}
}

func PushNoti(p FramePusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) != services.SystemUser {
			writeError(w, http.StatusForbidden, "Service only")
			return
		}
		var n models.Notification
		if !decodeJSON(w, r, &n) {
			return
		}
		if err := p.PushNotification(n); err != nil {
			writeError(w, http.StatusNotFound, "User not connected")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}
