package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"furbook.app/petpals/models"
	"furbook.app/petpals/observability"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

type NotificationRepo interface {
	Get(ctx context.Context, id int) (*models.Notification, error)
	List(ctx context.Context, username string, page store.Page) ([]models.Notification, error)
	UnreadCount(ctx context.Context, username string) (int, error)
	CreateMany(ctx context.Context, notis []models.Notification) ([]models.Notification, error)
	SetRead(ctx context.Context, id int, read bool) (*models.Notification, error)
	ReadAll(ctx context.Context, username string) (int64, error)
	Delete(ctx context.Context, id int) error
}

type DeviceRepo interface {
	Register(ctx context.Context, username, token string) error
	Remove(ctx context.Context, username, token string) error
	Tokens(ctx context.Context, username string) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

// LivePusher delivers to a connected client through the gateway hub.
type LivePusher interface {
	SendNoti(ctx context.Context, n models.Notification) error
}

// MobilePusher is the offline fallback.
type MobilePusher interface {
	Multicast(ctx context.Context, tokens []string, title, body string, data map[string]string) (services.PushResult, error)
}

type NotiDeps struct {
	Notis   NotificationRepo
	Devices DeviceRepo
	Live    LivePusher
	Mobile  MobilePusher
}

const pushTitle = "PetPals"

// pushBody renders a notification desc such as "post:comment:alice" for a
// device tray.
func pushBody(desc string) string {
	parts := strings.SplitN(desc, ":", 3)
	if len(parts) != 3 {
		return desc
	}
	who := parts[2]
	switch parts[0] + ":" + parts[1] {
	case "friendRequest:send":
		return who + " sent you a friend request"
	case "friendRequest:accepted":
		return "You and " + who + " are now friends"
	case "post:comment":
		return who + " commented on your post"
	case "post:interaction":
		return who + " reacted to your post"
	case "post:participate":
		return who + " joined the search"
	case "post:unparticipate":
		return who + " left the search"
	case "post:resolved":
		return who + " marked their post as resolved"
	case "post:reminder":
		return "Your lost pet post is still open"
	}
	return desc
}

// deliver pushes n live, falling back to FCM when its owner is offline.
func (d NotiDeps) deliver(ctx context.Context, n models.Notification) {
	err := d.Live.SendNoti(ctx, n)
	if err == nil {
		observability.RecordDelivery("ws", "delivered")
		return
	}
	if !services.IsStatus(err, http.StatusNotFound) {
		observability.RecordDelivery("ws", "failed")
		log.Warn().Err(err).Int("noti", n.ID).Msg("live delivery failed")
	} else {
		observability.RecordDelivery("ws", "offline")
	}

	tokens, err := d.Devices.Tokens(ctx, n.Username)
	if err != nil {
		log.Error().Err(err).Str("user", n.Username).Msg("load device tokens failed")
		return
	}
	if len(tokens) == 0 {
		observability.RecordDelivery("fcm", "no_device")
		return
	}

	res, err := d.Mobile.Multicast(ctx, tokens, pushTitle, pushBody(n.Desc), map[string]string{
		"id":   strconv.Itoa(n.ID),
		"icon": n.Icon,
		"desc": n.Desc,
		"link": n.Link,
	})
	switch {
	case errors.Is(err, services.ErrPushDisabled):
		observability.RecordDelivery("fcm", "disabled")
		return
	case err != nil:
		observability.RecordDelivery("fcm", "failed")
		log.Warn().Err(err).Str("user", n.Username).Msg("fcm delivery failed")
		return
	}
	if res.Success > 0 {
		observability.RecordDelivery("fcm", "delivered")
	} else {
		observability.RecordDelivery("fcm", "failed")
	}
	if len(res.Unregistered) > 0 {
		if err := d.Devices.DeleteTokens(ctx, res.Unregistered); err != nil {
			log.Error().Err(err).Msg("delete unregistered tokens failed")
			return
		}
		log.Info().Int("count", len(res.Unregistered)).Str("user", n.Username).Msg("removed unregistered device tokens")
	}
}

func (d NotiDeps) deliverAll(ctx context.Context, notis []models.Notification) {
	var g errgroup.Group
	g.SetLimit(8)
	for _, n := range notis {
		g.Go(func() error {
			d.deliver(ctx, n)
			return nil
		})
	}
	g.Wait()
}

func (d NotiDeps) ownedNotification(w http.ResponseWriter, r *http.Request) (*models.Notification, bool) {
	id, ok := intVar(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid notification id")
		return nil, false
	}
	n, err := d.Notis.Get(r.Context(), id)
	if err != nil {
		storeError(w, r, err, "Notification not found")
		return nil, false
	}
	if n.Username != currentUser(r) {
		writeError(w, http.StatusForbidden, "Not your notification")
		return nil, false
	}
	return n, true
}

func GetNotification(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := d.ownedNotification(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func GetNotifications(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notis, err := d.Notis.List(r.Context(), currentUser(r), parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, notis)
	}
}

func GetUnreadCount(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := d.Notis.UnreadCount(r.Context(), currentUser(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}

func validNoti(icon, desc string) bool {
	return icon != "" && desc != ""
}

// CreateNotification is called by other services as the system user.
func CreateNotification(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req services.NotiRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Username == "" || !validNoti(req.Icon, req.Desc) {
			writeError(w, http.StatusBadRequest, "username, icon and desc are required")
			return
		}
		stored, err := d.Notis.CreateMany(r.Context(), []models.Notification{{
			Username: req.Username,
			Icon:     req.Icon,
			Desc:     req.Desc,
			Link:     req.Link,
		}})
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		d.deliverAll(r.Context(), stored)
		writeJSON(w, http.StatusCreated, stored[0])
	}
}

func CreateNotifications(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req services.NotiToUsersRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if !validNoti(req.Icon, req.Desc) {
			writeError(w, http.StatusBadRequest, "icon and desc are required")
			return
		}

		notis := make([]models.Notification, 0, len(req.Usernames))
		seen := make(map[string]struct{}, len(req.Usernames))
		for _, u := range req.Usernames {
			if _, dup := seen[u]; dup || u == "" {
				continue
			}
			seen[u] = struct{}{}
			notis = append(notis, models.Notification{Username: u, Icon: req.Icon, Desc: req.Desc, Link: req.Link})
		}
		if len(notis) == 0 {
			writeJSON(w, http.StatusCreated, []models.Notification{})
			return
		}

		stored, err := d.Notis.CreateMany(r.Context(), notis)
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		d.deliverAll(r.Context(), stored)
		writeJSON(w, http.StatusCreated, stored)
	}
}

func MarkNotification(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Read *bool `json:"read"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Read == nil {
			writeError(w, http.StatusBadRequest, "read is required")
			return
		}
		n, ok := d.ownedNotification(w, r)
		if !ok {
			return
		}
		updated, err := d.Notis.SetRead(r.Context(), n.ID, *req.Read)
		if err != nil {
			storeError(w, r, err, "Notification not found")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func MarkAllNotifications(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Notis.ReadAll(r.Context(), currentUser(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
	}
}

func DeleteNotification(d NotiDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := d.ownedNotification(w, r)
		if !ok {
			return
		}
		if err := d.Notis.Delete(r.Context(), n.ID); err != nil {
			storeError(w, r, err, "Notification not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
