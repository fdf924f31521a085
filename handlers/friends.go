package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

const maxDirectLookups = 8

type FriendRepo interface {
	Friends(ctx context.Context, username string) ([]models.User, error)
	Requests(ctx context.Context, username string) ([]models.User, error)
	Friendship(ctx context.Context, a, b string) (models.Friendship, error)
	SendRequest(ctx context.Context, sender, receiver string) (models.FriendRequestResult, error)
	DeleteRequest(ctx context.Context, sender, receiver string) error
	RemoveFriend(ctx context.Context, a, b string) error
}

type DirectGroupFinder interface {
	FindDirectGroup(ctx context.Context, username, other string) (int, error)
}

// Notifier creates notifications through the notification service.
type Notifier interface {
	CreateNoti(ctx context.Context, req services.NotiRequest) (*models.Notification, error)
	CreateNotiToUsers(ctx context.Context, req services.NotiToUsersRequest) error
}

// notify is best-effort; a failure is logged and swallowed.
func notify(ctx context.Context, n Notifier, req services.NotiRequest) {
	if _, err := n.CreateNoti(ctx, req); err != nil {
		log.Warn().Err(err).Str("to", req.Username).Str("desc", req.Desc).Msg("notification failed")
	}
}

// GetFriends attaches the direct chat id of every friend. A failed lookup
// leaves groupid null.
func GetFriends(friends FriendRepo, groups DirectGroupFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := currentUser(r)
		list, err := friends.Friends(r.Context(), username)
		if err != nil {
			storeError(w, r, err, "")
			return
		}

		g, ctx := errgroup.WithContext(r.Context())
		g.SetLimit(maxDirectLookups)
		for i := range list {
			g.Go(func() error {
				id, err := groups.FindDirectGroup(ctx, username, list[i].Username)
				if err != nil {
					log.Warn().Err(err).Str("friend", list[i].Username).Msg("direct group lookup failed")
					return nil
				}
				list[i].GroupID = &id
				return nil
			})
		}
		g.Wait()

		writeJSON(w, http.StatusOK, list)
	}
}

func CheckFriendship(friends FriendRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := friends.Friendship(r.Context(), currentUser(r), mux.Vars(r)["username"])
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]models.Friendship{"friendship": status})
	}
}

func RemoveFriend(friends FriendRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Friend string `json:"friend"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := friends.RemoveFriend(r.Context(), currentUser(r), req.Friend); err != nil {
			storeError(w, r, err, "Friend not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Friend removed"})
	}
}

func GetFriendRequests(friends FriendRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senders, err := friends.Requests(r.Context(), currentUser(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, senders)
	}
}

func SendFriendRequest(users UserRepo, friends FriendRepo, groups DirectGroupFinder, noti Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Receiver string `json:"receiver"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		sender := currentUser(r)
		if req.Receiver == sender {
			writeError(w, http.StatusBadRequest, "Cannot send friend request to yourself")
			return
		}
		if _, err := users.Get(r.Context(), req.Receiver); err != nil {
			storeError(w, r, err, "User not found")
			return
		}

		result, err := friends.SendRequest(r.Context(), sender, req.Receiver)
		if err != nil {
			storeError(w, r, err, "")
			return
		}

		switch result {
		case models.FriendRequestSent:
			notify(r.Context(), noti, services.NotiRequest{
				Username: req.Receiver,
				Icon:     "user",
				Desc:     "friendRequest:send:" + sender,
				Link:     sender,
			})
		case models.FriendRequestAccepted:
			if _, err := groups.FindDirectGroup(r.Context(), sender, req.Receiver); err != nil {
				log.Warn().Err(err).Str("user", sender).Str("friend", req.Receiver).Msg("create direct group failed")
			}
			notify(r.Context(), noti, services.NotiRequest{
				Username: req.Receiver,
				Icon:     "user",
				Desc:     "friendRequest:accepted:" + sender,
				Link:     sender,
			})
			notify(r.Context(), noti, services.NotiRequest{
				Username: sender,
				Icon:     "user",
				Desc:     "friendRequest:accepted:" + req.Receiver,
				Link:     req.Receiver,
			})
		}

		writeJSON(w, http.StatusOK, map[string]models.FriendRequestResult{"result": result})
	}
}

// RevokeFriendRequest withdraws the caller's outgoing request.
func RevokeFriendRequest(friends FriendRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Receiver string `json:"receiver"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		deleteRequest(w, r, friends, currentUser(r), req.Receiver)
	}
}

// DeclineFriendRequest drops an incoming request.
func DeclineFriendRequest(friends FriendRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Sender string `json:"sender"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		deleteRequest(w, r, friends, req.Sender, currentUser(r))
	}
}

func deleteRequest(w http.ResponseWriter, r *http.Request, friends FriendRepo, sender, receiver string) {
	err := friends.DeleteRequest(r.Context(), sender, receiver)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Friend request deleted"})
}
