package routes

import (
	"github.com/gorilla/mux"

	"furbook.app/petpals/handlers"
)

func CreateUserRoutes(users handlers.UserRepo, friends handlers.FriendRepo, groups handlers.DirectGroupFinder, noti handlers.Notifier, router *mux.Router) *mux.Router {
	router.HandleFunc("/api/user/search", handlers.SearchUsers(users)).Methods("GET")
	router.HandleFunc("/api/user/list", handlers.ListUsers(users)).Methods("POST")

	router.Handle("/api/user/friends", user(handlers.GetFriends(friends, groups))).Methods("GET")
	router.Handle("/api/user/friends", user(handlers.RemoveFriend(friends))).Methods("DELETE")
	router.Handle("/api/user/check-friendship/{username}", user(handlers.CheckFriendship(friends))).Methods("GET")
	router.Handle("/api/user/friend-requests", user(handlers.GetFriendRequests(friends))).Methods("GET")
	router.Handle("/api/user/friend-requests", user(handlers.SendFriendRequest(users, friends, groups, noti))).Methods("POST")
	router.Handle("/api/user/friend-requests/revoke", user(handlers.RevokeFriendRequest(friends))).Methods("DELETE")
	router.Handle("/api/user/friend-requests/decline", user(handlers.DeclineFriendRequest(friends))).Methods("DELETE")

	router.Handle("/api/user", system(handlers.CreateUser(users))).Methods("POST")
	router.Handle("/api/user", user(handlers.UpdateUser(users))).Methods("PATCH")
	router.Handle("/api/user", user(handlers.DeleteUser(users))).Methods("DELETE")
	router.HandleFunc("/api/user/{username}", handlers.GetUser(users)).Methods("GET")

	return router
}
