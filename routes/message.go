package routes

import (
	"github.com/gorilla/mux"

	"furbook.app/petpals/handlers"
)

// CreateMessageRoutes mounts the group and message routes. Every one of them
// needs a user.
func CreateMessageRoutes(d handlers.MessageDeps, router *mux.Router) *mux.Router {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(handlers.RequireUser)

	api.HandleFunc("/group", handlers.GetGroups(d)).Methods("GET")
	api.HandleFunc("/group", handlers.CreateGroup(d)).Methods("POST")
	api.HandleFunc("/group/direct/{username}", handlers.GetDirectGroup(d)).Methods("GET")
	api.HandleFunc("/group/{groupId:[0-9]+}", handlers.GetGroup(d)).Methods("GET")
	api.HandleFunc("/group/{groupId:[0-9]+}", handlers.RenameGroup(d)).Methods("PUT")
	api.HandleFunc("/group/{groupId:[0-9]+}", handlers.DeleteGroup(d)).Methods("DELETE")
	api.HandleFunc("/group/{groupId:[0-9]+}/members", handlers.GetGroupMembers(d)).Methods("GET")
	api.HandleFunc("/group/{groupId:[0-9]+}/members", handlers.AddGroupMember(d)).Methods("POST")
	api.HandleFunc("/group/{groupId:[0-9]+}/members", handlers.RemoveGroupMember(d)).Methods("DELETE")

	api.HandleFunc("/message/group/{groupId:[0-9]+}", handlers.GetGroupMessages(d)).Methods("GET")
	api.HandleFunc("/message/group/{groupId:[0-9]+}", handlers.SendGroupMessage(d)).Methods("POST")
	api.HandleFunc("/message/direct", handlers.GetDirectMessages(d)).Methods("GET")
	api.HandleFunc("/message/direct", handlers.SendDirectMessage(d)).Methods("POST")

	return router
}
