package routes

import (
	"github.com/gorilla/mux"

	"furbook.app/petpals/handlers"
)

func CreateNotiRoutes(d handlers.NotiDeps, router *mux.Router) *mux.Router {
	api := router.PathPrefix("/api/noti").Subrouter()
	api.Use(handlers.RequireUser)

	api.HandleFunc("/unread-count", handlers.GetUnreadCount(d)).Methods("GET")
	api.HandleFunc("/read-all", handlers.MarkAllNotifications(d)).Methods("PATCH")
	api.HandleFunc("/devices", handlers.RegisterDevice(d)).Methods("POST")
	api.HandleFunc("/devices", handlers.RemoveDevice(d)).Methods("DELETE")
	api.Handle("/createMultiple", system(handlers.CreateNotifications(d))).Methods("POST")
	api.Handle("", system(handlers.CreateNotification(d))).Methods("POST")
	api.HandleFunc("", handlers.GetNotifications(d)).Methods("GET")
	api.HandleFunc("/{id:[0-9]+}", handlers.GetNotification(d)).Methods("GET")
	api.HandleFunc("/{id:[0-9]+}", handlers.MarkNotification(d)).Methods("PATCH")
	api.HandleFunc("/{id:[0-9]+}", handlers.DeleteNotification(d)).Methods("DELETE")

	return router
}
