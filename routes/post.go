package routes

import (
	"github.com/gorilla/mux"

	"furbook.app/petpals/handlers"
)

func CreatePostRoutes(d handlers.PostDeps, router *mux.Router) *mux.Router {
	router.HandleFunc("/api/post/lost", handlers.GetLostPosts(d)).Methods("GET")
	router.Handle("/api/post/lost", user(handlers.CreateLostPost(d))).Methods("POST")
	router.Handle("/api/post/blog", user(handlers.CreateBlogPost(d))).Methods("POST")
	router.HandleFunc("/api/post/ofUser/{username}", handlers.GetPostsOfUser(d)).Methods("GET")
	router.HandleFunc("/api/post/ofUser/{username}/participated", handlers.GetParticipatedPosts(d)).Methods("GET")
	router.HandleFunc("/api/post/ofUsers", handlers.GetFeed(d)).Methods("POST")
	router.Handle("/api/post", user(handlers.DeletePost(d))).Methods("DELETE")

	router.HandleFunc("/api/post/{id}", handlers.GetPost(d)).Methods("GET")
	router.Handle("/api/post/{id}/content", user(handlers.UpdatePostContent(d))).Methods("PATCH")
	router.Handle("/api/post/{id}/lostFoundStatus", user(handlers.UpdateLostFoundStatus(d))).Methods("PATCH")

	router.HandleFunc("/api/post/{id}/comments", handlers.GetComments(d)).Methods("GET")
	router.Handle("/api/post/{id}/comments", user(handlers.CreateComment(d))).Methods("POST")
	router.Handle("/api/post/{id}/comments", user(handlers.DeleteComments(d))).Methods("DELETE")
	router.Handle("/api/post/{id}/interactions", user(handlers.SetInteraction(d))).Methods("POST")
	router.Handle("/api/post/{id}/interactions", user(handlers.DeleteInteraction(d))).Methods("DELETE")
	router.Handle("/api/post/{id}/participation", user(handlers.Participation(d, true))).Methods("POST")
	router.Handle("/api/post/{id}/participation", user(handlers.Participation(d, false))).Methods("DELETE")

	return router
}
