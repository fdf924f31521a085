package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"furbook.app/petpals/handlers"
	"furbook.app/petpals/observability"
)

// NewServiceRouter returns a router carrying request logging, metrics and a
// health check. Service routes are added on top.
func NewServiceRouter(service string, logger zerolog.Logger) *mux.Router {
	observability.RegisterMetrics()

	router := mux.NewRouter()
	router.Use(observability.Middleware(service, logger))
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Not found"}`))
	})
	return router
}

func user(h http.HandlerFunc) http.Handler {
	return handlers.RequireUser(h)
}

func system(h http.HandlerFunc) http.Handler {
	return handlers.RequireSystem(h)
}
