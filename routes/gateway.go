package routes

import (
	"fmt"
	"net/http"
	"net/url"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"furbook.app/petpals/handlers"
	"furbook.app/petpals/hub"
)

// Upstreams maps every proxied path prefix to its service.
type Upstreams struct {
	User    string
	Post    string
	Message string
	Noti    string
}

func (u Upstreams) targets() (map[string]*url.URL, error) {
	raw := map[string]string{
		"/api/user":    u.User,
		"/api/post":    u.Post,
		"/api/group":   u.Message,
		"/api/message": u.Message,
		"/api/noti":    u.Noti,
	}
	out := make(map[string]*url.URL, len(raw))
	for prefix, addr := range raw {
		target, err := url.Parse(addr)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid upstream %q for %s", addr, prefix)
		}
		out[prefix] = target
	}
	return out, nil
}

type GatewayDeps struct {
	Creds     handlers.CredentialRepo
	Users     handlers.UserDirectory
	Tokens    handlers.TokenService
	Hub       *hub.Hub
	Upstreams Upstreams
}

// CreateGatewayRoutes mounts auth, the WebSocket endpoint and the service
// proxies. Proxied requests pass through the identity middleware first.
func CreateGatewayRoutes(d GatewayDeps, router *mux.Router) (*mux.Router, error) {
	targets, err := d.Upstreams.targets()
	if err != nil {
		return nil, err
	}

	router.HandleFunc("/api/auth/exists/{username}", handlers.UsernameExists(d.Creds)).Methods("GET")
	router.HandleFunc("/api/auth/signup", handlers.Signup(d.Creds, d.Users)).Methods("POST")
	router.HandleFunc("/api/auth/login", handlers.Login(d.Creds, d.Users, d.Tokens)).Methods("POST")
	router.HandleFunc("/api/auth/check", handlers.CheckAuth(d.Users, d.Tokens)).Methods("GET")
	router.HandleFunc("/ws", d.Hub.ServeWS(d.Tokens)).Methods("GET")

	identity := handlers.Identity(d.Tokens)
	for prefix, target := range targets {
		proxy := identity(handlers.ProxyTo(target))
		router.Handle(prefix, proxy)
		router.PathPrefix(prefix + "/").Handler(proxy)
	}
	return router, nil
}

// CreateInternalRoutes mounts the push endpoints the services call. They
// live on a separate listener that is never exposed to clients.
func CreateInternalRoutes(h *hub.Hub, router *mux.Router) *mux.Router {
	router.Handle("/ws/message", user(handlers.PushMessage(h))).Methods("POST")
	router.HandleFunc("/ws/noti", handlers.PushNoti(h)).Methods("POST")
	return router
}

// WithGatewayMiddleware adds CORS and panic recovery around the public
// gateway router.
func WithGatewayMiddleware(router http.Handler, origins []string) http.Handler {
	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gorillahandlers.AllowCredentials(),
	)
	recovery := gorillahandlers.RecoveryHandler(gorillahandlers.PrintRecoveryStack(true))
	return recovery(cors(router))
}
