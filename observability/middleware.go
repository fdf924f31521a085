package observability

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Middleware logs and measures every request routed by mux. Requests are
// labelled by route template so path parameters do not explode cardinality.
func Middleware(service string, logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			route := RouteTemplate(r)
			RecordHTTPRequest(service, r.Method, route, m.Code, m.Duration)

			event := logger.Info()
			if m.Code >= 500 {
				event = logger.Error()
			} else if m.Code >= 400 {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", route).
				Int("status", m.Code).
				Dur("duration", m.Duration).
				Int64("bytes", m.Written).
				Str("user", r.Header.Get("X-Username")).
				Msg("http_request")
		})
	}
}

func RouteTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
