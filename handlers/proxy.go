package handlers

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/rs/zerolog/log"
)

// ProxyTo forwards requests unchanged to target. An unreachable upstream is
// answered with 502 in the usual error shape.
func ProxyTo(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
		r.Header.Set("Referer", "http://gateway")
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("upstream", target.Host).Str("path", r.URL.Path).Msg("proxy failed")
		writeError(w, http.StatusBadGateway, "Upstream unavailable")
	}
	return proxy
}
