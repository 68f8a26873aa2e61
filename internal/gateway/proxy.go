// Package gateway is the stateless entry point that forwards external
// traffic to the backing services by path prefix.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Routes maps a path prefix (e.g. "/orders") to a backend base URL. The
// table is injected from configuration; nothing is compiled in.
type Routes map[string]string

// New builds the gateway handler. Requests under a known prefix stream to
// the mapped backend with method, headers, and body intact (hop-by-hop
// headers stripped by the reverse proxy); anything else is 404. If the
// caller disconnects, the request context cancels the outbound call.
func New(routes Routes, log *zap.Logger) (http.Handler, error) {
	r := mux.NewRouter()

	// Deterministic registration order; mux matches longest-registered-first
	// only within a prefix, so ordering keeps behavior reproducible.
	prefixes := make([]string, 0, len(routes))
	for prefix := range routes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		target, err := url.Parse(routes[prefix])
		if err != nil {
			return nil, fmt.Errorf("parse backend url for %s: %w", prefix, err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("backend url for %s must be absolute, got %q", prefix, routes[prefix])
		}

		r.PathPrefix(prefix).Handler(newBackendProxy(target, log))
	}

	return r, nil
}

// newBackendProxy builds a streaming reverse proxy for one backend. The
// backend's status, headers, and body pass through unmodified; only an
// entirely unreachable backend yields a gateway-level 502.
func newBackendProxy(target *url.URL, log *zap.Logger) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("backend unreachable",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("backend", target.String()),
				zap.Error(err))
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	}
	return proxy
}
