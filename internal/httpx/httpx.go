// Package httpx provides the small pieces of HTTP server scaffolding every
// cmd/* HTTP-facing entrypoint (Ingress, Read API) wires up the same way:
// a middleware chain builder and the /health and /version endpoints.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Middleware matches the signature every function in internal/middleware
// returns.
type Middleware func(http.Handler) http.Handler

// Chain wraps handler with each middleware in order, so Chain(h, A, B)
// serves requests through A(B(h)) — the first middleware listed is the
// outermost.
func Chain(handler http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// HandleHealth reports process liveness. Stages that also depend on the
// store or bus should wrap this with their own readiness check.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// HandleVersion reports the running binary's build metadata.
func HandleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildTime": BuildTime,
	})
}
