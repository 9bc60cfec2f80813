package gateway

import "net/http"

// corsPolicy implements the browser-facing cross-origin policy: requests
// from a recognized frontend get their own origin echoed back, anything
// else gets the configured fallback origin. Unknown callers are never
// rejected outright; the browser enforces the mismatch.
type corsPolicy struct {
	allowed  map[string]bool
	fallback string
}

func newCORSPolicy(origins []string) *corsPolicy {
	p := &corsPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		p.allowed[o] = true
	}
	if len(origins) > 0 {
		p.fallback = origins[0]
	}
	return p
}

// allowOrigin returns the origin to echo back for a caller origin.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.allowed[origin] {
		return origin
	}
	return p.fallback
}

// setHeaders writes the CORS headers for the request's origin.
func (p *corsPolicy) setHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", p.allowOrigin(r.Header.Get("Origin")))
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "86400")
}

// middleware attaches CORS headers to every response and short-circuits
// preflight requests with 204 before any routing or upstream work, on any
// path, valid or not.
func (p *corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.setHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
