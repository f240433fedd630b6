package http

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods  = "GET, POST, DELETE, OPTIONS"
	corsDefaultHeader = "Content-Type, X-Request-ID"
	corsMaxAge        = "600"
)

// cors answers preflight requests and stamps allowed origins on responses.
// "*" allows every origin; the request origin is echoed so that
// credentialed requests keep working.
type cors struct {
	anyOrigin bool
	origins   map[string]bool
}

func newCORS(origins []string) *cors {
	c := &cors{origins: make(map[string]bool)}
	if len(origins) == 0 {
		c.anyOrigin = true
	}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			c.anyOrigin = true
			continue
		}
		if o != "" {
			c.origins[o] = true
		}
	}
	return c
}

func (c *cors) allowed(origin string) bool {
	return c.anyOrigin || c.origins[origin]
}

func (c *cors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		h.Add("Vary", "Origin")

		if origin != "" && c.allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")
		}

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if origin != "" && c.allowed(origin) {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			allowHeaders := r.Header.Get("Access-Control-Request-Headers")
			if allowHeaders == "" {
				allowHeaders = corsDefaultHeader
			}
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
