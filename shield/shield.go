// Package shield provides the reusable HTTP middleware for the SOPify API:
// security headers, permissive CORS for the extension and web frontend,
// request body caps, and per-request trace IDs.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack() {
//	    r.Use(mw)
//	}
package shield

import "net/http"

// MaxBodyBytes is the default request body cap. The extension posts SOPs
// whose steps embed base64 screenshots, so the cap is deliberately large.
const MaxBodyBytes int64 = 50 << 20

// DefaultStack returns the standard middleware stack for the API service.
// Ordered: SecurityHeaders → CORS → MaxBody → TraceID.
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		CORS(),
		MaxBody(MaxBodyBytes),
		TraceID,
	}
}
