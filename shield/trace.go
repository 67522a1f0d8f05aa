package shield

import (
	"net/http"

	"github.com/sopify/sopify/idgen"
	"github.com/sopify/sopify/kit"
)

var traceIDGen = idgen.Prefixed("req_", idgen.NanoID(16))

// TraceID assigns each request an id, stores it in the context, and echoes
// it in the X-Request-ID response header. Inbound X-Request-ID values are
// honoured so a caller can correlate across services.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = traceIDGen()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithRequestID(r.Context(), id)
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
