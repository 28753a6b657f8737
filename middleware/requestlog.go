package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/blogem/attest-desk/userctx"
)

// RequestLogger logs every request with structured fields once it
// completes.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

// EmployeeID captures the pre-verified caller identity from the
// X-Employee-ID header into the request context. The engine performs no
// authentication; upstream infrastructure verified the value before it
// got here.
func EmployeeID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Employee-ID"); id != "" {
			r = r.WithContext(userctx.SetEmployeeID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
