// SPDX-License-Identifier: MIT

package log

import (
	"net/http"
	"time"
)

// accessWriter captures status code and bytes written for access logging.
type accessWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *accessWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *accessWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns an HTTP middleware that emits one access-log entry per
// request, enriched with the request ID from context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			aw := &accessWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(aw, r)

			l := WithContext(r.Context(), WithComponent("http"))
			l.Info().
				Str(FieldMethod, r.Method).
				Str(FieldPath, r.URL.Path).
				Int(FieldStatus, aw.status).
				Int64(FieldDuration, time.Since(start).Milliseconds()).
				Int64(FieldBytes, aw.bytes).
				Str("remote", r.RemoteAddr).
				Msg("request completed")
		})
	}
}
