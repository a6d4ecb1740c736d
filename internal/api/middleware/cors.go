// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"
)

const httprateWindow = time.Minute

// CORS opens the proxy to browser players: any origin, the full method
// set, Range among the allowed request headers, and the media framing
// headers exposed to scripts.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range, Origin, Accept")
		h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Type, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
