// SPDX-License-Identifier: MIT

package proxy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hlsgate/hlsgate/internal/admission"
)

// HandleQuery serves requests carrying the target in the ?url= parameter.
func (s *Server) HandleQuery(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, ErrorDetail{
			Code:    http.StatusBadRequest,
			Message: "missing url parameter",
			Usage:   usageHint,
		})
		return
	}
	s.proxy(w, r, raw)
}

// HandleInline serves requests with the target inline in the path, with
// "https://" prepended when the scheme is absent.
func (s *Server) HandleInline(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")
	if raw == "" {
		raw = r.URL.Path
	}
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	s.proxy(w, r, admission.NormalizeInline(raw))
}

// HandleBase64 serves requests with a base64-encoded target in the path.
func (s *Server) HandleBase64(w http.ResponseWriter, r *http.Request) {
	encoded := chi.URLParam(r, "encodedUrl")
	decoded, err := admission.DecodeBase64(encoded)
	if err != nil {
		writeError(w, ErrorDetail{
			Code:    http.StatusBadRequest,
			Message: "invalid base64-encoded URL",
			Usage:   usageHint,
		})
		return
	}
	s.proxy(w, r, decoded)
}
