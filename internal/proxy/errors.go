// SPDX-License-Identifier: MIT

package proxy

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorDetail is the inner error object of the JSON error envelope.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	Usage   string `json:"usage,omitempty"`
	Details any    `json:"details,omitempty"`
}

// errorEnvelope is the JSON body for every 4xx/5xx the proxy emits itself.
type errorEnvelope struct {
	Error     ErrorDetail `json:"error"`
	Success   bool        `json:"success"`
	Timestamp string      `json:"timestamp"`
}

const usageHint = "pass the upstream URL as ?url=, inline in the path, or base64-encoded under /base64/"

// writeError emits the error envelope. Safe to call only before any body
// bytes have been written.
func writeError(w http.ResponseWriter, detail ErrorDetail) {
	if detail.Code == 0 {
		detail.Code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(detail.Code)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error:     detail,
		Success:   false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
