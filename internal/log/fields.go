// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldComponent = "component"

	// Exchange fields
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldBytes    = "bytes"

	// Upstream fields
	FieldTargetURL  = "target_url"
	FieldTargetHost = "target_host"
	FieldEncoding   = "encoding"

	// Cache fields
	FieldCacheKey    = "cache_key"
	FieldCacheResult = "cache_result"
)
