package client

import (
	"fmt"
	"net/http"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// classifyStatus maps a non-2xx upstream status to a classified error.
// Rate limits and server errors are retryable; auth and request-shape
// failures abort the stage immediately.
func classifyStatus(status int, service string, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", service, status, truncate(body, 512))
	switch {
	case status == http.StatusTooManyRequests:
		return model.Transient(err)
	case status >= 500:
		return model.Transient(err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.Permanent(err)
	default:
		return model.Permanent(err)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
