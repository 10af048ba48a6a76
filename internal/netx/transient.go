// Package netx classifies transport failures so the HTTP transport and
// the facade's IsNetworkingError know which ones are worth retrying.
package netx

import "strings"

// transientSubstrings lists error-message fragments that indicate a
// transient networking problem rather than a permanent one. Matching is
// substring-based because the underlying transport (net/http, the
// websocket dialer, proxy layers) does not expose a stable typed error for
// most of these conditions.
var transientSubstrings = []string{
	"Host not found",
	"Cannot upgrade to WebSocket connection",
	"No message received",
	"Connection refused",
	"Connection timed out",
	"connect timed out",
	"SSL connection unexpectedly closed",
	"Network is down",
}

// IsTransient reports whether msg describes a transient networking failure,
// as opposed to e.g. a validation or programming error. A nil-safe helper
// for the common case of classifying err.Error().
func IsTransient(msg string) bool {
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsNetworkingError classifies err the same way IsTransient classifies a
// message string. A nil error is never a networking error.
func IsNetworkingError(err error) bool {
	if err == nil {
		return false
	}
	return IsTransient(err.Error())
}
