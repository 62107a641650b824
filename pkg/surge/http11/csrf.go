package http11

import "strings"

// PreventCSRF rejects cross-origin requests, preferring the
// Sec-Fetch-Site header and falling back to an Origin/Host comparison.
// On mismatch a 403 is sent and false returned. Requests carrying neither
// header (curl, server-to-server) pass.
func PreventCSRF(io *IO) bool {
	request := &io.Request

	if sec := request.GetHeaderValue("Sec-Fetch-Site"); sec != "" {
		if sec != "same-origin" && sec != "none" {
			io.settings.logger().Warn("Denying cross-origin request (Sec-Fetch-Site)")
			io.SendError(403, "")
			return false
		}

		return true
	}

	host := request.GetHeaderValue("Host")
	origin := request.GetHeaderValue("Origin")

	if host != "" && origin != "" {
		origin = strings.TrimPrefix(origin, "https://")
		origin = strings.TrimPrefix(origin, "http://")

		if origin != host {
			io.settings.logger().Warn("Denying cross-origin request (Origin)")
			io.SendError(403, "")
			return false
		}

		return true
	}

	// Assume direct use of the API without a browser
	return true
}
