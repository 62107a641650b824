package http11

import (
	"strings"
	"testing"
)

func TestPreventCSRF(t *testing.T) {
	tests := []struct {
		name    string
		headers string
		allowed bool
	}{
		{"no hints", "Host: app.example.com\r\n", true},
		{"same origin fetch", "Sec-Fetch-Site: same-origin\r\n", true},
		{"direct navigation", "Sec-Fetch-Site: none\r\n", true},
		{"cross site fetch", "Sec-Fetch-Site: cross-site\r\n", false},
		{"matching origin", "Host: app.example.com\r\nOrigin: https://app.example.com\r\n", true},
		{"matching plain origin", "Host: app.example.com\r\nOrigin: http://app.example.com\r\n", true},
		{"foreign origin", "Host: app.example.com\r\nOrigin: https://evil.example.net\r\n", false},
		{"fetch header beats origin", "Host: a\r\nOrigin: https://b\r\nSec-Fetch-Site: same-origin\r\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, peer := newConnectedIO(t, nil)

			feed(c, "POST /api HTTP/1.1\r\n"+tt.headers+"\r\n")

			allowed := PreventCSRF(c)
			if allowed != tt.allowed {
				t.Fatalf("allowed = %v, want %v", allowed, tt.allowed)
			}

			response := collectResponse(t, c, peer)
			if !allowed && !strings.HasPrefix(response, "HTTP/1.1 403 Forbidden\r\n") {
				t.Errorf("rejection response begins %q", response)
			}
			if allowed && response != "" {
				t.Errorf("allowed request wrote %q", response)
			}
		})
	}
}
