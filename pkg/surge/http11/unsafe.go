package http11

import "unsafe"

// b2s views a byte slice as a string without copying. Parsed request
// fields are views into the incoming buffer, which stays untouched until
// the connection is rearmed for the next request.
func b2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}
