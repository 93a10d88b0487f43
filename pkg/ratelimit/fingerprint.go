package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// Fingerprint buckets a client by IP plus a 32-bit hash of its
// user-agent, so distinct clients behind one NAT do not share a bucket.
// The hash is for bucketing, not security; collisions are acceptable.
func Fingerprint(ip, userAgent string) string {
	if userAgent == "" {
		userAgent = "unknown"
	}
	return ip + "_" + strconv.FormatInt(hashAgent(userAgent), 10)
}

// hashAgent is a rolling hash folded to a non-negative 32-bit value.
func hashAgent(s string) int64 {
	var h int32
	for _, r := range s {
		h = (h << 5) - h + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// ClientIP extracts the originating client address, preferring proxy
// headers over the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
