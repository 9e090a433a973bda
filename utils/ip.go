package utils

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP prefers the first hop recorded by proxies in front of the
// server and falls back to the socket peer.
func RealClientIP(r *http.Request) string {
	if xfwd := r.Header.Get("X-Forwarded-For"); xfwd != "" {
		first, _, _ := strings.Cut(xfwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
