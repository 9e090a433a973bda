package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRealClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:52114"
	if got := RealClientIP(req); got != "10.0.0.9" {
		t.Fatalf("expected peer address, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := RealClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}
