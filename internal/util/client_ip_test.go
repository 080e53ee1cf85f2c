package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPUntrustedPeerIgnoresForwarded(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:4242"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	if got := ClientIP(r, nil); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want 203.0.113.7", got)
	}
}

func TestClientIPTrustedPeerUsesForwarded(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("NewTrustedProxies: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.2.3:9090"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.1.2.4")

	if got := ClientIP(r, trusted); got != "198.51.100.1" {
		t.Fatalf("ClientIP = %q, want 198.51.100.1", got)
	}
}

func TestClientIPTrustedPeerFallsBackToRealIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.1.2.3"})
	if err != nil {
		t.Fatalf("NewTrustedProxies: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.2.3:9090"
	r.Header.Set("X-Real-IP", "192.0.2.9")

	if got := ClientIP(r, trusted); got != "192.0.2.9" {
		t.Fatalf("ClientIP = %q, want 192.0.2.9", got)
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected error for invalid entry")
	}
}
