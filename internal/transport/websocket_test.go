package transport

import (
	"net/http"
	"testing"
)

func TestOriginChecker_Wildcard(t *testing.T) {
	check := originChecker([]string{"*"})
	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	if !check(req) {
		t.Error("wildcard should allow any origin")
	}
}

func TestOriginChecker_Allowlist(t *testing.T) {
	check := originChecker([]string{"https://console.example.com"})

	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://console.example.com")
	if !check(req) {
		t.Error("listed origin should be allowed")
	}

	req.Header.Set("Origin", "https://evil.example.com")
	if check(req) {
		t.Error("unlisted origin should be rejected")
	}
}

func TestOriginChecker_NoOriginHeader(t *testing.T) {
	check := originChecker([]string{"https://console.example.com"})
	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	if !check(req) {
		t.Error("non-browser clients without Origin should be allowed")
	}
}

func TestGenerateClientID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateClientID()
		if seen[id] {
			t.Fatalf("duplicate client id %s", id)
		}
		seen[id] = true
	}
}
