package handlers

import (
	"net/http/httptest"
	"testing"
)

type recordingLimiter struct {
	keys []string
}

func (l *recordingLimiter) Allow(key string) bool {
	l.keys = append(l.keys, key)
	return true
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "peer address", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "forwarded first hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.7"},
		{name: "garbage forwarded falls back", headers: map[string]string{"X-Forwarded-For": "not-an-ip"}, remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "2001:db8::1"}, remote: "10.0.0.1:80", want: "2001:db8::1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("clientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAllowRequestScopesKeys(t *testing.T) {
	limiter := &recordingLimiter{}
	req := httptest.NewRequest("POST", "/generate-video", nil)
	req.RemoteAddr = "192.0.2.1:5555"

	if !allowRequest(limiter, req, "generate") {
		t.Fatal("expected request to be allowed")
	}
	if !allowRequest(nil, req, "generate") {
		t.Fatal("expected nil limiter to allow")
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "generate|192.0.2.1" {
		t.Fatalf("unexpected keys %v", limiter.keys)
	}
}
