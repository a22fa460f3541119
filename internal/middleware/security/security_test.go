package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientIP(t *testing.T) {
	g, err := NewGuard("203.0.113.0/24")
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores headers", "198.51.100.7:5000", "1.1.1.1", "", "198.51.100.7"},
		{"trusted proxy forwards first hop", "10.0.0.2:5000", "1.1.1.1, 10.0.0.3", "", "1.1.1.1"},
		{"extra trusted network", "203.0.113.9:80", "8.8.8.8", "", "8.8.8.8"},
		{"invalid forwarded falls back to real ip", "127.0.0.1:80", "garbage", "9.9.9.9", "9.9.9.9"},
		{"nothing forwarded", "192.168.1.10:80", "", "", "192.168.1.10"},
		{"unparseable remote addr", "not-an-addr", "1.1.1.1", "", "not-an-addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := g.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := NewGuard("not-a-cidr"); err == nil {
		t.Error("expected error for invalid CIDR")
	}
}

func TestIsProbe(t *testing.T) {
	tests := []struct {
		method string
		target string
		agent  string
		want   bool
	}{
		{http.MethodGet, "/api/summary", "Mozilla/5.0", false},
		{http.MethodGet, "/api/forecast?history=6&future=3", "curl/8.0", false},
		{http.MethodGet, "/.env", "", true},
		{http.MethodGet, "/api/transactions?q=1%20union%20select", "", true},
		{http.MethodGet, "/", "sqlmap/1.7", true},
		{"TRACE", "/", "", true},
		{http.MethodGet, "/api/" + strings.Repeat("a", maxURLLength), "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		r.Header.Set("User-Agent", tt.agent)
		if got := IsProbe(r); got != tt.want {
			t.Errorf("IsProbe(%s %s, %q) = %v, want %v", tt.method, tt.target, tt.agent, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	g, _ := NewGuard()
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("missing API headers: %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("probe status = %d, want 400", rec.Code)
	}
	if g.Blocked() != 1 {
		t.Errorf("Blocked() = %d, want 1", g.Blocked())
	}
}
