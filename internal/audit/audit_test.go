package audit

import (
	"context"
	"net/http/httptest"
	"testing"

	"water-billing/internal/auth"
)

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/payments/pay-1/pay", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
	req = req.WithContext(auth.WithIdentity(context.Background(), auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}))

	entry := FromRequest(req, "payment.mark_paid", "payment", "pay-1", "apt-3", map[string]string{"paid_date": "2026-04-02"})
	if entry.Actor != "admin-1" || entry.Role != "admin" || entry.IP != "10.0.0.7" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if string(entry.Metadata) != `{"paid_date":"2026-04-02"}` {
		t.Fatalf("unexpected metadata: %s", entry.Metadata)
	}
	if DigestJSON(entry.Metadata) == "" || DigestJSON(nil) != "" {
		t.Fatalf("digest mismatch")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"first forwarded", "10.0.0.7, 10.0.0.1", "", "192.0.2.1:5000", "10.0.0.7"},
		{"skips garbage", "unknown, not-an-ip, 203.0.113.9", "", "192.0.2.1:5000", "203.0.113.9"},
		{"forwarded with port", "198.51.100.4:8443", "", "192.0.2.1:5000", "198.51.100.4"},
		{"real ip fallback", "junk", "2001:db8::1", "192.0.2.1:5000", "2001:db8::1"},
		{"peer address", "", "", "[::ffff:192.0.2.5]:5000", "192.0.2.5"},
		{"nothing usable", "x", "y", "pipe", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/healthz", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(req); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
