package audit

import (
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"water-billing/internal/auth"
)

// userAgentLimit bounds the stored User-Agent.
const userAgentLimit = 256

// FromRequest builds an entry for a state-changing call, taking the actor from
// the request identity.
func FromRequest(r *http.Request, action, resourceType, resourceID, apartmentID string, metadata any) Entry {
	identity, _ := auth.IdentityFromContext(r.Context())
	var raw json.RawMessage
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			raw = data
		}
	}
	userAgent := r.UserAgent()
	if len(userAgent) > userAgentLimit {
		userAgent = userAgent[:userAgentLimit]
	}
	return Entry{
		Actor:        identity.UserID,
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ApartmentID:  apartmentID,
		Metadata:     raw,
		IP:           ClientIP(r),
		UserAgent:    userAgent,
	}
}

// ClientIP returns the first parseable address from X-Forwarded-For, then
// X-Real-IP, then the connection peer. Garbage header values are skipped so
// the audit row never stores an arbitrary string as an address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, ok := parseAddr(candidate); ok {
			return addr
		}
	}
	if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return addr
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if addr, ok := parseAddr(host); ok {
		return addr
	}
	return ""
}

// parseAddr accepts a bare address or host:port and returns the canonical
// address with any IPv4-in-IPv6 mapping removed.
func parseAddr(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if addrPort, err := netip.ParseAddrPort(value); err == nil {
		return addrPort.Addr().Unmap().String(), true
	}
	addr, err := netip.ParseAddr(strings.Trim(value, "[]"))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
