package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Middleware authenticates API requests with a bearer JWT and checks the
// caller's role against the policy for the route.
type Middleware struct {
	Secret []byte
	Policy Policy
	// Realm is reported in WWW-Authenticate challenges.
	Realm string
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy, Realm: "water-billing"}
}

// Wrap applies authentication and role checks to next. Routes the policy
// does not cover pass through without an identity.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			m.reject(w, err, "")
			return
		}
		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			m.reject(w, err, "")
			return
		}
		identity := claims.Identity()
		if !RoleAtLeast(identity.Role, required) {
			m.reject(w, ErrForbidden, "role "+string(required)+" required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// reject writes a JSON error. Token problems get a bearer challenge so
// clients can tell a missing token from a bad one.
func (m *Middleware) reject(w http.ResponseWriter, err error, detail string) {
	status := http.StatusUnauthorized
	code := "unauthorized"
	switch {
	case errors.Is(err, ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+m.Realm+`"`)
	default:
		code = "invalid_token"
		if errors.Is(err, ErrMissingApartment) {
			detail = "resident token has no apartment_id"
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+m.Realm+`", error="invalid_token"`)
	}
	body := map[string]string{"error": code}
	if detail != "" {
		body["detail"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// bearerToken returns ErrUnauthorized when no bearer credential is present
// and ErrInvalidToken when the header is malformed.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrUnauthorized
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidToken
	}
	return token, nil
}
