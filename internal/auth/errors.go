package auth

import "errors"

var (
	// ErrUnauthorized means no identity is attached to the request.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden means the identity's role or apartment does not cover the resource.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidToken wraps every bearer token rejection.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingApartment is a resident token without an apartment_id claim.
	// It is always reported together with ErrInvalidToken.
	ErrMissingApartment = errors.New("auth: resident token has no apartment")
)

// tokenError reports a rejected token as ErrInvalidToken plus the cause.
func tokenError(cause error) error {
	return errors.Join(ErrInvalidToken, cause)
}
