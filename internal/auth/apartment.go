package auth

import "context"

// EnsureApartmentAccess allows admins everywhere and residents only on their
// own apartment.
func EnsureApartmentAccess(ctx context.Context, apartmentID string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if identity.IsAdmin() {
		return nil
	}
	if apartmentID == "" || identity.ApartmentID != apartmentID {
		return ErrForbidden
	}
	return nil
}
