// Package requestctx carries the authenticated caller through request context.
package requestctx

import "context"

// Role is the caller's authorization tier.
type Role string

const (
	// RoleDelegate is a regular conference member who may submit petitions.
	RoleDelegate Role = "delegate"
	// RoleStaff is a conference secretariat operator.
	RoleStaff Role = "staff"
	// RoleAdmin is a system administrator.
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller resolved by the auth layer.
type Identity struct {
	// UserID identifies the caller.
	UserID string
	// Role is the caller's authorization tier.
	Role Role
	// CommitteeIDs lists committees the caller belongs to.
	CommitteeIDs []string
}

// IsStaff reports whether the identity holds staff-tier or higher privileges.
func (i Identity) IsStaff() bool {
	return i.Role == RoleStaff || i.Role == RoleAdmin
}

// IsAdmin reports whether the identity holds administrator privileges.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// MemberOf reports whether the identity belongs to the given committee.
func (i Identity) MemberOf(committeeID string) bool {
	for _, member := range i.CommitteeIDs {
		if member == committeeID {
			return true
		}
	}
	return false
}

// identityContextKey is the context key for authenticated caller identity.
type identityContextKey struct{}

// WithIdentity stores a caller identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the caller identity stored in context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	value, ok := ctx.Value(identityContextKey{}).(Identity)
	return value, ok
}
