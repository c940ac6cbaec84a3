// Package identity carries the authenticated principal through request contexts.
// The principal is supplied by the identity collaborator (via bearer token);
// this core trusts its id and role without re-validating credentials.
package identity

import "context"

// Role is the caller's role as asserted by the identity collaborator.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleSteward       Role = "steward"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   string
	Role Role
}

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// WithPrincipal returns a context carrying the principal.
// Handlers and services read it back via FromContext.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal from ctx and true if set; otherwise a zero
// Principal and false.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
