// Package rbac enforces the two-role access model on request contexts.
package rbac

import (
	"context"
	"errors"

	"indicator-reporting/backend/internal/identity"
)

var (
	// ErrUnauthenticated means no principal is present on the context.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrPermissionDenied means the principal's role does not allow the call.
	ErrPermissionDenied = errors.New("permission denied")
)

// RequireAdministrator returns the calling principal when it holds the
// administrator role. Used by the manual reconciliation trigger.
func RequireAdministrator(ctx context.Context) (identity.Principal, error) {
	p, ok := identity.FromContext(ctx)
	if !ok || p.ID == "" {
		return identity.Principal{}, ErrUnauthenticated
	}
	if p.Role != identity.RoleAdministrator {
		return identity.Principal{}, ErrPermissionDenied
	}
	return p, nil
}

// RequireSteward returns the calling principal when it holds at least the
// steward role. Administrators pass too.
func RequireSteward(ctx context.Context) (identity.Principal, error) {
	p, ok := identity.FromContext(ctx)
	if !ok || p.ID == "" {
		return identity.Principal{}, ErrUnauthenticated
	}
	if p.Role != identity.RoleSteward && p.Role != identity.RoleAdministrator {
		return identity.Principal{}, ErrPermissionDenied
	}
	return p, nil
}
