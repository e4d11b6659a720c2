// Package auth carries the acting user through the client and the server.
package auth

import (
	"context"

	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

// Role is the capability level of a principal.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Principal is the authenticated user.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal may change cell roles.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Snapshot is the denormalized form stored on history records.
func (p Principal) Snapshot() cell.UserSnapshot {
	return cell.UserSnapshot{ID: p.ID, DisplayName: p.Name, RoleName: string(p.Role)}
}

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext returns the principal attached by Middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
