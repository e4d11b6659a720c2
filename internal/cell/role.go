package cell

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the quality/purpose classification of a cell.
type Role string

const (
	RoleStandard Role = "STANDARD"
	RoleDamaged  Role = "DAMAGED"
	RoleExpired  Role = "EXPIRED"
	RoleRejected Role = "REJECTED"
	RoleSamples  Role = "SAMPLES"
	RoleReturns  Role = "RETURNS"
)

var allRoles = []Role{RoleStandard, RoleDamaged, RoleExpired, RoleRejected, RoleSamples, RoleReturns}

// Roles returns the enumeration in catalog order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether r is a member of the enumeration.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// RoleCatalogEntry describes one valid role value for display.
type RoleCatalogEntry struct {
	Value       Role   `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// DefaultCatalog is the catalog served by the backend.
func DefaultCatalog() []RoleCatalogEntry {
	return []RoleCatalogEntry{
		{Value: RoleStandard, Label: "Standard", Description: "Regular storage for saleable stock"},
		{Value: RoleDamaged, Label: "Damaged", Description: "Goods with physical damage awaiting assessment"},
		{Value: RoleExpired, Label: "Expired", Description: "Goods past their expiry date"},
		{Value: RoleRejected, Label: "Rejected", Description: "Goods rejected at quality inspection"},
		{Value: RoleSamples, Label: "Samples", Description: "Samples held for analysis or display"},
		{Value: RoleReturns, Label: "Returns", Description: "Customer returns pending processing"},
	}
}

// CatalogHas reports whether role is listed in catalog.
func CatalogHas(catalog []RoleCatalogEntry, role Role) bool {
	for _, e := range catalog {
		if e.Value == role {
			return true
		}
	}
	return false
}

// Validation errors for a role change.
var (
	ErrPassageCell    = errors.New("cell is a passage and has no role")
	ErrUnknownRole    = errors.New("unknown cell role")
	ErrRoleUnchanged  = errors.New("new role must differ from the current role")
	ErrReasonRequired = errors.New("a reason is required")
)

// ValidateRoleChange checks the preconditions shared by every role change.
func ValidateRoleChange(c Cell, newRole Role, reason string) error {
	if c.IsPassage {
		return ErrPassageCell
	}
	if !newRole.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, newRole)
	}
	if newRole == c.EffectiveRole() {
		return ErrRoleUnchanged
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	return nil
}
