package cell

import (
	"time"

	"github.com/google/uuid"
)

// Status reflects current inventory usage. It is derived by the backend and
// read-only for every consumer of this package.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusOccupied  Status = "OCCUPIED"
)

// Coord locates a slot inside a warehouse grid.
type Coord struct {
	Row      string `json:"row"`
	Bay      int    `json:"bay"`
	Position int    `json:"position"`
}

// Cell is a single storage slot. Exactly one Cell exists per
// (warehouse_id, row, bay, position).
type Cell struct {
	ID           uuid.UUID `json:"id"`
	WarehouseID  uuid.UUID `json:"warehouse_id"`
	Row          string    `json:"row"`
	Bay          int       `json:"bay"`
	Position     int       `json:"position"`
	IsPassage    bool      `json:"is_passage"`
	Role         Role      `json:"cell_role,omitempty"`
	Status       Status    `json:"status"`
	Capacity     int       `json:"capacity"`
	CurrentUsage int       `json:"currentUsage"`
}

// Coord returns the grid coordinate of c.
func (c Cell) Coord() Coord {
	return Coord{Row: c.Row, Bay: c.Bay, Position: c.Position}
}

// EffectiveRole returns the cell role, defaulting to STANDARD when unset.
func (c Cell) EffectiveRole() Role {
	if c.Role == "" {
		return RoleStandard
	}
	return c.Role
}

// Occupied reports whether the cell currently holds any units.
func (c Cell) Occupied() bool {
	return c.CurrentUsage > 0 || c.Status == StatusOccupied
}

// StatusFor derives the status the backend reports for a usage figure.
func StatusFor(currentUsage int) Status {
	if currentUsage > 0 {
		return StatusOccupied
	}
	return StatusAvailable
}

// UserSnapshot is the acting principal as it was when a change was written.
type UserSnapshot struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	RoleName    string `json:"role_name"`
}

// RoleChangeRecord is an immutable audit entry for one role transition.
// OldRole is nil only for the first assignment of a cell.
type RoleChangeRecord struct {
	ChangeID  uuid.UUID    `json:"change_id"`
	CellID    uuid.UUID    `json:"cell_id"`
	OldRole   *Role        `json:"old_role"`
	NewRole   Role         `json:"new_role"`
	Reason    string       `json:"reason"`
	ChangedAt time.Time    `json:"changed_at"`
	User      UserSnapshot `json:"user"`
}

// ChangeRoleRequest is the body of a role change.
type ChangeRoleRequest struct {
	NewRole Role   `json:"new_role"`
	Reason  string `json:"reason"`
}

// ChangeRoleResult is the backend acknowledgement of a role change. Cell
// carries the persisted state, which is what callers patch into caches.
type ChangeRoleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Cell    *Cell  `json:"cell,omitempty"`
}
