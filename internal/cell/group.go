package cell

import "github.com/google/uuid"

// RoleGroup holds the cells sharing one role. Count always equals len(Cells).
type RoleGroup struct {
	Count int    `json:"count"`
	Cells []Cell `json:"cells"`
}

// GroupByRole buckets non-passage cells by effective role. Passage cells
// have no role and are left out.
func GroupByRole(cells []Cell) map[Role]RoleGroup {
	groups := make(map[Role]RoleGroup)
	for _, c := range cells {
		if c.IsPassage {
			continue
		}
		role := c.EffectiveRole()
		g := groups[role]
		g.Cells = append(g.Cells, c)
		g.Count = len(g.Cells)
		groups[role] = g
	}
	return groups
}

// FilterWarehouse returns the cells that belong to warehouseID, preserving order.
func FilterWarehouse(cells []Cell, warehouseID uuid.UUID) []Cell {
	var out []Cell
	for _, c := range cells {
		if c.WarehouseID == warehouseID {
			out = append(out, c)
		}
	}
	return out
}
