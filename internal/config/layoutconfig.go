package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

// RowLayout describes one row of a warehouse seed. Every bay has the same
// number of positions. A passage row has no storage cells at all.
type RowLayout struct {
	Label       string    `json:"label"`
	Bays        int       `json:"bays"`
	Positions   int       `json:"positions"`
	Capacity    int       `json:"capacity"`
	Role        cell.Role `json:"role,omitempty"`
	Passage     bool      `json:"passage,omitempty"`
	PassageBays []int     `json:"passage_bays,omitempty"`
}

// WarehouseLayout is the seed for one warehouse.
type WarehouseLayout struct {
	ID   uuid.UUID   `json:"id"`
	Name string      `json:"name"`
	Rows []RowLayout `json:"rows"`
}

// LayoutConfig holds the warehouses provisioned at startup.
type LayoutConfig struct {
	Warehouses []WarehouseLayout `json:"warehouses"`
}

// LoadLayoutConfig reads and validates a JSON layout seed file.
func LoadLayoutConfig(path string) (*LayoutConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout config: %w", err)
	}

	var cfg LayoutConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse layout config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the seed expands to a consistent set of cells.
func (c *LayoutConfig) Validate() error {
	if len(c.Warehouses) == 0 {
		return fmt.Errorf("layout config: no warehouses defined")
	}

	seenWarehouse := make(map[uuid.UUID]bool, len(c.Warehouses))
	for i, w := range c.Warehouses {
		if w.ID == uuid.Nil {
			return fmt.Errorf("layout config: warehouse %q (#%d) has no id", w.Name, i)
		}
		if seenWarehouse[w.ID] {
			return fmt.Errorf("layout config: warehouse %s defined more than once", w.ID)
		}
		seenWarehouse[w.ID] = true
		if len(w.Rows) == 0 {
			return fmt.Errorf("layout config: warehouse %q has no rows", w.Name)
		}

		seenRow := make(map[string]bool, len(w.Rows))
		for _, r := range w.Rows {
			if r.Label == "" {
				return fmt.Errorf("layout config: warehouse %q has a row without label", w.Name)
			}
			if seenRow[r.Label] {
				return fmt.Errorf("layout config: warehouse %q row %q defined more than once", w.Name, r.Label)
			}
			seenRow[r.Label] = true

			if r.Bays < 1 || r.Positions < 1 {
				return fmt.Errorf("layout config: row %q needs positive bays and positions", r.Label)
			}
			if r.Capacity < 0 {
				return fmt.Errorf("layout config: row %q has negative capacity", r.Label)
			}
			if r.Role != "" && !r.Role.Valid() {
				return fmt.Errorf("layout config: row %q: %w: %q", r.Label, cell.ErrUnknownRole, r.Role)
			}
			for _, b := range r.PassageBays {
				if b < 1 || b > r.Bays {
					return fmt.Errorf("layout config: row %q passage bay %d outside 1..%d", r.Label, b, r.Bays)
				}
			}
		}
	}
	return nil
}

// Cells expands the seed into cells without ids.
func (c *LayoutConfig) Cells() []cell.Cell {
	var out []cell.Cell
	for _, w := range c.Warehouses {
		for _, r := range w.Rows {
			passageBay := make(map[int]bool, len(r.PassageBays))
			for _, b := range r.PassageBays {
				passageBay[b] = true
			}
			for bay := 1; bay <= r.Bays; bay++ {
				for pos := 1; pos <= r.Positions; pos++ {
					seeded := cell.Cell{
						WarehouseID: w.ID,
						Row:         r.Label,
						Bay:         bay,
						Position:    pos,
						IsPassage:   r.Passage || passageBay[bay],
					}
					if !seeded.IsPassage {
						seeded.Role = r.Role
						seeded.Capacity = r.Capacity
					}
					out = append(out, seeded)
				}
			}
		}
	}
	return out
}
