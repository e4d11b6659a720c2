// Package grid derives the two-dimensional row x bay x position layout of a
// warehouse from a flat list of cells.
package grid

import (
	"sort"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

// SlotKind distinguishes real cells, walkways and coordinates with no cell.
type SlotKind int

const (
	SlotMissing SlotKind = iota
	SlotCell
	SlotPassage
)

func (k SlotKind) String() string {
	switch k {
	case SlotCell:
		return "cell"
	case SlotPassage:
		return "passage"
	default:
		return "missing"
	}
}

// Slot is one rendered coordinate.
type Slot struct {
	Coord  cell.Coord `json:"coord"`
	Kind   SlotKind   `json:"kind"`
	Cell   *cell.Cell `json:"cell,omitempty"`
	Visual Visual     `json:"visual"`
}

// Bay holds the slots of one bay within a row, ordered like Row.Positions.
type Bay struct {
	Number int    `json:"number"`
	Slots  []Slot `json:"slots"`
}

// Row is one warehouse row. Positions are those present for this row only,
// descending. Inert rows contain nothing but passages.
type Row struct {
	Label     string `json:"label"`
	Positions []int  `json:"positions"`
	Bays      []Bay  `json:"bays"`
	Inert     bool   `json:"inert"`
}

// Layout is the grid for a single warehouse.
type Layout struct {
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Rows        []Row     `json:"rows"`
	Bays        []int     `json:"bays"`
	Empty       bool      `json:"empty"`

	index map[cell.Coord]cell.Cell
}

// Lookup returns the cell at coord, if any.
func (l *Layout) Lookup(coord cell.Coord) (cell.Cell, bool) {
	c, ok := l.index[coord]
	return c, ok
}

// CellCount is the number of cells (passages included) in the layout.
func (l *Layout) CellCount() int {
	return len(l.index)
}

// Build lays out the cells that belong to warehouseID.
func Build(cells []cell.Cell, warehouseID uuid.UUID) Layout {
	filtered := cell.FilterWarehouse(cells, warehouseID)
	layout := Layout{
		WarehouseID: warehouseID,
		index:       make(map[cell.Coord]cell.Cell, len(filtered)),
	}
	if len(filtered) == 0 {
		layout.Empty = true
		return layout
	}

	var labels []string
	baySet := make(map[int]struct{})
	positionsByRow := make(map[string]map[int]struct{})
	for _, c := range filtered {
		layout.index[c.Coord()] = c
		labels = append(labels, c.Row)
		baySet[c.Bay] = struct{}{}
		if positionsByRow[c.Row] == nil {
			positionsByRow[c.Row] = make(map[int]struct{})
		}
		positionsByRow[c.Row][c.Position] = struct{}{}
	}

	layout.Bays = sortedInts(baySet, false)

	for _, label := range SortRows(labels) {
		row := Row{
			Label:     label,
			Positions: sortedInts(positionsByRow[label], true),
			Inert:     true,
		}
		for _, bay := range layout.Bays {
			b := Bay{Number: bay, Slots: make([]Slot, 0, len(row.Positions))}
			for _, pos := range row.Positions {
				slot := layout.slotAt(cell.Coord{Row: label, Bay: bay, Position: pos})
				if slot.Kind == SlotCell {
					row.Inert = false
				}
				b.Slots = append(b.Slots, slot)
			}
			row.Bays = append(row.Bays, b)
		}
		layout.Rows = append(layout.Rows, row)
	}

	return layout
}

func (l *Layout) slotAt(coord cell.Coord) Slot {
	c, ok := l.index[coord]
	if !ok {
		return Slot{Coord: coord, Kind: SlotMissing, Visual: missingVisual()}
	}
	kind := SlotCell
	if c.IsPassage {
		kind = SlotPassage
	}
	return Slot{Coord: coord, Kind: kind, Cell: &c, Visual: VisualFor(c)}
}

func sortedInts(set map[int]struct{}, desc bool) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	if desc {
		sort.Sort(sort.Reverse(sort.IntSlice(out)))
	} else {
		sort.Ints(out)
	}
	return out
}
