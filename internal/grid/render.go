package grid

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

const (
	passageGlyph = "==="
	missingGlyph = " . "
)

// EmptyMessage is printed for a warehouse with no cells.
const EmptyMessage = "no cells in this warehouse"

// Glyph is the three character token used for a slot in text output.
// Available cells are upper case, occupied cells lower case.
func Glyph(s Slot) string {
	switch s.Kind {
	case SlotPassage:
		return passageGlyph
	case SlotMissing:
		return missingGlyph
	}
	abbrev := string(s.Cell.EffectiveRole())
	if len(abbrev) > 3 {
		abbrev = abbrev[:3]
	}
	abbrev = fmt.Sprintf("%-3s", abbrev)
	if s.Visual.Shade == ShadeLight {
		return strings.ToLower(abbrev)
	}
	return strings.ToUpper(abbrev)
}

// Render writes the layout as one block per row. Columns are bays, lines
// are the row's positions from highest to lowest.
func Render(w io.Writer, l Layout) error {
	if l.Empty {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}

	var b strings.Builder
	header := make([]string, 0, len(l.Bays))
	for _, bay := range l.Bays {
		header = append(header, fmt.Sprintf("%3d", bay))
	}

	for i, row := range l.Rows {
		if i > 0 {
			b.WriteString("\n")
		}
		title := "ROW " + row.Label
		if row.Inert {
			title += " (passage)"
		}
		fmt.Fprintf(&b, "%s\n", title)
		fmt.Fprintf(&b, "%5s %s\n", "", strings.Join(header, " "))
		for pi, pos := range row.Positions {
			tokens := make([]string, 0, len(row.Bays))
			for _, bay := range row.Bays {
				tokens = append(tokens, Glyph(bay.Slots[pi]))
			}
			fmt.Fprintf(&b, "%5s %s\n", fmt.Sprintf("P%d", pos), strings.Join(tokens, " "))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderByRole writes the grouped view. Roles are listed in catalog order,
// roles missing from the catalog follow alphabetically.
func RenderByRole(w io.Writer, groups map[cell.Role]cell.RoleGroup, catalog []cell.RoleCatalogEntry) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}

	var b strings.Builder
	for i, role := range groupOrder(groups, catalog) {
		g := groups[role]
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%d)\n", labelFor(role, catalog), g.Count)
		cells := make([]cell.Cell, len(g.Cells))
		copy(cells, g.Cells)
		sortByCoord(cells)
		for _, c := range cells {
			state := "available"
			if c.Occupied() {
				state = "occupied"
			}
			fmt.Fprintf(&b, "  %s-%02d-%d  %d/%d  %s\n", c.Row, c.Bay, c.Position, c.CurrentUsage, c.Capacity, state)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func groupOrder(groups map[cell.Role]cell.RoleGroup, catalog []cell.RoleCatalogEntry) []cell.Role {
	order := make([]cell.Role, 0, len(groups))
	listed := make(map[cell.Role]bool, len(catalog))
	for _, e := range catalog {
		listed[e.Value] = true
		if _, ok := groups[e.Value]; ok {
			order = append(order, e.Value)
		}
	}
	var rest []cell.Role
	for role := range groups {
		if !listed[role] {
			rest = append(rest, role)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(order, rest...)
}

func labelFor(role cell.Role, catalog []cell.RoleCatalogEntry) string {
	for _, e := range catalog {
		if e.Value == role && e.Label != "" {
			return e.Label
		}
	}
	return string(role)
}

func sortByCoord(cells []cell.Cell) {
	rank := make(map[string]int)
	var labels []string
	for _, c := range cells {
		labels = append(labels, c.Row)
	}
	for i, l := range SortRows(labels) {
		rank[l] = i
	}
	sort.SliceStable(cells, func(i, j int) bool {
		a, b := cells[i], cells[j]
		if a.Row != b.Row {
			return rank[a.Row] < rank[b.Row]
		}
		if a.Bay != b.Bay {
			return a.Bay < b.Bay
		}
		return a.Position > b.Position
	})
}
