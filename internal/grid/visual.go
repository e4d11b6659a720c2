package grid

import "github.com/ryanbastic/go-cellgrid/internal/cell"

// Shade tells how strongly a slot is highlighted.
type Shade string

const (
	ShadeNeutral Shade = "neutral"
	// ShadeStrong marks available capacity, which must stand out more
	// than occupied capacity.
	ShadeStrong Shade = "strong"
	ShadeLight  Shade = "light"
)

// Visual is the rendered state of one slot.
type Visual struct {
	Color     string `json:"color"`
	Shade     Shade  `json:"shade"`
	Clickable bool   `json:"clickable"`
}

type palette struct {
	strong string
	light  string
}

const (
	passageColor = "#9e9e9e"
	missingColor = "#ffffff"
)

var rolePalette = map[cell.Role]palette{
	cell.RoleStandard: {strong: "#2e7d32", light: "#a5d6a7"},
	cell.RoleDamaged:  {strong: "#c62828", light: "#ef9a9a"},
	cell.RoleExpired:  {strong: "#ef6c00", light: "#ffcc80"},
	cell.RoleRejected: {strong: "#6a1b9a", light: "#ce93d8"},
	cell.RoleSamples:  {strong: "#1565c0", light: "#90caf9"},
	cell.RoleReturns:  {strong: "#00838f", light: "#80deea"},
}

// roles the backend may add later render with this pair until a colour is assigned
var fallbackPalette = palette{strong: "#455a64", light: "#b0bec5"}

// VisualFor is a pure function of the cell's role, status and passage flag.
func VisualFor(c cell.Cell) Visual {
	if c.IsPassage {
		return Visual{Color: passageColor, Shade: ShadeNeutral}
	}

	p, ok := rolePalette[c.EffectiveRole()]
	if !ok {
		p = fallbackPalette
	}
	if c.Status == cell.StatusOccupied {
		return Visual{Color: p.light, Shade: ShadeLight, Clickable: true}
	}
	return Visual{Color: p.strong, Shade: ShadeStrong, Clickable: true}
}

func missingVisual() Visual {
	return Visual{Color: missingColor, Shade: ShadeNeutral}
}
