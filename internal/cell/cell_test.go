package cell

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCell_JSONFields(t *testing.T) {
	c := Cell{
		ID:           uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		WarehouseID:  uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Row:          "A",
		Bay:          3,
		Position:     1,
		Role:         RoleDamaged,
		Status:       StatusOccupied,
		Capacity:     10,
		CurrentUsage: 4,
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}

	for _, key := range []string{"id", "warehouse_id", "row", "bay", "position", "is_passage", "cell_role", "status", "capacity", "currentUsage"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON key %q in %s", key, data)
		}
	}
}

func TestCell_EffectiveRole(t *testing.T) {
	if got := (Cell{}).EffectiveRole(); got != RoleStandard {
		t.Errorf("empty role: got %q, want %q", got, RoleStandard)
	}
	if got := (Cell{Role: RoleSamples}).EffectiveRole(); got != RoleSamples {
		t.Errorf("explicit role: got %q, want %q", got, RoleSamples)
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(0); got != StatusAvailable {
		t.Errorf("StatusFor(0) = %q", got)
	}
	if got := StatusFor(3); got != StatusOccupied {
		t.Errorf("StatusFor(3) = %q", got)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"STANDARD", RoleStandard, false},
		{"damaged", RoleDamaged, false},
		{"  Returns ", RoleReturns, false},
		{"BROKEN", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownRole) {
				t.Errorf("ParseRole(%q): expected ErrUnknownRole, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultCatalog_CoversEnumeration(t *testing.T) {
	catalog := DefaultCatalog()
	if len(catalog) != len(Roles()) {
		t.Fatalf("catalog has %d entries, enumeration has %d", len(catalog), len(Roles()))
	}
	for _, r := range Roles() {
		if !CatalogHas(catalog, r) {
			t.Errorf("catalog missing %q", r)
		}
	}
}

func TestValidateRoleChange(t *testing.T) {
	standard := Cell{ID: uuid.New(), Role: RoleStandard}
	unset := Cell{ID: uuid.New()}
	passage := Cell{ID: uuid.New(), IsPassage: true}

	tests := []struct {
		name    string
		c       Cell
		role    Role
		reason  string
		wantErr error
	}{
		{"valid", standard, RoleDamaged, "forklift hit", nil},
		{"passage", passage, RoleDamaged, "reason", ErrPassageCell},
		{"unknown role", standard, Role("VOID"), "reason", ErrUnknownRole},
		{"unchanged", standard, RoleStandard, "any reason", ErrRoleUnchanged},
		{"unchanged default", unset, RoleStandard, "any reason", ErrRoleUnchanged},
		{"blank reason", standard, RoleExpired, "   ", ErrReasonRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoleChange(tt.c, tt.role, tt.reason)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGroupByRole_CountsMatchCells(t *testing.T) {
	cells := []Cell{
		{ID: uuid.New(), Role: RoleStandard},
		{ID: uuid.New()},
		{ID: uuid.New(), Role: RoleDamaged},
		{ID: uuid.New(), Role: RoleDamaged},
		{ID: uuid.New(), IsPassage: true},
		{ID: uuid.New(), Role: RoleReturns},
	}

	groups := GroupByRole(cells)

	total := 0
	seen := make(map[uuid.UUID]int)
	for role, g := range groups {
		if g.Count != len(g.Cells) {
			t.Errorf("%s: count %d != len(cells) %d", role, g.Count, len(g.Cells))
		}
		total += g.Count
		for _, c := range g.Cells {
			if c.EffectiveRole() != role {
				t.Errorf("cell %s with role %q grouped under %q", c.ID, c.EffectiveRole(), role)
			}
			seen[c.ID]++
		}
	}

	if total != 5 {
		t.Errorf("total grouped: got %d, want 5 (passages excluded)", total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("cell %s appears in %d groups", id, n)
		}
	}
	if groups[RoleStandard].Count != 2 {
		t.Errorf("STANDARD count: got %d, want 2 (unset role defaults to STANDARD)", groups[RoleStandard].Count)
	}
}

func TestGroupByRole_Empty(t *testing.T) {
	if groups := GroupByRole(nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestFilterWarehouse(t *testing.T) {
	wh1, wh2 := uuid.New(), uuid.New()
	cells := []Cell{
		{ID: uuid.New(), WarehouseID: wh1, Row: "A"},
		{ID: uuid.New(), WarehouseID: wh2, Row: "B"},
		{ID: uuid.New(), WarehouseID: wh1, Row: "C"},
	}

	got := FilterWarehouse(cells, wh1)
	if len(got) != 2 {
		t.Fatalf("len: got %d, want 2", len(got))
	}
	if got[0].Row != "A" || got[1].Row != "C" {
		t.Errorf("order not preserved: %q, %q", got[0].Row, got[1].Row)
	}
}
