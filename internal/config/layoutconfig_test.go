package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validLayout = `{
	"warehouses": [{
		"id": "6f1c2d9e-8a4b-4c3d-9e2f-1a2b3c4d5e6f",
		"name": "Main",
		"rows": [
			{"label": "A", "bays": 3, "positions": 2, "capacity": 10, "passage_bays": [2]},
			{"label": "Q", "bays": 1, "positions": 1, "capacity": 4, "role": "DAMAGED"},
			{"label": "T", "bays": 2, "positions": 1, "passage": true}
		]
	}]
}`

func TestLoadLayoutConfig_Valid(t *testing.T) {
	cfg, err := LoadLayoutConfig(writeTempConfig(t, validLayout))
	if err != nil {
		t.Fatalf("LoadLayoutConfig: %v", err)
	}
	if len(cfg.Warehouses) != 1 || cfg.Warehouses[0].Name != "Main" {
		t.Fatalf("warehouses = %+v", cfg.Warehouses)
	}
	if len(cfg.Warehouses[0].Rows) != 3 {
		t.Errorf("rows = %d, want 3", len(cfg.Warehouses[0].Rows))
	}
}

func TestLayoutConfig_Cells(t *testing.T) {
	cfg, err := LoadLayoutConfig(writeTempConfig(t, validLayout))
	if err != nil {
		t.Fatalf("LoadLayoutConfig: %v", err)
	}
	cells := cfg.Cells()

	// A: 3 bays x 2 positions, Q: 1, T: 2
	if len(cells) != 9 {
		t.Fatalf("cells = %d, want 9", len(cells))
	}

	counts := map[string]int{}
	passages := 0
	for _, c := range cells {
		counts[c.Row]++
		if c.WarehouseID != cfg.Warehouses[0].ID {
			t.Errorf("cell %+v has wrong warehouse", c.Coord())
		}
		if c.IsPassage {
			passages++
			if c.Role != "" || c.Capacity != 0 {
				t.Errorf("passage %+v carries role or capacity", c.Coord())
			}
			continue
		}
		if c.Row == "A" && c.Bay == 2 {
			t.Errorf("A bay 2 should be a passage")
		}
	}
	if counts["A"] != 6 || counts["Q"] != 1 || counts["T"] != 2 {
		t.Errorf("row counts = %v", counts)
	}
	if passages != 4 {
		t.Errorf("passages = %d, want 4", passages)
	}

	for _, c := range cells {
		if c.Row == "Q" && c.Role != cell.RoleDamaged {
			t.Errorf("Q role = %q, want DAMAGED", c.Role)
		}
	}
}

func TestLoadLayoutConfig_Invalid(t *testing.T) {
	const id = `"6f1c2d9e-8a4b-4c3d-9e2f-1a2b3c4d5e6f"`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad json", `{`, "parse"},
		{"no warehouses", `{"warehouses": []}`, "no warehouses"},
		{"missing id", `{"warehouses": [{"name": "x", "rows": [{"label": "A", "bays": 1, "positions": 1}]}]}`, "no id"},
		{"duplicate warehouse", `{"warehouses": [
			{"id": ` + id + `, "rows": [{"label": "A", "bays": 1, "positions": 1}]},
			{"id": ` + id + `, "rows": [{"label": "A", "bays": 1, "positions": 1}]}]}`, "more than once"},
		{"no rows", `{"warehouses": [{"id": ` + id + `, "rows": []}]}`, "no rows"},
		{"empty label", `{"warehouses": [{"id": ` + id + `, "rows": [{"label": "", "bays": 1, "positions": 1}]}]}`, "without label"},
		{"duplicate row", `{"warehouses": [{"id": ` + id + `, "rows": [
			{"label": "A", "bays": 1, "positions": 1},
			{"label": "A", "bays": 2, "positions": 1}]}]}`, "row \"A\" defined more than once"},
		{"zero bays", `{"warehouses": [{"id": ` + id + `, "rows": [{"label": "A", "bays": 0, "positions": 1}]}]}`, "positive"},
		{"negative capacity", `{"warehouses": [{"id": ` + id + `, "rows": [{"label": "A", "bays": 1, "positions": 1, "capacity": -1}]}]}`, "negative capacity"},
		{"unknown role", `{"warehouses": [{"id": ` + id + `, "rows": [{"label": "A", "bays": 1, "positions": 1, "role": "GOLD"}]}]}`, "unknown cell role"},
		{"passage bay out of range", `{"warehouses": [{"id": ` + id + `, "rows": [{"label": "A", "bays": 2, "positions": 1, "passage_bays": [3]}]}]}`, "outside 1..2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLayoutConfig(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadLayoutConfig_MissingFile(t *testing.T) {
	if _, err := LoadLayoutConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
