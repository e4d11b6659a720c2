package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/api"
	"github.com/ryanbastic/go-cellgrid/internal/auth"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/grid"
	"github.com/ryanbastic/go-cellgrid/internal/storage"
	"github.com/ryanbastic/go-cellgrid/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "cellctl-test-secret-0123456789abcdef"

// --- In-memory backend ---

type fakeStore struct {
	mu      sync.Mutex
	cells   []cell.Cell
	history map[uuid.UUID][]cell.RoleChangeRecord
}

func (f *fakeStore) ListCells(_ context.Context, warehouseID *uuid.UUID) ([]cell.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if warehouseID == nil {
		return append([]cell.Cell(nil), f.cells...), nil
	}
	return cell.FilterWarehouse(f.cells, *warehouseID), nil
}

func (f *fakeStore) GetCell(_ context.Context, id uuid.UUID) (*cell.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cells {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, storage.ErrCellNotFound
}

func (f *fakeStore) ChangeRole(_ context.Context, id uuid.UUID, newRole cell.Role, reason string, user cell.UserSnapshot) (*cell.Cell, *cell.RoleChangeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.cells {
		if c.ID != id {
			continue
		}
		if err := cell.ValidateRoleChange(c, newRole, reason); err != nil {
			return nil, nil, err
		}
		rec := cell.RoleChangeRecord{
			ChangeID:  uuid.New(),
			CellID:    id,
			NewRole:   newRole,
			Reason:    reason,
			ChangedAt: time.Now(),
			User:      user,
		}
		if c.Role != "" {
			old := c.Role
			rec.OldRole = &old
		}
		f.cells[i].Role = newRole
		f.history[id] = append([]cell.RoleChangeRecord{rec}, f.history[id]...)
		updated := f.cells[i]
		return &updated, &rec, nil
	}
	return nil, nil, storage.ErrCellNotFound
}

func (f *fakeStore) ListHistory(_ context.Context, id uuid.UUID, _ string, _ int) (*storage.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &storage.HistoryPage{Records: f.history[id]}, nil
}

func (f *fakeStore) InsertCells(_ context.Context, cells []cell.Cell) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cells = append(f.cells, cells...)
	return len(cells), nil
}

func (f *fakeStore) role(id uuid.UUID) cell.Role {
	c, _ := f.GetCell(context.Background(), id)
	return c.Role
}

var warehouseID = uuid.MustParse("3b0a1f52-0000-4000-8000-00000000000a")

type backend struct {
	url   string
	store *fakeStore
	posts atomic.Int32
	cells []cell.Cell
}

// newBackend serves the real API over an in-memory store holding:
// A-01-1 STANDARD, A-01-2 unassigned with stock, A-02-1 passage,
// Q-01-1 DAMAGED.
func newBackend(t *testing.T) *backend {
	t.Helper()
	cells := []cell.Cell{
		{ID: uuid.New(), WarehouseID: warehouseID, Row: "A", Bay: 1, Position: 1, Role: cell.RoleStandard, Status: cell.StatusAvailable, Capacity: 10},
		{ID: uuid.New(), WarehouseID: warehouseID, Row: "A", Bay: 1, Position: 2, Status: cell.StatusOccupied, Capacity: 10, CurrentUsage: 3},
		{ID: uuid.New(), WarehouseID: warehouseID, Row: "A", Bay: 2, Position: 1, IsPassage: true, Status: cell.StatusAvailable},
		{ID: uuid.New(), WarehouseID: warehouseID, Row: "Q", Bay: 1, Position: 1, Role: cell.RoleDamaged, Status: cell.StatusAvailable, Capacity: 4},
	}
	b := &backend{
		store: &fakeStore{cells: append([]cell.Cell(nil), cells...), history: make(map[uuid.UUID][]cell.RoleChangeRecord)},
		cells: cells,
	}
	handler := api.NewServer(slog.New(slog.DiscardHandler), b.store, nil, testSecret)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			b.posts.Add(1)
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	b.url = srv.URL
	return b
}

func token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, auth.Principal{ID: "u-7", Name: "Robin", Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

// run executes cellctl with args against b and returns stdout.
func run(t *testing.T, b *backend, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", b.url, "--retries", "-1"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// --- Read commands ---

func TestGrid(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "grid", "--warehouse", warehouseID.String())
	require.NoError(t, err)

	aIdx := strings.Index(out, "ROW A")
	qIdx := strings.Index(out, "ROW Q")
	require.GreaterOrEqual(t, aIdx, 0, out)
	require.Greater(t, qIdx, aIdx, "special rows render after regular rows")
	assert.Contains(t, out, "===", "passage glyph")
	assert.Contains(t, out, "P2")
}

func TestGrid_Empty(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "grid", "--warehouse", uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, grid.EmptyMessage+"\n", out)
}

func TestGrid_JSON(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "-o", "json", "grid", "--warehouse", warehouseID.String())
	require.NoError(t, err)

	var layout struct {
		Rows []struct {
			Label string `json:"label"`
		} `json:"rows"`
		Empty bool `json:"empty"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &layout))
	require.Len(t, layout.Rows, 2)
	assert.Equal(t, "A", layout.Rows[0].Label)
	assert.Equal(t, "Q", layout.Rows[1].Label)
	assert.False(t, layout.Empty)
}

func TestGrid_InvalidWarehouse(t *testing.T) {
	b := newBackend(t)

	_, err := run(t, b, "", "grid", "--warehouse", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --warehouse")
}

func TestByRole(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "by-role", "--warehouse", warehouseID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Standard (2)")
	assert.Contains(t, out, "Damaged (1)")
	assert.Contains(t, out, "A-01-2  3/10  occupied")
	assert.Less(t, strings.Index(out, "Standard"), strings.Index(out, "Damaged"), "catalog order")
}

func TestByRole_YAML(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "-o", "yaml", "by-role", "--warehouse", warehouseID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "groups:")
	assert.Contains(t, out, "STANDARD:")
	assert.Contains(t, out, "count: 2")
}

func TestRoles(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "roles")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(cell.Roles())+1)
	assert.True(t, strings.HasPrefix(lines[0], "VALUE"))
	assert.True(t, strings.HasPrefix(lines[1], "STANDARD"))
}

func TestHistory(t *testing.T) {
	b := newBackend(t)
	id := b.cells[0].ID

	out, err := run(t, b, "", "history", id.String())
	require.NoError(t, err)
	assert.Equal(t, noHistoryMessage+"\n", out)

	admin := token(t, auth.RoleAdmin)
	_, err = run(t, b, "", "--token", admin, "set-role", id.String(), "damaged", "--reason", "crushed", "--yes")
	require.NoError(t, err)
	_, err = run(t, b, "", "--token", admin, "set-role", id.String(), "expired", "--reason", "past date", "--yes")
	require.NoError(t, err)

	out, err = run(t, b, "", "history", id.String())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^1\s+.*DAMAGED\s+EXPIRED\s+Robin\s+past date$`, lines[1])
	assert.Regexp(t, `^2\s+.*STANDARD\s+DAMAGED\s+Robin\s+crushed$`, lines[2])
}

// --- Role changes ---

func TestSetRole_Yes(t *testing.T) {
	b := newBackend(t)
	id := b.cells[0].ID

	out, err := run(t, b, "", "--token", token(t, auth.RoleAdmin), "set-role", id.String(), "DAMAGED", "--reason", "pallet crushed", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Change cell A-01-1 from STANDARD to DAMAGED")
	assert.Contains(t, out, "Cell A-01-1 is now DAMAGED.")
	assert.Equal(t, cell.RoleDamaged, b.store.role(id))
}

func TestSetRole_Prompt(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		changed bool
	}{
		{"yes", "y\n", true},
		{"full yes", "YES\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			id := b.cells[0].ID

			out, err := run(t, b, tt.answer, "--token", token(t, auth.RoleAdmin), "set-role", id.String(), "SAMPLES", "--reason", "display")
			require.NoError(t, err)
			assert.Contains(t, out, "Apply this change? [y/N]")
			if tt.changed {
				assert.Equal(t, cell.RoleSamples, b.store.role(id))
				assert.EqualValues(t, 1, b.posts.Load())
			} else {
				assert.Contains(t, out, "Cancelled.")
				assert.Equal(t, cell.RoleStandard, b.store.role(id))
				assert.EqualValues(t, 0, b.posts.Load())
			}
		})
	}
}

func TestSetRole_OccupiedWarning(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "--token", token(t, auth.RoleAdmin), "set-role", b.cells[1].ID.String(), "RETURNS", "--reason", "customer return", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: cell currently holds 3 of 10 units")
	assert.Contains(t, out, "is now RETURNS")
}

func TestSetRole_RejectedLocally(t *testing.T) {
	b := newBackend(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"passage", []string{b.cells[2].ID.String(), "DAMAGED", "--reason", "x"}, "Passage cells have no role and cannot be changed."},
		{"unchanged", []string{b.cells[0].ID.String(), "standard", "--reason", "x"}, "Choose a role different from the current one."},
		{"no reason", []string{b.cells[0].ID.String(), "DAMAGED"}, "Enter a reason for the change."},
		{"unknown role", []string{b.cells[0].ID.String(), "BROKEN", "--reason", "x"}, "Choose a role from the catalog."},
		{"not loaded", []string{uuid.NewString(), "DAMAGED", "--reason", "x"}, "That cell is not loaded. Refresh the grid and try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--token", token(t, auth.RoleAdmin), "set-role"}, tt.args...)
			args = append(args, "--yes")
			_, err := run(t, b, "", args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
	assert.EqualValues(t, 0, b.posts.Load(), "validation failures never reach the backend")
}

func TestSetRole_Authorization(t *testing.T) {
	b := newBackend(t)
	id := b.cells[0].ID.String()

	_, err := run(t, b, "", "set-role", id, "DAMAGED", "--reason", "x", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token configured")

	_, err = run(t, b, "", "--token", token(t, auth.RoleOperator), "set-role", id, "DAMAGED", "--reason", "x", "--yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrAccessDenied)
	assert.Equal(t, "Only administrators can change cell roles.", err.Error())
	assert.EqualValues(t, 0, b.posts.Load())
}

func TestSetRole_ForgedAdminRejectedByServer(t *testing.T) {
	b := newBackend(t)
	forged, err := auth.GenerateToken("some-other-secret-of-sufficient-length", auth.Principal{ID: "x", Name: "Mallory", Role: auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = run(t, b, "", "--token", forged, "set-role", b.cells[0].ID.String(), "DAMAGED", "--reason", "x", "--yes")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Not authorized:"), err.Error())
	assert.Equal(t, cell.RoleStandard, b.store.role(b.cells[0].ID))
}

func TestBulkSetRole(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "--token", token(t, auth.RoleAdmin), "bulk-set-role",
		"--warehouse", warehouseID.String(), "--from", "standard", "--to", "REJECTED", "--reason", "failed audit", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Change 2 cells from STANDARD to REJECTED")
	assert.Contains(t, out, "Warning: 1 of these cells hold stock")
	assert.Contains(t, out, "Changed: 2  Failed: 0  Skipped: 1")
	assert.Equal(t, cell.RoleRejected, b.store.role(b.cells[0].ID))
	assert.Equal(t, cell.RoleRejected, b.store.role(b.cells[1].ID))
	assert.Equal(t, cell.RoleDamaged, b.store.role(b.cells[3].ID))
}

func TestBulkSetRole_JSON(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "--token", token(t, auth.RoleAdmin), "-o", "json", "bulk-set-role",
		"--warehouse", warehouseID.String(), "--from", "DAMAGED", "--to", "EXPIRED", "--reason", "aged out", "--yes")
	require.NoError(t, err)

	// The preamble precedes the JSON document.
	doc := out[strings.Index(out, "{"):]
	var view bulkResultView
	require.NoError(t, json.Unmarshal([]byte(doc), &view))
	assert.Equal(t, 1, view.Succeeded)
	require.Len(t, view.Outcomes, 1)
	assert.Equal(t, "Q-01-1", view.Outcomes[0].Cell)
	assert.True(t, view.Outcomes[0].OK)
}

func TestBulkSetRole_NoTargets(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "--token", token(t, auth.RoleAdmin), "bulk-set-role",
		"--warehouse", warehouseID.String(), "--from", "SAMPLES", "--to", "EXPIRED", "--reason", "x", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "No SAMPLES cells in this warehouse.\n", out)
	assert.EqualValues(t, 0, b.posts.Load())
}

func TestBulkSetRole_InvalidFrom(t *testing.T) {
	b := newBackend(t)

	_, err := run(t, b, "", "--token", token(t, auth.RoleAdmin), "bulk-set-role",
		"--warehouse", warehouseID.String(), "--from", "BOGUS", "--to", "EXPIRED", "--reason", "x", "--yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, cell.ErrUnknownRole)
}

// --- Token ---

func TestToken(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, b, "", "token", "--secret", testSecret, "--user-id", "u-1", "--name", "Sam", "--role", "admin")
	require.NoError(t, err)

	p, err := auth.ParseToken(testSecret, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.Principal{ID: "u-1", Name: "Sam", Role: auth.RoleAdmin}, p)
}

func TestToken_Invalid(t *testing.T) {
	b := newBackend(t)

	_, err := run(t, b, "", "token", "--secret", testSecret, "--user-id", "u-1", "--name", "Sam", "--role", "root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --role")

	_, err = run(t, b, "", "token", "--secret", "short", "--user-id", "u-1", "--name", "Sam")
	assert.ErrorIs(t, err, auth.ErrWeakSecret)
}

// --- Settings ---

func TestSettings_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cellctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://from-file:1\ntoken: file-token\nretries: 3\noutput: yaml\n"), 0o600))

	t.Setenv("CELLCTL_TOKEN", "env-token")

	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--server", "http://from-flag:2"}))

	s, err := loadSettings(newViper(), cmd.PersistentFlags(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:2", s.Server)
	assert.Equal(t, "env-token", s.Token)
	assert.Equal(t, 3, s.Retries)
	assert.Equal(t, "yaml", s.Output)
	assert.Equal(t, 10*time.Second, s.Timeout)
}

func TestSettings_InvalidOutput(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"-o", "xml"}))

	_, err := loadSettings(newViper(), cmd.PersistentFlags(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

// --- Output helpers ---

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, []string{"Cell", "Result"}, [][]string{{"A-01-1", "changed"}, {"Q-10-2", "failed"}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "CELL    RESULT", lines[0])
	assert.Equal(t, "A-01-1  changed", lines[1])
}

func TestPrintYAML_UsesJSONKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printYAML(&buf, cell.RoleCatalogEntry{Value: cell.RoleSamples, Label: "Samples"}))
	assert.Contains(t, buf.String(), "value: SAMPLES")
	assert.Contains(t, buf.String(), "label: Samples")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	ok, err := confirm(strings.NewReader(" yes \n"), &out, "Go?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Go? [y/N] ", out.String())
}
