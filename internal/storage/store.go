package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

// ErrCellNotFound is returned when a cell lookup finds no matching row.
var ErrCellNotFound = errors.New("cell not found")

// HistoryPage is one page of a cell's role history, newest first.
type HistoryPage struct {
	Records    []cell.RoleChangeRecord
	NextCursor string
}

// CellStore is the server-side persistence for cells and their history.
type CellStore interface {
	// ListCells returns cells ordered by coordinate. A nil warehouseID
	// returns every warehouse.
	ListCells(ctx context.Context, warehouseID *uuid.UUID) ([]cell.Cell, error)

	GetCell(ctx context.Context, id uuid.UUID) (*cell.Cell, error)

	// ChangeRole updates the role and writes exactly one history record in
	// the same transaction. Precondition failures return the cell package
	// sentinels.
	ChangeRole(ctx context.Context, id uuid.UUID, newRole cell.Role, reason string, user cell.UserSnapshot) (*cell.Cell, *cell.RoleChangeRecord, error)

	// ListHistory pages through a cell's history, most recent first.
	ListHistory(ctx context.Context, id uuid.UUID, cursor string, limit int) (*HistoryPage, error)

	// InsertCells provisions cells, skipping coordinates that already
	// exist. Returns the number inserted.
	InsertCells(ctx context.Context, cells []cell.Cell) (int, error)
}
