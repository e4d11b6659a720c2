package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/auth"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/metrics"
	"github.com/ryanbastic/go-cellgrid/internal/storage"
)

// --- Huma Input/Output types ---

type ListCellsInput struct {
	WarehouseID string `query:"warehouse_id" doc:"Restrict to one warehouse (UUID)" required:"false"`
}

type ListCellsOutput struct {
	Body []cell.Cell
}

type GroupedCellsBody struct {
	Groups map[cell.Role]cell.RoleGroup `json:"groups" doc:"Non-passage cells keyed by effective role"`
}

type GroupedCellsOutput struct {
	Body GroupedCellsBody
}

type RoleCatalogOutput struct {
	Body []cell.RoleCatalogEntry
}

type HistoryInput struct {
	CellID string `path:"cell_id" doc:"Cell UUID"`
	Cursor string `query:"cursor" doc:"Opaque cursor from X-Next-Cursor" required:"false"`
	Limit  int    `query:"limit" doc:"Page size (default 100, max 500)" minimum:"0" maximum:"500" required:"false"`
}

type HistoryOutput struct {
	NextCursor string `header:"X-Next-Cursor" doc:"Cursor for the next page, empty on the last page"`
	Body       []cell.RoleChangeRecord
}

type ChangeRoleBody struct {
	NewRole string `json:"new_role" doc:"Target role" required:"true"`
	Reason  string `json:"reason" doc:"Why the role changes" required:"false"`
}

type ChangeRoleInput struct {
	CellID string `path:"cell_id" doc:"Cell UUID"`
	Body   ChangeRoleBody
}

type ChangeRoleOutput struct {
	Body cell.ChangeRoleResult
}

// --- Handler ---

type CellHandler struct {
	store  storage.CellStore
	logger *slog.Logger
}

func NewCellHandler(store storage.CellStore, logger *slog.Logger) *CellHandler {
	return &CellHandler{store: store, logger: logger}
}

func registerCellRoutes(api huma.API, h *CellHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-cells",
		Method:      http.MethodGet,
		Path:        "/v1/cells",
		Summary:     "List cells",
		Tags:        []string{"cells"},
	}, h.ListCells)

	huma.Register(api, huma.Operation{
		OperationID: "list-cells-by-role",
		Method:      http.MethodGet,
		Path:        "/v1/cells/by-role",
		Summary:     "List cells grouped by role",
		Tags:        []string{"cells"},
	}, h.ListCellsByRole)

	huma.Register(api, huma.Operation{
		OperationID: "list-roles",
		Method:      http.MethodGet,
		Path:        "/v1/cells/roles",
		Summary:     "List valid cell roles",
		Tags:        []string{"roles"},
	}, h.ListRoles)

	huma.Register(api, huma.Operation{
		OperationID: "cell-role-history",
		Method:      http.MethodGet,
		Path:        "/v1/cells/{cell_id}/history",
		Summary:     "Role change history of a cell",
		Tags:        []string{"roles"},
	}, h.History)

	huma.Register(api, huma.Operation{
		OperationID: "change-cell-role",
		Method:      http.MethodPost,
		Path:        "/v1/cells/{cell_id}/role",
		Summary:     "Change the role of a cell",
		Description: "Administrator only. Passage cells cannot be changed; the new role must differ and a reason is required.",
		Tags:        []string{"roles"},
	}, h.ChangeRole)
}

func (h *CellHandler) ListCells(ctx context.Context, input *ListCellsInput) (*ListCellsOutput, error) {
	warehouseID, err := parseWarehouse(input.WarehouseID)
	if err != nil {
		return nil, err
	}
	cells, err := h.store.ListCells(ctx, warehouseID)
	if err != nil {
		h.logger.Error("failed to list cells", "error", err)
		return nil, huma.Error500InternalServerError("failed to list cells")
	}
	if cells == nil {
		cells = []cell.Cell{}
	}
	return &ListCellsOutput{Body: cells}, nil
}

func (h *CellHandler) ListCellsByRole(ctx context.Context, input *ListCellsInput) (*GroupedCellsOutput, error) {
	warehouseID, err := parseWarehouse(input.WarehouseID)
	if err != nil {
		return nil, err
	}
	cells, err := h.store.ListCells(ctx, warehouseID)
	if err != nil {
		h.logger.Error("failed to list cells", "error", err)
		return nil, huma.Error500InternalServerError("failed to list cells")
	}
	return &GroupedCellsOutput{Body: GroupedCellsBody{Groups: cell.GroupByRole(cells)}}, nil
}

func (h *CellHandler) ListRoles(ctx context.Context, _ *struct{}) (*RoleCatalogOutput, error) {
	return &RoleCatalogOutput{Body: cell.DefaultCatalog()}, nil
}

func (h *CellHandler) History(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	id, err := uuid.Parse(input.CellID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid cell_id")
	}
	page, err := h.store.ListHistory(ctx, id, input.Cursor, input.Limit)
	if err != nil {
		if errors.Is(err, storage.ErrCellNotFound) {
			return nil, huma.Error404NotFound("cell not found")
		}
		if errors.Is(err, storage.ErrInvalidCursor) {
			return nil, huma.Error400BadRequest("invalid cursor")
		}
		h.logger.Error("failed to list role history", "cell_id", id, "error", err)
		return nil, huma.Error500InternalServerError("failed to list role history")
	}
	records := page.Records
	if records == nil {
		records = []cell.RoleChangeRecord{}
	}
	return &HistoryOutput{NextCursor: page.NextCursor, Body: records}, nil
}

func (h *CellHandler) ChangeRole(ctx context.Context, input *ChangeRoleInput) (*ChangeRoleOutput, error) {
	newRole := cell.Role(input.Body.NewRole)
	label := string(newRole)
	if !newRole.Valid() {
		label = "unknown"
	}

	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		metrics.RoleChange(label, metrics.OutcomeForbidden)
		return nil, huma.Error401Unauthorized("authentication required")
	}
	if !p.IsAdmin() {
		metrics.RoleChange(label, metrics.OutcomeForbidden)
		h.logger.Warn("role change denied", "user_id", p.ID, "role", p.Role)
		return nil, huma.Error403Forbidden("administrator role required")
	}

	id, err := uuid.Parse(input.CellID)
	if err != nil {
		metrics.RoleChange(label, metrics.OutcomeRejected)
		return nil, huma.Error400BadRequest("invalid cell_id")
	}

	updated, record, err := h.store.ChangeRole(ctx, id, newRole, input.Body.Reason, p.Snapshot())
	if err != nil {
		status := roleChangeError(h.logger, err)
		if status.GetStatus() >= 500 {
			metrics.RoleChange(label, metrics.OutcomeError)
		} else {
			metrics.RoleChange(label, metrics.OutcomeRejected)
		}
		return nil, status
	}

	metrics.RoleChange(label, metrics.OutcomeChanged)
	from := "none"
	if record.OldRole != nil {
		from = string(*record.OldRole)
	}
	h.logger.Info("cell role changed",
		"cell_id", id,
		"old_role", from,
		"new_role", record.NewRole,
		"user_id", p.ID,
		"change_id", record.ChangeID,
	)
	return &ChangeRoleOutput{Body: cell.ChangeRoleResult{
		Success: true,
		Message: fmt.Sprintf("role changed from %s to %s", from, record.NewRole),
		Cell:    updated,
	}}, nil
}

func parseWarehouse(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid warehouse_id")
	}
	return &id, nil
}
