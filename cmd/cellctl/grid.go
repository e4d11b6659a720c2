package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cellstore"
	"github.com/ryanbastic/go-cellgrid/internal/grid"
	"github.com/spf13/cobra"
)

func newGridCmd(a *app) *cobra.Command {
	var warehouse string
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Render the cell grid of a warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := uuid.Parse(warehouse)
			if err != nil {
				return fmt.Errorf("invalid --warehouse: %w", err)
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			store := cellstore.NewMemoryStore()
			if err := loadWarehouse(ctx, a, store, &wid); err != nil {
				return err
			}
			layout := grid.Build(store.GetCells(), wid)

			if a.structured() {
				return printOutput(cmd.OutOrStdout(), a.cfg.Output, layout)
			}
			return grid.Render(cmd.OutOrStdout(), layout)
		},
	}
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Warehouse ID")
	_ = cmd.MarkFlagRequired("warehouse")
	return cmd
}

func newByRoleCmd(a *app) *cobra.Command {
	var warehouse string
	cmd := &cobra.Command{
		Use:   "by-role",
		Short: "List cells grouped by role",
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := optionalWarehouse(warehouse)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			groups, err := a.client.FetchCellsGroupedByRole(ctx, wid)
			if err != nil {
				return fmt.Errorf("failed to fetch cells by role: %w", err)
			}
			if a.structured() {
				return printOutput(cmd.OutOrStdout(), a.cfg.Output, map[string]any{"groups": groups})
			}
			return grid.RenderByRole(cmd.OutOrStdout(), groups, a.catalog(cmd))
		},
	}
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Warehouse ID (default: all warehouses)")
	return cmd
}

func newRolesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the valid cell roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			catalog, err := a.client.FetchRoleCatalog(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch roles: %w", err)
			}
			if a.structured() {
				return printOutput(cmd.OutOrStdout(), a.cfg.Output, catalog)
			}
			rows := make([][]string, 0, len(catalog))
			for _, e := range catalog {
				rows = append(rows, []string{string(e.Value), e.Label, truncate(e.Description, 60)})
			}
			return printTable(cmd.OutOrStdout(), []string{"Value", "Label", "Description"}, rows)
		},
	}
}

// loadWarehouse fetches cells into store, flagging the fetch as loading
// while it runs.
func loadWarehouse(ctx context.Context, a *app, store cellstore.Store, wid *uuid.UUID) error {
	store.SetLoading(cellstore.OpFetchCells, true)
	defer store.SetLoading(cellstore.OpFetchCells, false)

	cells, err := a.client.FetchCells(ctx, wid)
	if err != nil {
		return fmt.Errorf("failed to fetch cells: %w", err)
	}
	store.ReplaceAll(cells)
	a.logger.Debug("cells loaded", "count", len(cells))
	return nil
}

func optionalWarehouse(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --warehouse: %w", err)
	}
	return &id, nil
}
