package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

// RunMigrations creates the cells and history tables.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	roles := roleList()
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS cells (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			warehouse_id  UUID NOT NULL,
			row_label     TEXT NOT NULL CHECK (row_label <> ''),
			bay           INT NOT NULL CHECK (bay > 0),
			position      INT NOT NULL CHECK (position > 0),
			is_passage    BOOLEAN NOT NULL DEFAULT false,
			cell_role     TEXT CHECK (cell_role IN (%s)),
			capacity      INT NOT NULL DEFAULT 0 CHECK (capacity >= 0),
			current_usage INT NOT NULL DEFAULT 0 CHECK (current_usage >= 0),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),

			CONSTRAINT uq_cells_coord UNIQUE (warehouse_id, row_label, bay, position),
			CONSTRAINT ck_cells_usage CHECK (current_usage <= capacity),
			CONSTRAINT ck_cells_passage_role CHECK (NOT is_passage OR cell_role IS NULL)
		);

		CREATE INDEX IF NOT EXISTS idx_cells_warehouse
			ON cells (warehouse_id, row_label, bay, position);

		CREATE TABLE IF NOT EXISTS cell_role_changes (
			change_id  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			cell_id    UUID NOT NULL REFERENCES cells (id) ON DELETE CASCADE,
			old_role   TEXT CHECK (old_role IN (%s)),
			new_role   TEXT NOT NULL CHECK (new_role IN (%s)),
			reason     TEXT NOT NULL CHECK (btrim(reason) <> ''),
			changed_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			user_id    TEXT NOT NULL,
			user_name  TEXT NOT NULL,
			user_role  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cell_role_changes_cell
			ON cell_role_changes (cell_id, changed_at DESC, change_id DESC);
	`, roles, roles, roles)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// roleList renders the role enumeration as a SQL literal list.
func roleList() string {
	roles := cell.Roles()
	quoted := make([]string, len(roles))
	for i, r := range roles {
		quoted[i] = "'" + string(r) + "'"
	}
	return strings.Join(quoted, ", ")
}
