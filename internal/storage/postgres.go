package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

const cellColumns = `id, warehouse_id, row_label, bay, position, is_passage, cell_role, capacity, current_usage`

// PostgresStore implements CellStore using PostgreSQL.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresStore creates a CellStore on pool.
// queryTimeout sets the per-query context deadline; zero means no timeout.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		pool:         pool,
		queryTimeout: queryTimeout,
	}
}

// withTimeout derives a child context with the configured query timeout.
// If queryTimeout is zero, the parent context is returned unchanged.
func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

func scanCell(row pgx.Row) (*cell.Cell, error) {
	var c cell.Cell
	var role *string
	if err := row.Scan(&c.ID, &c.WarehouseID, &c.Row, &c.Bay, &c.Position, &c.IsPassage, &role, &c.Capacity, &c.CurrentUsage); err != nil {
		return nil, err
	}
	if role != nil {
		c.Role = cell.Role(*role)
	}
	c.Status = cell.StatusFor(c.CurrentUsage)
	return &c, nil
}

func (s *PostgresStore) ListCells(ctx context.Context, warehouseID *uuid.UUID) ([]cell.Cell, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + cellColumns + ` FROM cells`
	var args []any
	if warehouseID != nil {
		query += ` WHERE warehouse_id = $1`
		args = append(args, *warehouseID)
	}
	query += ` ORDER BY warehouse_id, row_label, bay, position`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	defer rows.Close()

	cells := []cell.Cell{}
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, fmt.Errorf("list cells scan: %w", err)
		}
		cells = append(cells, *c)
	}
	return cells, rows.Err()
}

func (s *PostgresStore) GetCell(ctx context.Context, id uuid.UUID) (*cell.Cell, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := scanCell(s.pool.QueryRow(ctx, `SELECT `+cellColumns+` FROM cells WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCellNotFound
		}
		return nil, fmt.Errorf("get cell: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ChangeRole(ctx context.Context, id uuid.UUID, newRole cell.Role, reason string, user cell.UserSnapshot) (*cell.Cell, *cell.RoleChangeRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated *cell.Cell
	var record *cell.RoleChangeRecord

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanCell(tx.QueryRow(ctx, `SELECT `+cellColumns+` FROM cells WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCellNotFound
			}
			return fmt.Errorf("lock cell: %w", err)
		}
		if err := cell.ValidateRoleChange(*current, newRole, reason); err != nil {
			return err
		}

		updated, err = scanCell(tx.QueryRow(ctx, `
			UPDATE cells SET cell_role = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+cellColumns, id, string(newRole)))
		if err != nil {
			return fmt.Errorf("update cell role: %w", err)
		}

		var oldRole *cell.Role
		if current.Role != "" {
			r := current.Role
			oldRole = &r
		}
		record = &cell.RoleChangeRecord{
			CellID:  id,
			OldRole: oldRole,
			NewRole: newRole,
			Reason:  reason,
			User:    user,
		}
		var oldRoleArg *string
		if oldRole != nil {
			v := string(*oldRole)
			oldRoleArg = &v
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO cell_role_changes (cell_id, old_role, new_role, reason, user_id, user_name, user_role)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING change_id, changed_at
		`, id, oldRoleArg, string(newRole), reason, user.ID, user.DisplayName, user.RoleName).
			Scan(&record.ChangeID, &record.ChangedAt)
		if err != nil {
			return fmt.Errorf("insert role change: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, record, nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, id uuid.UUID, cursor string, limit int) (*HistoryPage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cells WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if !exists {
		return nil, ErrCellNotFound
	}

	query := `
		SELECT change_id, cell_id, old_role, new_role, reason, changed_at, user_id, user_name, user_role
		FROM cell_role_changes
		WHERE cell_id = $1`
	args := []any{id}
	if cursor != "" {
		cur, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (changed_at, change_id) < ($2, $3)`
		args = append(args, cur.ChangedAt, cur.ChangeID)
	}
	query += fmt.Sprintf(` ORDER BY changed_at DESC, change_id DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	page := &HistoryPage{Records: []cell.RoleChangeRecord{}}
	for rows.Next() {
		var r cell.RoleChangeRecord
		var oldRole *string
		var newRole string
		if err := rows.Scan(&r.ChangeID, &r.CellID, &oldRole, &newRole, &r.Reason, &r.ChangedAt,
			&r.User.ID, &r.User.DisplayName, &r.User.RoleName); err != nil {
			return nil, fmt.Errorf("list history scan: %w", err)
		}
		if oldRole != nil {
			role := cell.Role(*oldRole)
			r.OldRole = &role
		}
		r.NewRole = cell.Role(newRole)
		page.Records = append(page.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history rows: %w", err)
	}

	if len(page.Records) == limit {
		last := page.Records[len(page.Records)-1]
		next := Cursor{ChangedAt: last.ChangedAt, ChangeID: last.ChangeID}
		encoded, err := next.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode next cursor: %w", err)
		}
		page.NextCursor = encoded
	}
	return page, nil
}

func (s *PostgresStore) InsertCells(ctx context.Context, cells []cell.Cell) (int, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, c := range cells {
		var role *string
		if !c.IsPassage && c.Role != "" {
			r := string(c.Role)
			role = &r
		}
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO cells (id, warehouse_id, row_label, bay, position, is_passage, cell_role, capacity, current_usage)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (warehouse_id, row_label, bay, position) DO NOTHING
		`, id, c.WarehouseID, c.Row, c.Bay, c.Position, c.IsPassage, role, c.Capacity, c.CurrentUsage)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range cells {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert cells: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
