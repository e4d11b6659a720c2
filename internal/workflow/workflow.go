// Package workflow runs the role-change dialog: open a cell, choose a new
// role, confirm, submit, and reconcile the local cache with the backend's
// acknowledgement.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/auth"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/cellstore"
	"github.com/ryanbastic/go-cellgrid/internal/client"
)

// Service is the backend operation the workflow submits through.
type Service interface {
	ChangeCellRole(ctx context.Context, cellID uuid.UUID, newRole cell.Role, reason string) (cell.ChangeRoleResult, error)
}

// Workflow is one role-change dialog. It is safe for concurrent use; only
// one submission runs at a time.
type Workflow struct {
	svc       Service
	store     cellstore.Store
	principal auth.Principal
	catalog   []cell.RoleCatalogEntry
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	current cell.Cell
	pending Confirmation
}

// New creates a Workflow acting as principal. An empty catalog falls back
// to cell.DefaultCatalog.
func New(svc Service, store cellstore.Store, principal auth.Principal, catalog []cell.RoleCatalogEntry, logger *slog.Logger) *Workflow {
	if len(catalog) == 0 {
		catalog = cell.DefaultCatalog()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workflow{
		svc:       svc,
		store:     store,
		principal: principal,
		catalog:   catalog,
		logger:    logger,
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Open starts the dialog for a cached cell.
func (w *Workflow) Open(cellID uuid.UUID) (cell.Cell, error) {
	if !w.principal.IsAdmin() {
		return cell.Cell{}, ErrAccessDenied
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Submitting {
		return cell.Cell{}, ErrBusy
	}

	c, err := w.store.GetCell(cellID)
	if err != nil {
		return cell.Cell{}, err
	}
	if c.IsPassage {
		return cell.Cell{}, &ValidationError{Field: "cell", Err: cell.ErrPassageCell}
	}

	w.state = RoleSelecting
	w.current = c
	w.pending = Confirmation{}
	return c, nil
}

// Choices lists the catalog entries the open cell can move to.
func (w *Workflow) Choices() []cell.RoleCatalogEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Idle {
		return nil
	}
	current := w.current.EffectiveRole()
	out := make([]cell.RoleCatalogEntry, 0, len(w.catalog))
	for _, e := range w.catalog {
		if e.Value != current {
			out = append(out, e)
		}
	}
	return out
}

// SelectRole validates the choice and moves to confirmation.
func (w *Workflow) SelectRole(newRole cell.Role, reason string) (Confirmation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Submitting:
		return Confirmation{}, ErrBusy
	case RoleSelecting, ConfirmingChange:
	default:
		return Confirmation{}, ErrInvalidState
	}

	if err := w.validate(w.current, newRole, reason); err != nil {
		return Confirmation{}, err
	}

	conf := Confirmation{
		Cell:     w.current,
		OldRole:  w.current.EffectiveRole(),
		NewRole:  newRole,
		Reason:   strings.TrimSpace(reason),
		Occupied: w.current.CurrentUsage > 0,
	}
	if conf.Occupied {
		conf.Warning = fmt.Sprintf("cell currently holds %d of %d units; the role change does not move stock", w.current.CurrentUsage, w.current.Capacity)
	}
	w.pending = conf
	w.state = ConfirmingChange
	return conf, nil
}

// Cancel steps back from confirmation to role selection. In role selection
// it does nothing; Close abandons the dialog.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case ConfirmingChange:
		w.state = RoleSelecting
		w.pending = Confirmation{}
	case Submitting:
		return ErrBusy
	}
	return nil
}

// Close abandons the dialog.
func (w *Workflow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Submitting {
		return ErrBusy
	}
	w.reset()
	return nil
}

// Confirm submits the pending change. On success the store is patched with
// the acknowledged cell and the workflow returns to Idle; if the cell has
// left the store meanwhile, the acknowledged cell is returned together with
// ErrStaleCache. On failure, including an acknowledgement without the
// submitted cell, the store is left as it was and the workflow returns to
// RoleSelecting.
func (w *Workflow) Confirm(ctx context.Context) (cell.Cell, error) {
	w.mu.Lock()
	switch w.state {
	case Submitting:
		w.mu.Unlock()
		return cell.Cell{}, ErrBusy
	case ConfirmingChange:
	default:
		w.mu.Unlock()
		return cell.Cell{}, ErrInvalidState
	}

	conf := w.pending
	latest, err := w.store.GetCell(conf.Cell.ID)
	if err == nil {
		err = w.validate(latest, conf.NewRole, conf.Reason)
	}
	if err != nil {
		w.state = RoleSelecting
		w.mu.Unlock()
		return cell.Cell{}, err
	}
	w.state = Submitting
	w.mu.Unlock()

	w.store.SetLoading(cellstore.OpChangeRole, true)
	res, err := w.svc.ChangeCellRole(ctx, conf.Cell.ID, conf.NewRole, conf.Reason)
	w.store.SetLoading(cellstore.OpChangeRole, false)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Warn("role change failed", "cell_id", conf.Cell.ID, "new_role", conf.NewRole, "error", err)
		w.state = RoleSelecting
		return cell.Cell{}, err
	}

	ack, err := acknowledged(res, conf.Cell.ID)
	if err != nil {
		w.logger.Warn("unusable role change acknowledgement", "cell_id", conf.Cell.ID, "error", err)
		w.state = RoleSelecting
		return cell.Cell{}, err
	}
	w.logger.Info("role changed", "cell_id", ack.ID, "old_role", conf.OldRole, "new_role", ack.EffectiveRole())
	w.reset()
	return ack, w.patch(ack)
}

// acknowledged extracts the cell the backend reports for cellID.
func acknowledged(res cell.ChangeRoleResult, cellID uuid.UUID) (cell.Cell, error) {
	if res.Cell == nil {
		return cell.Cell{}, client.ErrBadAcknowledgement
	}
	if res.Cell.ID != cellID {
		return cell.Cell{}, fmt.Errorf("%w: got cell %s, want %s", client.ErrBadAcknowledgement, res.Cell.ID, cellID)
	}
	return *res.Cell, nil
}

func (w *Workflow) patch(ack cell.Cell) error {
	if _, err := w.store.PatchCell(ack.ID, cellstore.PatchFromCell(ack)); err != nil {
		w.logger.Warn("acknowledged cell not in store", "cell_id", ack.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrStaleCache, err)
	}
	return nil
}

// RequestRoleChange runs the whole dialog for one cell without pausing for
// operator confirmation.
func (w *Workflow) RequestRoleChange(ctx context.Context, cellID uuid.UUID, newRole cell.Role, reason string) (cell.Cell, error) {
	if _, err := w.Open(cellID); err != nil {
		return cell.Cell{}, err
	}
	if _, err := w.SelectRole(newRole, reason); err != nil {
		return cell.Cell{}, err
	}
	return w.Confirm(ctx)
}

func (w *Workflow) validate(c cell.Cell, newRole cell.Role, reason string) error {
	if !c.IsPassage && !cell.CatalogHas(w.catalog, newRole) {
		return &ValidationError{Field: "new_role", Err: fmt.Errorf("%w: %q", cell.ErrUnknownRole, newRole)}
	}
	if err := cell.ValidateRoleChange(c, newRole, reason); err != nil {
		return &ValidationError{Field: fieldFor(err), Err: err}
	}
	return nil
}

func (w *Workflow) reset() {
	w.state = Idle
	w.current = cell.Cell{}
	w.pending = Confirmation{}
}

// errIsValidation reports whether err came from local precondition checks.
func errIsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
