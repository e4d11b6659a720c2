package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/cellstore"
)

// BulkOutcome is the result for one targeted cell.
type BulkOutcome struct {
	CellID uuid.UUID  `json:"cell_id"`
	Coord  cell.Coord `json:"coord"`
	Cell   *cell.Cell `json:"cell,omitempty"`
	Err    error      `json:"-"`
}

// OK reports whether the change was acknowledged.
func (o BulkOutcome) OK() bool { return o.Err == nil }

// BulkResult summarizes a bulk change.
type BulkResult struct {
	Outcomes  []BulkOutcome
	Succeeded int
	Failed    int
	Skipped   int
}

// BulkChange moves every non-passage cell of view whose role is from to
// role to. Cells are submitted one at a time and each succeeds or fails on
// its own; the store is patched for acknowledged cells only. An
// acknowledged cell missing from the store keeps its Cell and fails with
// ErrStaleCache. Passages are counted as skipped.
func (w *Workflow) BulkChange(ctx context.Context, view []cell.Cell, from, to cell.Role, reason string) (BulkResult, error) {
	if !w.principal.IsAdmin() {
		return BulkResult{}, ErrAccessDenied
	}
	if !cell.CatalogHas(w.catalog, to) || !to.Valid() {
		return BulkResult{}, &ValidationError{Field: "new_role", Err: cell.ErrUnknownRole}
	}
	if from == to {
		return BulkResult{}, &ValidationError{Field: "new_role", Err: cell.ErrRoleUnchanged}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return BulkResult{}, &ValidationError{Field: "reason", Err: cell.ErrReasonRequired}
	}

	w.mu.Lock()
	if w.state == Submitting {
		w.mu.Unlock()
		return BulkResult{}, ErrBusy
	}
	prev := w.state
	w.state = Submitting
	w.mu.Unlock()

	w.store.SetLoading(cellstore.OpChangeRole, true)
	defer func() {
		w.store.SetLoading(cellstore.OpChangeRole, false)
		w.mu.Lock()
		w.state = prev
		w.mu.Unlock()
	}()

	var result BulkResult
	for _, c := range view {
		if c.EffectiveRole() != from {
			continue
		}
		if c.IsPassage {
			result.Skipped++
			continue
		}

		outcome := BulkOutcome{CellID: c.ID, Coord: c.Coord()}
		if err := ctx.Err(); err != nil {
			outcome.Err = err
		} else if res, err := w.svc.ChangeCellRole(ctx, c.ID, to, reason); err != nil {
			outcome.Err = err
		} else if ack, err := acknowledged(res, c.ID); err != nil {
			outcome.Err = err
		} else {
			outcome.Cell = &ack
			outcome.Err = w.patch(ack)
		}

		if outcome.OK() {
			result.Succeeded++
		} else {
			result.Failed++
			w.logger.Warn("bulk role change failed", "cell_id", c.ID, "error", outcome.Err)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	w.logger.Info("bulk role change", "from", from, "to", to,
		"succeeded", result.Succeeded, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}
