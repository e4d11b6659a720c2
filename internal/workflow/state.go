package workflow

import (
	"errors"
	"fmt"

	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

// State is the position of a workflow in the role-change dialog.
type State int

const (
	Idle State = iota
	RoleSelecting
	ConfirmingChange
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RoleSelecting:
		return "role_selecting"
	case ConfirmingChange:
		return "confirming_change"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrAccessDenied = errors.New("administrator role required")
	ErrBusy         = errors.New("a role change is already being submitted")
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrStaleCache means the backend applied the change but the store no
	// longer held the cell to patch.
	ErrStaleCache = errors.New("role changed but the loaded cells no longer contain the cell")
)

// ValidationError ties a precondition failure to the input it concerns so
// the frontend can show it next to that field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func fieldFor(err error) string {
	switch {
	case errors.Is(err, cell.ErrReasonRequired):
		return "reason"
	case errors.Is(err, cell.ErrPassageCell):
		return "cell"
	default:
		return "new_role"
	}
}

// Confirmation is what the operator acknowledges before submission.
type Confirmation struct {
	Cell     cell.Cell
	OldRole  cell.Role
	NewRole  cell.Role
	Reason   string
	Occupied bool
	Warning  string
}
