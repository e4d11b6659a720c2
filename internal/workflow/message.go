package workflow

import (
	"context"
	"errors"

	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/cellstore"
	"github.com/ryanbastic/go-cellgrid/internal/circuitbreaker"
	"github.com/ryanbastic/go-cellgrid/internal/client"
)

// UserMessage turns any workflow or backend error into a line an operator
// can act on.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAccessDenied):
		return "Only administrators can change cell roles."
	case errors.Is(err, ErrBusy):
		return "A role change is already being submitted. Wait for it to finish."
	case errors.Is(err, ErrInvalidState):
		return "Open a cell and choose a role first."
	case errors.Is(err, ErrStaleCache):
		return "The role was changed, but the loaded grid is out of date. Refresh the grid."
	case errors.Is(err, cellstore.ErrCellNotFound):
		return "That cell is not loaded. Refresh the grid and try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The backend did not answer in time. Try again."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	}

	if errIsValidation(err) {
		switch {
		case errors.Is(err, cell.ErrPassageCell):
			return "Passage cells have no role and cannot be changed."
		case errors.Is(err, cell.ErrRoleUnchanged):
			return "Choose a role different from the current one."
		case errors.Is(err, cell.ErrReasonRequired):
			return "Enter a reason for the change."
		case errors.Is(err, cell.ErrUnknownRole):
			return "Choose a role from the catalog."
		}
		return "Invalid input: " + err.Error()
	}

	detail := detailOf(err)
	switch client.CategoryOf(err) {
	case client.CategoryAuthorization:
		return "Not authorized: " + detail
	case client.CategoryValidation:
		return "The backend rejected the change: " + detail
	case client.CategoryNotFound:
		return "The cell no longer exists on the backend. Refresh the grid."
	case client.CategoryServer:
		return "The backend failed to process the request: " + detail
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return "The backend is unavailable. Try again in a moment."
	}
	return "Could not reach the backend. Check the connection and try again."
}

func detailOf(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return apiErr.Error()
	}
	return err.Error()
}
