package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/storage"
)

// roleChangeError maps a ChangeRole failure to an HTTP problem.
func roleChangeError(logger *slog.Logger, err error) huma.StatusError {
	switch {
	case errors.Is(err, storage.ErrCellNotFound):
		return huma.Error404NotFound("cell not found")
	case errors.Is(err, cell.ErrPassageCell),
		errors.Is(err, cell.ErrUnknownRole),
		errors.Is(err, cell.ErrRoleUnchanged),
		errors.Is(err, cell.ErrReasonRequired):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		logger.Error("failed to change cell role", "error", err)
		return huma.Error500InternalServerError("failed to change cell role")
	}
}

// writeProblem writes a problem+json body outside of huma handlers.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(&huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}); err != nil {
		slog.Default().Error("failed to encode problem response", "error", err)
	}
}
