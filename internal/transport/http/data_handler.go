package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"macrostress/internal/config"
	apierrors "macrostress/internal/errors"
	"macrostress/internal/files"
)

// DataHandler reports which inputs and reports are on disk.
type DataHandler struct {
	paths  *config.Paths
	errors *apierrors.ErrorHandler
	logger *slog.Logger
}

// NewDataHandler creates a DataHandler.
func NewDataHandler(paths *config.Paths, errors *apierrors.ErrorHandler, logger *slog.Logger) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataHandler{
		paths:  paths,
		errors: errors,
		logger: logger.With(slog.String("handler", "data")),
	}
}

// Inventory handles GET /api/data.
func (h *DataHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	inv, err := files.Scan(h.paths)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, inv)
}
