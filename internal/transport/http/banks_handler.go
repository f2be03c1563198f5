package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"macrostress/internal/balancesheet"
	apierrors "macrostress/internal/errors"
)

// BanksHandler serves the configured banks' starting positions.
type BanksHandler struct {
	service StressService
	errors  *apierrors.ErrorHandler
	logger  *slog.Logger
}

// NewBanksHandler creates a BanksHandler.
func NewBanksHandler(service StressService, errors *apierrors.ErrorHandler, logger *slog.Logger) *BanksHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BanksHandler{
		service: service,
		errors:  errors,
		logger:  logger.With(slog.String("handler", "banks")),
	}
}

// Routes sets up the bank routes
func (h *BanksHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{name}", h.Get)
	return r
}

// List handles GET /api/banks
func (h *BanksHandler) List(w http.ResponseWriter, r *http.Request) {
	banks, err := h.service.Banks()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	views := make([]balancesheet.View, len(banks))
	for i, b := range banks {
		views[i] = b.View()
	}
	render.JSON(w, r, views)
}

// Get handles GET /api/banks/{name}
func (h *BanksHandler) Get(w http.ResponseWriter, r *http.Request) {
	bank, err := h.service.Bank(chi.URLParam(r, "name"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, bank.View())
}
