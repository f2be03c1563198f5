package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"macrostress/internal/capital"
	apierrors "macrostress/internal/errors"
	"macrostress/internal/middleware"
	"macrostress/internal/services"
	"macrostress/internal/trough"
)

// RunsHandler starts stress test runs and serves the latest result.
type RunsHandler struct {
	service   StressService
	validator *middleware.Validator
	errors    *apierrors.ErrorHandler
	logger    *slog.Logger
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(service StressService, validator *middleware.Validator, errors *apierrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		service:   service,
		validator: validator,
		errors:    errors,
		logger:    logger.With(slog.String("handler", "runs")),
	}
}

// Routes sets up the run routes
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	r.Route("/latest", func(r chi.Router) {
		r.Get("/", h.Latest)
		r.Get("/results", h.Results)
		r.Get("/trough", h.Trough)
		r.Get("/breaches", h.Breaches)
		r.Get("/losses", h.Losses)
		r.Get("/loss-rates/{scenario}", h.LossRates)
	})
	r.Delete("/{id}", h.Cancel)
	return r
}

// Start handles POST /api/runs. The run executes within the request; the
// response carries the full result.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req services.RunRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	res, err := h.service.Run(r.Context(), req)
	if err != nil {
		if res != nil {
			h.logger.WarnContext(r.Context(), "run_failed",
				slog.String("run_id", res.ID),
				slog.String("status", string(res.Status)),
				slog.String("error", err.Error()))
		}
		h.errors.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, res)
}

func (h *RunsHandler) latest(w http.ResponseWriter, r *http.Request) *services.RunResult {
	res, err := h.service.Latest()
	if err != nil {
		if apierrors.IsType(err, apierrors.ErrTypeNotFound) {
			err = apierrors.ErrNoRun
		}
		h.errors.HandleError(w, r, err)
		return nil
	}
	return res
}

// Latest handles GET /api/runs/latest
func (h *RunsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if res := h.latest(w, r); res != nil {
		render.JSON(w, r, res)
	}
}

// Results handles GET /api/runs/latest/results. Optional scenario and bank
// query parameters filter the rows.
func (h *RunsHandler) Results(w http.ResponseWriter, r *http.Request) {
	res := h.latest(w, r)
	if res == nil {
		return
	}
	var rows []capital.ResultRow
	if table := res.Results(); table != nil {
		rows = table.Filter(r.URL.Query().Get("scenario"), r.URL.Query().Get("bank"))
	}
	if rows == nil {
		rows = []capital.ResultRow{}
	}
	render.JSON(w, r, rows)
}

// Trough handles GET /api/runs/latest/trough
func (h *RunsHandler) Trough(w http.ResponseWriter, r *http.Request) {
	if res := h.latest(w, r); res != nil {
		render.JSON(w, r, res.Trough)
	}
}

// Breaches handles GET /api/runs/latest/breaches
func (h *RunsHandler) Breaches(w http.ResponseWriter, r *http.Request) {
	res := h.latest(w, r)
	if res == nil {
		return
	}
	rows := trough.Breaches(res.Trough)
	if rows == nil {
		rows = []trough.Row{}
	}
	render.JSON(w, r, rows)
}

// Losses handles GET /api/runs/latest/losses
func (h *RunsHandler) Losses(w http.ResponseWriter, r *http.Request) {
	if res := h.latest(w, r); res != nil {
		render.JSON(w, r, res.Losses())
	}
}

// LossRates handles GET /api/runs/latest/loss-rates/{scenario}
func (h *RunsHandler) LossRates(w http.ResponseWriter, r *http.Request) {
	res := h.latest(w, r)
	if res == nil {
		return
	}
	name := chi.URLParam(r, "scenario")
	frame, err := res.LossRates(name)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, newFrameView(name, frame))
}

// Cancel handles DELETE /api/runs/{id}
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(id); err != nil {
		h.errors.HandleError(w, r, apierrors.NotFoundError("running operation "+id))
		return
	}
	h.logger.InfoContext(r.Context(), "run_cancel_requested", slog.String("run_id", id))
	w.WriteHeader(http.StatusAccepted)
}
