package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "macrostress/internal/errors"
	"macrostress/internal/middleware"
	"macrostress/internal/services"
)

// ScenariosHandler previews scenario paths.
type ScenariosHandler struct {
	service StressService
	errors  *apierrors.ErrorHandler
	logger  *slog.Logger
}

// NewScenariosHandler creates a ScenariosHandler.
func NewScenariosHandler(service StressService, errors *apierrors.ErrorHandler, logger *slog.Logger) *ScenariosHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScenariosHandler{
		service: service,
		errors:  errors,
		logger:  logger.With(slog.String("handler", "scenarios")),
	}
}

// Generate handles GET /api/scenarios?start=&horizon=&severity=&persistence=
func (h *ScenariosHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, err := scenarioRequestFromQuery(r)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	set, err := h.service.Scenarios(req)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	views := make([]FrameView, len(set))
	for i, s := range set {
		views[i] = newFrameView(s.Name, s.Path)
	}
	render.JSON(w, r, views)
}

func scenarioRequestFromQuery(r *http.Request) (services.ScenarioRequest, error) {
	req := services.ScenarioRequest{Start: r.URL.Query().Get("start")}
	var err error
	if req.Horizon, err = middleware.QueryInt(r, "horizon"); err != nil {
		return req, err
	}
	if req.Severity, err = middleware.QueryFloat(r, "severity"); err != nil {
		return req, err
	}
	if req.Persistence, err = middleware.QueryFloat(r, "persistence"); err != nil {
		return req, err
	}
	return req, nil
}
