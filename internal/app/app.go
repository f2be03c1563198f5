package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"macrostress/internal/config"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/infrastructure"
	customMiddleware "macrostress/internal/middleware"
	"macrostress/internal/services"
	handlers "macrostress/internal/transport/http"
	ws "macrostress/internal/websocket"
)

// Application represents the main application container
type Application struct {
	Config    *config.Config
	Paths     *config.Paths
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Router    *chi.Mux
	Server    *http.Server

	WebSocketHub  *ws.Hub
	StressService *services.StressTestService
	HealthService *services.HealthService
	Errors        *apperrors.ErrorHandler

	version  string
	traceOut io.Writer

	mu       sync.Mutex
	listener net.Listener
	stopOnce sync.Once
	stopErr  error
}

// Option customises NewApplication.
type Option func(*Application)

// WithLogger uses logger instead of the process-wide logger built from
// cfg.Logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) { a.Logger = logger }
}

// WithPaths uses already resolved paths instead of resolving cfg.Paths
// against the working directory.
func WithPaths(paths *config.Paths) Option {
	return func(a *Application) { a.Paths = paths }
}

// WithVersion sets the version reported by /api/version and telemetry.
func WithVersion(version string) Option {
	return func(a *Application) { a.version = version }
}

// WithTraceOutput redirects stdout span export.
func WithTraceOutput(w io.Writer) Option {
	return func(a *Application) { a.traceOut = w }
}

// NewApplication wires configuration, logging, telemetry, services, the router
// and the HTTP server. Nothing listens until Start or Run.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	a := &Application{Config: cfg, version: config.AppVersion}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Logger = logger
	}
	a.Logger.Info("application_starting",
		slog.String("name", config.AppName),
		slog.String("version", a.version))

	if a.Paths == nil {
		paths, err := cfg.GetPaths()
		if err != nil {
			return nil, fmt.Errorf("failed to get paths: %w", err)
		}
		a.Paths = paths
	}
	if err := a.Paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	a.Paths.LogPathResolution(a.Logger)

	tel, err := infrastructure.InitializeTelemetry(cfg.Telemetry, a.version, a.traceOut, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.Telemetry = tel

	if err := a.initializeServices(); err != nil {
		if a.WebSocketHub != nil {
			a.WebSocketHub.Stop()
		}
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) initializeServices() error {
	a.Errors = apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")
	a.WebSocketHub = ws.NewHub(a.Logger, ws.WithTelemetry(a.Telemetry))
	a.WebSocketHub.Start()

	stress, err := services.NewStressTestService(a.Config, a.Paths, a.WebSocketHub, a.Telemetry, a.Logger)
	if err != nil {
		return err
	}
	a.StressService = stress
	a.HealthService = services.NewHealthService(a.version, a.Paths, stress, a.WebSocketHub, a.Telemetry.Runtime, a.Logger)
	return nil
}

// setupRouter mounts /ws and /metrics outside the request middleware so
// upgraded connections and scrapes are not wrapped, logged or rate limited.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.NotFound(a.Errors.NotFound)
	r.MethodNotAllowed(a.Errors.MethodNotAllowed)

	r.Handle(config.WebSocketEndpoint,
		ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))
	r.Handle(config.MetricsEndpoint, a.Telemetry.MetricsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → headers → rate limit
		r.Use(customMiddleware.HTTPTelemetry(a.Telemetry))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Errors))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
		}))
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Errors, a.Logger).Handler)
		}
		r.Route(config.APIBasePath, a.setupAPIRoutes)
	})

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Use(render.SetContentType(render.ContentTypeJSON))

	health := handlers.NewHealthHandler(a.HealthService, a.Logger)
	banks := handlers.NewBanksHandler(a.StressService, a.Errors, a.Logger)
	scenarios := handlers.NewScenariosHandler(a.StressService, a.Errors, a.Logger)
	data := handlers.NewDataHandler(a.Paths, a.Errors, a.Logger)
	runs := handlers.NewRunsHandler(a.StressService, customMiddleware.NewValidator(a.Logger), a.Errors, a.Logger)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout))
		r.Get("/health", health.HealthCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/version", health.Version)
		r.Mount("/banks", banks.Routes())
		r.Get("/scenarios", scenarios.Generate)
		r.Get("/data", data.Inventory)
	})

	// Runs execute inside the request, so they get the run timeout.
	r.With(customMiddleware.Timeout(a.Config.Server.RunTimeout)).
		Mount("/runs", runs.Routes())
}

func (a *Application) createServer() {
	sc := a.Config.Server
	writeTimeout := sc.WriteTimeout
	if sc.RunTimeout+5*time.Second > writeTimeout {
		writeTimeout = sc.RunTimeout + 5*time.Second
	}
	a.Server = &http.Server{
		Addr:           net.JoinHostPort(sc.Host, fmt.Sprint(sc.Port)),
		Handler:        a.Router,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    sc.IdleTimeout,
		MaxHeaderBytes: sc.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Start binds the listening socket. It does not serve; call Serve or use Run.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return apperrors.NewNetworkError("failed to listen on "+a.Server.Addr, err)
	}
	a.listener = ln

	a.Logger.InfoContext(ctx, "application_started",
		slog.String("address", ln.Addr().String()),
		slog.String("output_dir", a.Paths.OutputDir),
		slog.String("level", a.Config.Logging.Level))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Serve accepts connections until Stop. It returns nil after a graceful
// shutdown.
func (a *Application) Serve() error {
	a.mu.Lock()
	ln := a.listener
	a.mu.Unlock()
	if ln == nil {
		return errors.New("app: Serve called before Start")
	}
	if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server, the websocket hub, the stress service and
// the telemetry providers. Later calls return the first call's result.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "shutting_down_application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		a.WebSocketHub.Stop()
		a.StressService.Close()
		if err := a.Telemetry.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "telemetry_shutdown_failed", slog.String("error", err.Error()))
		}

		a.stopErr = errors.Join(errs...)
		a.Logger.InfoContext(ctx, "application_shutdown_complete")
	})
	return a.stopErr
}

// Run starts the application and serves until ctx is cancelled, SIGINT or
// SIGTERM arrives, or the server fails; then it shuts down.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.Serve)
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.Logger.Info("received_shutdown_signal")
		}
		return a.Stop(context.WithoutCancel(ctx))
	})
	return g.Wait()
}
