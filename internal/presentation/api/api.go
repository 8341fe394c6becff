package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/huddle/internal/infrastructure/auth"
	"github.com/hilthontt/huddle/internal/infrastructure/configs"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/hilthontt/huddle/internal/infrastructure/ratelimiter"
	authHandler "github.com/hilthontt/huddle/internal/presentation/handler/auth"
	healthHandler "github.com/hilthontt/huddle/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/huddle/internal/presentation/handler/messages"
	roomsHandler "github.com/hilthontt/huddle/internal/presentation/handler/rooms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Handlers struct {
	Auth     *authHandler.Handler
	Rooms    *roomsHandler.Handler
	Messages *messagesHandler.Handler
	Health   *healthHandler.Handler
	Gateway  http.Handler
}

// Shutdowner is stopped before the HTTP server, so open websockets are closed
// by their owner rather than cut by the server.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

type Application struct {
	config        configs.Config
	handlers      Handlers
	authenticator *auth.Authenticator
	metrics       *metrics.Metrics
	ratelimiter   ratelimiter.Limiter
	engine        Shutdowner
	logger        logging.Logger
}

// NewApplication wires the HTTP surface. metrics may be nil.
func NewApplication(
	config configs.Config,
	handlers Handlers,
	authenticator *auth.Authenticator,
	metrics *metrics.Metrics,
	ratelimiter ratelimiter.Limiter,
	engine Shutdowner,
	logger logging.Logger,
) *Application {
	return &Application{
		config:        config,
		handlers:      handlers,
		authenticator: authenticator,
		metrics:       metrics,
		ratelimiter:   ratelimiter,
		engine:        engine,
		logger:        logger,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.loggerMiddleware)
	if app.metrics != nil {
		r.Use(app.metricsMiddleware)
	}
	r.Use(app.enableCors)

	if app.metrics != nil {
		path := app.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, app.metrics.Handler())
	}
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/api", func(r chi.Router) {
		// Long-lived; must stay outside the request timeout.
		r.With(app.rateLimiterMiddleware).Get("/ws", app.handlers.Gateway.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/health", app.handlers.Health.GetHealth)
			r.Get("/healthz", app.handlers.Health.GetHealth)
			r.Get("/live", app.handlers.Health.GetHealth)
			r.Get("/ready", app.handlers.Health.GetReady)

			r.Group(func(r chi.Router) {
				r.Use(app.rateLimiterMiddleware)

				r.Route("/auth", func(r chi.Router) {
					r.Post("/signup", app.handlers.Auth.SignupHandler)
					r.Post("/login", app.handlers.Auth.LoginHandler)
					r.Post("/logout", app.handlers.Auth.LogoutHandler)
					r.With(app.authMiddleware).Get("/me", app.handlers.Auth.MeHandler)
				})

				r.Route("/rooms", func(r chi.Router) {
					r.Use(app.authMiddleware)

					r.Post("/", app.handlers.Rooms.CreateRoomHandler)
					r.Get("/", app.handlers.Rooms.ListRoomsHandler)
					r.Get("/{roomId}", app.handlers.Rooms.GetRoomHandler)
					r.Get("/{roomId}/messages", app.handlers.Messages.HistoryHandler)
					r.Get("/{roomId}/messages/latest", app.handlers.Messages.LatestHandler)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "huddle.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves mux until SIGINT or SIGTERM, then shuts the engine down followed
// by the server.
func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		if err := app.engine.Shutdown(ctx); err != nil {
			app.logger.Warn(logging.General, logging.Shutdown, "engine shutdown incomplete", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
