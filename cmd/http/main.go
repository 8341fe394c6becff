package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/hilthontt/huddle/internal/application/broadcast"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/auth"
	"github.com/hilthontt/huddle/internal/infrastructure/configs"
	"github.com/hilthontt/huddle/internal/infrastructure/env"
	"github.com/hilthontt/huddle/internal/infrastructure/events"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/messaging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/hilthontt/huddle/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/huddle/internal/infrastructure/tracing"
	"github.com/hilthontt/huddle/internal/infrastructure/ws"
	"github.com/hilthontt/huddle/internal/persistence/db"
	"github.com/hilthontt/huddle/internal/persistence/repository"
	"github.com/hilthontt/huddle/internal/presentation/api"
	authHandler "github.com/hilthontt/huddle/internal/presentation/handler/auth"
	healthHandler "github.com/hilthontt/huddle/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/huddle/internal/presentation/handler/messages"
	roomsHandler "github.com/hilthontt/huddle/internal/presentation/handler/rooms"
)

const serviceName = "huddle"

func main() {
	env.Load(".env")

	cfg, err := configs.Load(configs.DetermineConfigPath(os.Args[1:]))
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	logger.Init()

	if err := run(cfg, logger); err != nil {
		logger.Fatal(logging.General, logging.Startup, "huddle stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func run(cfg *configs.Config, logger logging.Logger) error {
	ctx := context.Background()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: serviceName,
		Environment: cfg.Tracing.Environment,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	var checks []healthHandler.Check

	users, rooms, sqlDB, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	if sqlDB != nil {
		defer sqlDB.Close()
		checks = append(checks, healthHandler.Check{Name: "sqlite", Probe: sqlDB.PingContext})
	}

	store, badgerDB, err := openMessageStore(cfg)
	if err != nil {
		return err
	}
	if badgerDB != nil {
		defer badgerDB.Close()
		checks = append(checks, healthHandler.Check{Name: "badger", Probe: func(context.Context) error {
			if badgerDB.IsClosed() {
				return errors.New("message log is closed")
			}
			return nil
		}})
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	if err := rooms.InitializeSequence(ctx, domain.RoomIDSequence); err != nil {
		return fmt.Errorf("initialize room id sequence: %w", err)
	}

	var publisher domain.EventPublisher = events.NopPublisher{}
	if cfg.Messaging.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.Messaging.URI, cfg.Messaging.Exchange, logger)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer rabbitmq.Close()

		if err := events.NewRoomConsumer(rabbitmq, logger).Listen(cfg.Messaging.Queue); err != nil {
			return fmt.Errorf("start room consumer: %w", err)
		}
		publisher = events.NewRoomPublisher(rabbitmq)
	}

	registry := broadcast.NewRegistry()

	var m *metrics.Metrics
	observer := broadcast.Observer(nil)
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.TrackRooms(registry.RoomCount)
		observer = m
	}

	engine := broadcast.NewEngine(registry, store, users, logger,
		broadcast.Options{
			AppendTimeout:  cfg.MessageStore.AppendTimeout,
			PublishTimeout: cfg.Engine.PublishTimeout,
			HistoryLimit:   cfg.MessageStore.HistoryLimit,
		},
		broadcast.WithObserver(observer),
		broadcast.WithPublisher(publisher),
	)

	tokens := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	authenticator := auth.NewAuthenticator(tokens, users)

	eventLimiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.EventsPerSecond,
		MaxBurst:         cfg.RateLimiter.EventBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
	})
	gateway := ws.NewGateway(engine, authenticator, eventLimiter, logger, ws.Options{
		OutboxSize:     cfg.Engine.OutboxSize,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	requestLimiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	handlers := api.Handlers{
		Auth:     authHandler.NewHandler(users, auth.NewPasswordHasher(auth.DefaultArgon2Params), tokens, cfg.HTTP.SecureCookies, logger),
		Rooms:    roomsHandler.NewHandler(rooms, store, engine, publisher, logger),
		Messages: messagesHandler.NewHandler(store, cfg.MessageStore.HistoryLimit, logger),
		Health:   healthHandler.NewHandler(checks...),
		Gateway:  gateway,
	}

	metrics.PublishExpvars(engine.SessionCount, registry.RoomCount)

	app := api.NewApplication(*cfg, handlers, authenticator, m, requestLimiter, engine, logger)
	return app.Run(app.Mount())
}

// openCatalog returns the user and room repositories. sqlDB is nil for the
// memory driver.
func openCatalog(ctx context.Context, cfg *configs.Config) (repository.UserStore, domain.RoomRepository, *sql.DB, error) {
	if cfg.Storage.Driver == "memory" {
		return repository.NewMemoryUserRepository(), repository.NewMemoryRoomRepository(), nil, nil
	}

	sqlDB, err := db.OpenSQLite(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	return repository.NewSQLiteUserRepository(sqlDB), repository.NewSQLiteRoomRepository(sqlDB), sqlDB, nil
}

func openMessageStore(cfg *configs.Config) (domain.MessageStore, *badger.DB, error) {
	if cfg.MessageStore.Driver == "memory" {
		return repository.NewMemoryMessageStore(int(cfg.MessageStore.Capacity)), nil, nil
	}

	badgerDB, err := db.OpenBadger(cfg.MessageStore.Path)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewBadgerMessageStore(badgerDB), badgerDB, nil
}
