package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/activityfeed/internal/activitystore"
	"example.com/activityfeed/internal/api"
	"example.com/activityfeed/internal/auth"
	"example.com/activityfeed/internal/config"
	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/logging"
	"example.com/activityfeed/internal/notifier"
	"example.com/activityfeed/internal/outbox"
	"example.com/activityfeed/internal/persistence/postgres"
	"example.com/activityfeed/internal/presentation"
	"example.com/activityfeed/internal/realtime"
	"example.com/activityfeed/internal/realtime/kafka"
	"example.com/activityfeed/internal/realtime/pgnotify"
	httptransport "example.com/activityfeed/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	service := domain.NewService(repo)
	store := activitystore.New(repo, activitystore.WithLogger(component(logger, "activity_store")))

	var (
		producer   *outbox.KafkaProducer
		dispatcher *outbox.Dispatcher
	)
	if cfg.OutboxEnabled {
		producer = outbox.NewKafkaProducer(cfg.KafkaBrokers)
		dispatcher = outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(component(logger, "outbox")))
		go dispatcher.Start(ctx)
	}

	var (
		hub     *presentation.Hub
		surface presentation.Surface
	)
	switch cfg.Presentation {
	case config.PresentationLog:
		surface = presentation.NewLogSurface(component(logger, "presentation"))
	default:
		hub = presentation.NewHub(cfg.AllowedOrigin, presentation.WithHubLogger(component(logger, "hub")))
		surface = hub
	}
	clock := clockwork.NewRealClock()
	instanceID := uuid.NewString()

	app := notifier.New(notifier.Dependencies{
		Store:       store,
		Channel:     realtimeChannel(cfg, pool, instanceID, logger),
		Topic:       cfg.RealtimeTopic,
		Sink:        presentation.NewSink(surface, clock),
		ActivityLog: service,
		Config:      cfg.Notify,
	}, notifier.WithClock(clock), notifier.WithLogger(component(logger, "notifier")), notifier.WithSessionID(instanceID))
	app.Init(ctx)

	var display http.Handler
	if hub != nil {
		display = hub
	}
	handler := api.NewHandler(service, app, display)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux,
			httptransport.RequestLogger(component(logger, "http")),
			httptransport.CORS(cfg.AllowedOrigin),
			authMiddleware.Wrap,
		))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Msg("activity notifier listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh

	app.Destroy()
	if hub != nil {
		hub.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close kafka producer")
		}
	}
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func realtimeChannel(cfg config.Config, pool *pgxpool.Pool, instanceID string, logger zerolog.Logger) realtime.Channel {
	switch cfg.RealtimeDriver {
	case config.DriverKafka:
		return kafka.NewChannel(cfg.KafkaBrokers, cfg.ConsumerGroupID,
			kafka.WithInstanceID(instanceID),
			kafka.WithLogger(component(logger, "realtime_kafka")))
	case config.DriverPostgres:
		return pgnotify.NewChannel(pool, pgnotify.WithLogger(component(logger, "realtime_pgnotify")))
	default:
		return realtime.Unavailable{Reason: "realtime driver " + cfg.RealtimeDriver + " disabled"}
	}
}
