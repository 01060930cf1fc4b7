package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venuepark/internal/api"
	"venuepark/internal/cache"
	"venuepark/internal/config"
	"venuepark/internal/database"
	"venuepark/internal/events"
	"venuepark/internal/lock"
	"venuepark/internal/metrics"
	"venuepark/internal/notify"
	"venuepark/internal/repository"
	"venuepark/internal/service"
	"venuepark/internal/storage"
	"venuepark/shared/access"
	"venuepark/shared/audit"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("VENUEPARK_CONFIG_PATH"))
	if err != nil {
		fallback := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store repository.Store
		db    *database.DB
	)
	switch cfg.Database.Driver {
	case "memory":
		store = repository.NewMemoryStore()
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	default:
		db, err = database.NewDB(cfg.Database.Path, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open db error")
		}
		store = db
	}
	defer store.Close()

	if err := store.SetAdmins(ctx, cfg.Admins); err != nil {
		logger.Fatal().Err(err).Msg("failed to sync admins")
	}

	var (
		rdb    *redis.Client
		locker lock.Locker = lock.NewKeyed()
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.Redis.LockTTL(), logger)
	}
	venues := cache.NewVenues(store, rdb, cfg.Redis.CacheTTL(), logger)

	bus := events.NewEventBus(func(e events.Event, err error) {
		logger.Error().Err(err).Str("event", e.Type).Str("event_id", e.ID).Msg("event handler failed")
	})

	if cfg.RabbitMQ.URL != "" {
		forwarder, err := events.NewAMQPForwarder(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Error().Err(err).Msg("rabbitmq unavailable, events stay in-process")
		} else {
			defer forwarder.Close()
			bus.SubscribeAll(forwarder.Handle)
		}
	}

	var telegram *notify.Telegram
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.AdminChatIDs) > 0 {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("telegram bot unavailable, admin notifications disabled")
		} else {
			telegram = notify.NewTelegram(botAPI, cfg.Telegram.AdminChatIDs, logger)
			bus.SubscribeAll(telegram.HandleEvent)
		}
	}

	var s3 *storage.S3
	if cfg.S3.Bucket != "" {
		s3, err = storage.NewS3(cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			logger.Error().Err(err).Msg("s3 unavailable, artifacts stay local")
		}
	}

	deps := service.Deps{
		Store:    store,
		Venues:   venues,
		Access:   access.NewService(store, logger),
		Locker:   locker,
		Events:   bus,
		Location: loc,
		Logger:   logger,
	}
	bookings := service.NewBookingService(deps)
	venueService := service.NewVenueService(deps, bookings)
	auth := api.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.PlatformSecret, cfg.TokenTTL())
	svc := api.Services{
		Bookings: bookings,
		Parking: service.NewParkingService(deps, service.ParkingDefaults{
			TotalSpaces:      cfg.Parking.DefaultTotalSpaces,
			ExpectedDuration: cfg.Parking.DefaultExpectedDuration,
		}),
		Venues: venueService,
		Users:  service.NewUserService(deps, auth, auth),
		Access: deps.Access,
	}

	// Initial load + hot reload of the venue catalog
	watcher := config.NewVenuesWatcher(cfg.Venues.Path, cfg.VenuesWatchInterval(), venueService.SyncCatalog, logger)
	if err := watcher.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load venues config")
	}
	go watcher.Run(ctx)

	if cfg.Export.Enabled {
		var (
			notifier audit.Notifier
			uploader audit.Uploader
		)
		if telegram != nil {
			notifier = telegram
		}
		if s3 != nil {
			uploader = s3
		}
		exporter := audit.NewService(audit.Config{Dir: cfg.Export.Dir, Location: loc}, store, audit.NewExcelizeWriter, notifier, uploader, logger)
		exporter.Start()
		defer exporter.Stop()
		svc.Exporter = exporter
	}

	if db != nil && cfg.Backup.Enabled {
		var uploader database.Uploader
		if s3 != nil {
			uploader = s3
		}
		backup := database.NewBackupService(db, cfg.Backup, uploader, &logger)
		go backup.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, store, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(cfg.HTTP, svc, auth, loc, logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api shutdown error")
		}
	}()

	logger.Info().Str("env", cfg.App.Env).Str("driver", cfg.Database.Driver).Msg("venuepark started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("venuepark stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Logging.Format == "json" {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

type pinger interface {
	Ping(ctx context.Context) error
}

func startHealthServer(ctx context.Context, port int, store pinger, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := store.Ping(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg(name + " server error")
	}
}
