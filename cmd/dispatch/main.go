package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/ridecore/dispatch/internal/drivers"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/httpapi"
	"github.com/ridecore/dispatch/internal/idempotency"
	"github.com/ridecore/dispatch/internal/locationindex"
	"github.com/ridecore/dispatch/internal/matching"
	"github.com/ridecore/dispatch/internal/notifications"
	"github.com/ridecore/dispatch/internal/payments"
	"github.com/ridecore/dispatch/internal/ridecache"
	"github.com/ridecore/dispatch/internal/rides"
	"github.com/ridecore/dispatch/internal/surge"
	"github.com/ridecore/dispatch/internal/trips"
	"github.com/ridecore/dispatch/pkg/config"
	"github.com/ridecore/dispatch/pkg/database"
	"github.com/ridecore/dispatch/pkg/errors"
	"github.com/ridecore/dispatch/pkg/health"
	"github.com/ridecore/dispatch/pkg/logger"
	"github.com/ridecore/dispatch/pkg/ratelimit"
	redisclient "github.com/ridecore/dispatch/pkg/redis"
	"github.com/ridecore/dispatch/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName = "dispatch-core"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dispatch core",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	tracerEnabled := os.Getenv("OTEL_ENABLED") == "true"
	if tracerEnabled {
		tracerCfg := tracing.Config{
			ServiceName:    os.Getenv("OTEL_SERVICE_NAME"),
			ServiceVersion: os.Getenv("OTEL_SERVICE_VERSION"),
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Enabled:        true,
		}
		tp, err := tracing.InitTracer(tracerCfg, logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
			tracerEnabled = false
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized successfully")
		}
	}

	db, err := database.NewPostgresPool(&cfg.Database, cfg.Timeout.DatabaseQueryTimeout)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisConn, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisConn.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	logger.Info("Connected to redis")

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redisConn.Client, cfg.RateLimit)
		logger.Info("Rate limiting enabled",
			zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
			zap.Int("default_burst", cfg.RateLimit.DefaultBurst),
			zap.Duration("window", cfg.RateLimit.Window()),
		)
	}

	natsURL := os.Getenv("NATS_URL")
	var natsConn *nats.Conn
	if natsURL != "" {
		natsConn, err = nats.Connect(natsURL)
		if err != nil {
			logger.Warn("Failed to connect to NATS, events will be dropped", zap.Error(err))
		} else {
			defer natsConn.Close()
			logger.Info("Connected to NATS", zap.String("url", natsURL))
		}
	}
	publisher := events.New(natsConn)

	locationIndex := locationindex.New(redisConn)
	surgeEngine := surge.New(redisConn, locationIndex)
	rideCache := ridecache.New(redisConn)
	idempotencyStore := idempotency.New(redisConn, db)

	var smsNotifier *notifications.Notifier
	if sid := cfg.Notifications.TwilioAccountSID; sid != "" {
		smsClient := notifications.NewSMSClient(sid, cfg.Notifications.TwilioAuthToken, cfg.Notifications.TwilioFromNumber)
		smsNotifier = notifications.NewNotifier(smsClient)
		logger.Info("SMS notifications enabled via Twilio")
	}

	matchingRepo := matching.NewRepository(db)
	matchingEngine := matching.NewEngine(matchingRepo, locationIndex, redisConn, publisher)
	if smsNotifier != nil {
		matchingEngine.EnableSMSNotifications(smsNotifier, matchingRepo)
	}

	ridesRepo := rides.NewRepository(db)
	ridesService := rides.NewService(ridesRepo, surgeEngine, matchingEngine, rideCache, publisher)
	if smsNotifier != nil {
		ridesService.EnableSMSNotifications(smsNotifier, ridesRepo)
	}
	ridesHandler := rides.NewHandler(ridesService)

	driversRepo := drivers.NewRepository(db)
	driversService := drivers.NewService(driversRepo, locationIndex, publisher)
	driversHandler := drivers.NewHandler(driversService)

	tripsRepo := trips.NewRepository(db)
	tripsService := trips.NewService(tripsRepo, ridesRepo, publisher)
	tripsHandler := trips.NewHandler(tripsService)

	paymentsRepo := payments.NewRepository(db)
	pspClient := payments.NewMockPSPClient()
	paymentsService := payments.NewService(paymentsRepo, tripsRepo, idempotencyStore, pspClient)
	paymentsHandler := payments.NewHandler(paymentsService)

	expiryCtx, cancelExpiry := context.WithCancel(context.Background())
	go matchingEngine.RunExpiryLoop(expiryCtx)
	defer cancelExpiry()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	healthChecks := map[string]func() error{
		"postgres": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		},
		"redis": health.RedisChecker(redisConn.Client),
	}

	router := httpapi.New(httpapi.Handlers{
		Rides:    ridesHandler,
		Drivers:  driversHandler,
		Trips:    tripsHandler,
		Payments: paymentsHandler,
	}, httpapi.Deps{
		ServiceName:      serviceName,
		Version:          version,
		Timeout:          cfg.Timeout,
		RateLimit:        cfg.RateLimit,
		Limiter:          limiter,
		IdempotencyRedis: redisConn,
		TracingEnabled:   tracerEnabled,
		HealthChecks:     healthChecks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
