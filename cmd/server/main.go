package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carmasterapp/car-master/internal/audit"
	"github.com/carmasterapp/car-master/internal/codec"
	"github.com/carmasterapp/car-master/internal/config"
	"github.com/carmasterapp/car-master/internal/database"
	"github.com/carmasterapp/car-master/internal/handler"
	"github.com/carmasterapp/car-master/internal/jobs"
	"github.com/carmasterapp/car-master/internal/metrics"
	"github.com/carmasterapp/car-master/internal/middleware"
	"github.com/carmasterapp/car-master/internal/redis"
	"github.com/carmasterapp/car-master/internal/repository"
	"github.com/carmasterapp/car-master/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	var (
		codeRepo     repository.CodeRepository
		activityRepo repository.ActivationLogRepository
		pinger       handler.Pinger
	)
	if cfg.UsesMemoryStore() {
		codeRepo = repository.NewMemoryCodeRepository()
		activityRepo = repository.NewMemoryActivationLogRepository()
		log.Warn().Msg("using in-memory code store")
	} else {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		cancel()
		log.Info().Msg("database connected")

		codeRepo = repository.NewCodeRepository(db)
		activityRepo = repository.NewActivationLogRepository(db)
		pinger = db
	}

	redeemLimits := service.RateLimitOptions{
		Scope:     "redeem",
		Threshold: cfg.RateLimitThreshold,
		Bucket:    cfg.RateLimitBucket(),
	}
	adminLimits := service.RateLimitOptions{
		Scope:     "admin",
		Threshold: config.AdminRateLimitThreshold,
		Bucket:    config.AdminRateLimitBucket,
	}

	var redeemLimiter, adminLimiter service.Limiter
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		redeemLimiter = service.NewRedisLimiter(redisClient.Client, redeemLimits)
		adminLimiter = service.NewRedisLimiter(redisClient.Client, adminLimits)
	} else {
		log.Info().Msg("REDIS_URL not set, rate limiting in process memory")
		redeemLimiter = service.NewMemoryLimiter(redeemLimits)
		adminLimiter = service.NewMemoryLimiter(adminLimits)
	}

	metrics.MustRegister()

	recorder := audit.NewActivationRecorder(activityRepo, cfg.AuditQueueSize)
	recorder.Start()
	defer recorder.Stop()

	codes := codec.New(cfg.CodePrefix, cfg.MasterKey)
	issuanceService := service.NewIssuanceService(codeRepo, codes)
	redemptionService := service.NewRedemptionService(codeRepo, codes, redeemLimiter, recorder, service.RedemptionOptions{
		ExpiryRevokesActivations: cfg.ExpiryRevokesActivations,
	})
	statsService := service.NewStatsService(codeRepo, activityRepo)

	adminAuthMiddleware := middleware.NewAdminAuthMiddleware(cfg.AdminTokenHash)
	adminRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(adminLimiter, config.AdminRateLimitBucket)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigin)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	premiumHandler := handler.NewPremiumHandler(redemptionService, cfg.RateLimitBucket())
	adminHandler := handler.NewAdminHandler(
		issuanceService, statsService, codeRepo, activityRepo,
		adminRateLimitMiddleware.Handler, adminAuthMiddleware.Handler,
	)
	healthHandler := handler.NewHealthHandler(pinger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(corsMiddleware.Handler)
		r.Mount("/", premiumHandler.Routes())
	})

	r.Mount("/admin", adminHandler.Routes())

	cleanupJob := jobs.NewCleanupJob(activityRepo, cfg.AuditRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("store", cfg.StoreBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
