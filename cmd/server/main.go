package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/config"   // Internal config loader
	"github.com/iliyamo/room-reservation/internal/database" // MySQL connection and migrations
	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/logging"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/router" // Internal router setup
	"github.com/iliyamo/room-reservation/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil disables rate limiting and caching
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Domain events go to RabbitMQ when configured, otherwise to the log.
	var events service.EventPublisher = queue.LogPublisher{}
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL)
		defer pub.Close()
		events = pub

		consumer := queue.NewConsumer(cfg.RabbitMQURL, repository.NewAuditRepo(db))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reservations := service.NewReservationService(repository.NewReservationRepo(db), events, nil, nil)
	userSvc := service.NewUserService(users, tokens, events, cfg.BcryptCost, nil)
	settingsSvc := service.NewSettingsService(repository.NewSettingRepo(db), events, cfg.UploadDir, nil)

	cacheCfg := config.LoadCacheConfig()
	purge := func(ctx context.Context) error { return middleware.PurgeCache(ctx, cacheCfg, rdb) }

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recovery())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, cfg.JWTSecret))

	router.RegisterRoutes(e, db, cfg.UploadDir)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userSvc, tokens), cfg.JWTSecret)
	router.RegisterReservations(e, handler.NewReservationHandler(reservations, nil, cfg.RequestTimeout), cfg.JWTSecret)
	settings := handler.NewSettingsHandler(settingsSvc, purge, cfg.RequestTimeout)
	router.RegisterAdmin(e, handler.NewUserHandler(userSvc, cfg.RequestTimeout), settings, cfg.JWTSecret)
	router.RegisterPublic(e, settings, middleware.NewRedisCache(cacheCfg, rdb))

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
