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

	"github.com/redis/go-redis/v9"

	"sk3-portal/internal/config"
	"sk3-portal/internal/db"
	"sk3-portal/internal/evidence"
	"sk3-portal/internal/gateway"
	httphandler "sk3-portal/internal/http"
	"sk3-portal/internal/logger"
	"sk3-portal/internal/ocr"
	"sk3-portal/internal/repository"
	"sk3-portal/internal/service"
	"sk3-portal/internal/session"
	"sk3-portal/internal/validation"
	"sk3-portal/internal/views"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DB, cfg.Environment, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	journal := repository.NewActionLogRepository(database)

	checks := []httphandler.ReadinessCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return db.HealthCheck(ctx, database) },
	}}

	var backend session.Backend = session.NewMemoryBackend()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		backend = session.NewRedisBackend(rdb)
		checks = append(checks, httphandler.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	} else {
		log.Warn().Msg("REDIS_ADDR not set, sessions are kept in memory")
	}
	store := session.NewStore(backend, cfg.Session.TTL, log)
	tokens := session.NewTokens(cfg.Session.Secret, cfg.Session.TTL)

	archive, err := evidence.New(ctx, cfg.Evidence)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure ticket evidence storage")
	}

	client := gateway.New(cfg.API.BaseURL, cfg.API.Timeout, log)
	registry := views.NewRegistry(client, cfg.Poll, cfg.Session.IdleTTL, log)
	stopReaper := registry.Run(ctx)

	recognizer := ocr.NewTesseractRecognizer(cfg.OCR.TesseractPath, cfg.OCR.Lang)

	complaintService := service.NewComplaintService(client, registry, validation.NewDrafts(time.Hour), journal, log)
	taskforceService := service.NewTaskforceService(client, registry, recognizer, archive, cfg.OCR.Strict, journal, log)
	authService := service.NewAuthService(client, store, tokens, registry, log)

	handler := httphandler.NewHandler(complaintService, taskforceService, authService, httphandler.CookieConfig{
		Name:   cfg.Session.CookieName,
		TTL:    cfg.Session.TTL,
		Secure: cfg.Environment == "production",
	}, log)
	router := httphandler.NewRouter(handler, authService, cfg.Environment, checks...)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("api", cfg.API.BaseURL).Msg("starting sk3 portal")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	stopReaper()
	registry.Close()

	if err := db.Close(database); err != nil {
		log.Warn().Err(err).Msg("close journal database")
	}
}
