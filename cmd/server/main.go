package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/jobs"
	"github.com/anonto42/riseup-connect/backend/internal/middleware"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/anonto42/riseup-connect/backend/internal/router"
	"github.com/anonto42/riseup-connect/backend/internal/services"
	"github.com/anonto42/riseup-connect/backend/pkg/config"
	"github.com/anonto42/riseup-connect/backend/pkg/firebase"
	"github.com/anonto42/riseup-connect/backend/pkg/logger"
	"github.com/anonto42/riseup-connect/backend/pkg/mailer"
	"github.com/anonto42/riseup-connect/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize databases")
	}
	defer db.CloseDB()

	// Firebase is optional; without it firebase-login answers 503
	var verifier services.TokenVerifier
	app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	switch {
	case err == nil:
		verifier = app.AuthClient
	case errors.Is(err, firebase.ErrNotConfigured):
		log.Info("firebase not configured, firebase-login disabled")
	default:
		log.WithError(err).Fatal("failed to initialize Firebase")
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler(log)
	e.Validator = validators.NewValidator()

	config.SetupMiddleware(e, cfg, log)
	router.SetupRoutes(e, router.Deps{
		DB:       db,
		Config:   cfg,
		Firebase: verifier,
		Mailer:   mailer.New(cfg.ResendAPIKey, cfg.FromEmail, int(models.OTPTTL.Minutes()), log),
		Log:      log,
	})

	metricsServer := echo.New()
	metricsServer.HideBanner = true
	metricsServer.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	reclaimer := jobs.NewReclaimer(map[string]jobs.ExpiredDeleter{
		"moments": repositories.NewMongoMomentRepository(db.MongoDB),
		"otps":    repositories.NewMongoOTPRepository(db.MongoDB),
	}, log)
	if cfg.ReclaimSchedule != "" {
		if err := reclaimer.Start(cfg.ReclaimSchedule); err != nil {
			log.WithError(err).Fatal("invalid RECLAIM_SCHEDULE")
		}
		defer reclaimer.Stop()
	}

	go func() {
		if err := metricsServer.Start(":" + cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("metrics server shutdown")
	}
}
