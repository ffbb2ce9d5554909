package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/simulation"
	"github.com/ehr/intake/internal/platform/clock"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/internal/platform/middleware"
	"github.com/ehr/intake/internal/platform/storage"
	"github.com/ehr/intake/internal/platform/telemetry"
	"github.com/ehr/intake/internal/platform/websocket"
)

const version = "0.1.0"

// eventsRoute streams a patient's session events over a websocket.
const eventsRoute = "/api/v1/patients/:patient_id/events"

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode")
	}

	ctx := context.Background()
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open storage")
		return err
	}
	defer st.Close()

	fixtures, err := simulation.LoadFixtures(cfg.FixturesFile)
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	hub := websocket.NewHub(logger)
	defer hub.CloseAll()

	opts := registryOptions(cfg, st, fixtures, metrics, clock.Real{}, logger)
	opts.Events = hub
	registry := intake.NewRegistry(opts)
	defer registry.Close()

	e := newServer(cfg, registry, hub, st, metrics, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func registryOptions(cfg *config.Config, st storage.Store, f *simulation.Fixtures, m *telemetry.Metrics, sched clock.Scheduler, logger zerolog.Logger) intake.Options {
	opts := intake.Options{
		Storage:      st,
		Scheduler:    sched,
		Logger:       logger,
		Metrics:      m,
		Fixtures:     f,
		SavedDisplay: cfg.SavedDisplay(),
	}
	if cfg.SimulationMode == string(simulation.ModeHasPreviousVisit) {
		opts.Loader = intake.FixtureLoader{Fixtures: f}
	}
	return opts
}

func newServer(cfg *config.Config, registry *intake.Registry, hub *websocket.Hub, st storage.Store, metrics *telemetry.Metrics, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout(), "/metrics", eventsRoute))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/storage", db.HealthHandler(st, cfg.StorageDriver))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	intake.NewHandler(registry).RegisterRoutes(apiV1.Group("/patients/:patient_id"))
	e.GET(eventsRoute, websocket.NewHandler(hub, intake.ValidatePatientID).HandleConnect)

	return e
}
