package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"workoutmap/backend/internal/config"
	"workoutmap/backend/internal/db"
	"workoutmap/backend/internal/handler"
	"workoutmap/backend/internal/repository"
	"workoutmap/backend/internal/router"
	"workoutmap/backend/internal/service"
	"workoutmap/backend/internal/storage"
	"workoutmap/backend/migrations"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	gin.SetMode(cfg.GinMode)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", slog.String("path", cfg.DBPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close()

	applied, err := db.RunMigrations(database, migrations.FS)
	if err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Debug("migrations applied", slog.Any("files", applied))

	store := storage.NewWorkoutStore(repository.NewSlotRepository(database), logger)
	deviceService := service.NewDeviceService(cfg.JWTSecret, cfg.TokenTTL)
	trackerService := service.NewTrackerService(store, service.TrackerConfig{
		Slot:           cfg.StorageKey,
		FallbackCenter: cfg.FallbackCenter,
		Zoom:           cfg.MapZoom,
		IdleTTL:        cfg.TrackerIdleTTL,
	}, logger)

	engine := router.New(
		deviceService,
		handler.NewDeviceHandler(deviceService),
		handler.NewTrackerHandler(trackerService, logger),
		handler.NewPageHandler(""),
		cfg.CORSOrigins,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("workout map listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("run server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
}
