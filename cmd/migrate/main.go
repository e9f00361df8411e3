package main

import (
	"log/slog"
	"os"

	"workoutmap/backend/internal/config"
	"workoutmap/backend/internal/db"
	"workoutmap/backend/migrations"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

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

	logger.Info("migrations applied successfully", slog.Any("files", applied))
}
