package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"authsystem/internal/config"
	"authsystem/internal/database"
	"authsystem/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("migrate failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadMigrate()
	if err != nil {
		return err
	}

	logger, closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.ApplyMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("migrations applied successfully")
	return nil
}
