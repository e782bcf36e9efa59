package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"agripulse/internal/app"
)

func main() {
	// Optional .env for local development; missing file is fine
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	application, err := app.NewApplication(context.Background())
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
