package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/persons/internal/config"
	"github.com/JonMunkholm/persons/internal/core"
	"github.com/JonMunkholm/persons/internal/logging"
	"github.com/JonMunkholm/persons/internal/store"
	"github.com/JonMunkholm/persons/internal/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logs := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Rotation())
	defer logs.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"batch_size", cfg.Transfer.BatchSize,
		"page_row_limit", cfg.Transfer.PageRowLimit,
		"export_dir", cfg.Transfer.ExportDir,
		"rate_limit", cfg.Security.RateLimit,
		"api_key_required", cfg.Security.RequireAPIKey,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	defer st.Close()

	service := core.NewService(st, cfg.Transfer.ServiceConfig())
	server := web.NewServer(service, cfg)

	if err := server.Run(ctx, cfg.Server.Addr(), cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("server stopped", "error", err)
		return 1
	}
	slog.Info("server stopped")
	return 0
}
