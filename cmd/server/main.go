// Package main is the entry point for the microblog server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars)
// 2. Create dependencies (logger, directories)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// A project might have multiple executables (e.g., cmd/server, cmd/migrate, cmd/cli).
// Each gets its own directory with its own main.go.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/microblog/internal/config"
	"github.com/sakif/microblog/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs human-readable logs.
	// os.Stdout means logs go to the terminal. slog.LevelDebug enables all log levels.
	//
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	// In production, you'd use LevelInfo or LevelWarn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// All knobs come from environment variables with sane dev defaults;
	// see internal/config for the full list (HTTP_PORT, DB_PATH,
	// JWT_SECRET, GOOGLE_CLIENT_ID, ...).
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. RESOLVE FILE PATHS ===
	// The "web" directory is at the project root; when running with
	// `go run ./cmd/server`, the working directory is the project root,
	// so these relative paths resolve correctly.
	templateDir, _ := filepath.Abs("web/templates")
	staticDir, _ := filepath.Abs("web/static")

	// Ensure the data directory exists.
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	dbDir := filepath.Dir(cfg.DB.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(server.Config{
		Port:               cfg.HTTP.Port,
		TemplateDir:        templateDir,
		StaticDir:          staticDir,
		DBPath:             cfg.DB.Path,
		AvatarDir:          cfg.Avatar.Dir,
		JWTSecret:          cfg.JWT.Secret,
		GoogleClientID:     cfg.Google.ClientID,
		GoogleClientSecret: cfg.Google.ClientSecret,
		GoogleCallbackURL:  cfg.Google.CallbackURL,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
