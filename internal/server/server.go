// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config and creates the logger, then Server.New() assembles:
//   sqlite.DB → repositories → services → handlers → routes
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/avatar"
	"github.com/sakif/microblog/internal/handler"
	"github.com/sakif/microblog/internal/middleware"
	sqliteRepo "github.com/sakif/microblog/internal/repository/sqlite"
	"github.com/sakif/microblog/internal/service"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to:
// - Add new config options without changing function signatures
// - Pass config around as a single value
// - Load config from files/env vars in one place
type Config struct {
	Port        string
	TemplateDir string
	StaticDir   string
	DBPath      string
	AvatarDir   string
	JWTSecret   string

	// Google OAuth. Leaving ClientID empty disables the /auth/google
	// routes; the rest of the app works without them.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection (db). When the server shuts down,
// we must close this connection to flush any pending writes and release the
// file lock. This is handled in Start() during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
// This is where the entire dependency chain is assembled:
//  1. Open the database (sqlite.New — runs migrations)
//  2. Create the auth pieces (token service, password service, Google verifier)
//  3. Create the services with their repository interfaces
//  4. Create the handlers with the services
//  5. Wire handlers to routes
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get services (not repositories or the DB)
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package. Import aliases are common in Go when
// package names would otherwise collide or be unclear.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /                       → home feed (HTML, public)
// GET  /static/*               → static files (CSS, JS)
// GET  /login, /register       → combined login/register page
// POST /login, /register       → local auth
// GET  /logout                 → clear the session cookie
// GET  /auth/google/login      → redirect to Google
// GET  /auth/google/callback   → finish OAuth (login or pending claim)
// GET/POST /register/username  → the claim step for pending registrations
// GET  /post/{id}              → single post page
// POST /posts                  → create a post (auth required)
// POST /like/{id}              → toggle a like (JSON, soft auth)
// POST /delete/{id}            → delete own post (JSON, auth required)
// GET  /profile                → own posts (auth required)
// GET  /avatar/{username}      → generated avatar PNG
// GET  /error                  → generic error page
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
// 5. ResolveSession — turns the session cookie into a model.Session for
//    every route; handlers read it from the request context
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	users := s.db.Users()
	posts := s.db.Posts()

	var verifier auth.IdentityVerifier
	if s.config.GoogleClientID != "" {
		verifier = auth.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL,
		)
	}

	generator, err := avatar.NewGenerator()
	if err != nil {
		return fmt.Errorf("creating avatar generator: %w", err)
	}
	avatars, err := avatar.NewStore(s.config.AvatarDir, generator)
	if err != nil {
		return fmt.Errorf("creating avatar store: %w", err)
	}

	renderer, err := handler.NewRenderer(s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}

	authService := service.NewAuthService(users, tokens, passwords, verifier, s.logger)
	postService := service.NewPostService(posts, s.logger)

	authHandler := handler.NewAuthHandler(authService, verifier, renderer, s.logger)
	postHandler := handler.NewPostHandler(postService, renderer, s.logger)
	avatarHandler := handler.NewAvatarHandler(users, avatars, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(auth.ResolveSession(tokens, users, s.logger))

	// === Static Files ===
	// http.StripPrefix removes "/static/" from the URL path before looking
	// up the file, so GET /static/css/style.css → {StaticDir}/css/style.css
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// === Public Routes ===
	s.router.Get("/", postHandler.HandleHome)
	s.router.Get("/post/{id}", postHandler.HandleShowPost)
	s.router.Get("/error", postHandler.HandleErrorPage)
	s.router.Get("/avatar/{username}", avatarHandler.HandleAvatar)

	s.router.Get("/login", authHandler.ShowLoginRegister)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Get("/register", authHandler.ShowLoginRegister)
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Get("/register/username", authHandler.ShowClaimUsername)
	s.router.Post("/register/username", authHandler.HandleClaimUsername)
	s.router.Get("/logout", authHandler.HandleLogout)

	if verifier != nil {
		s.router.Get("/auth/google/login", authHandler.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
	} else {
		s.logger.Warn("Google OAuth not configured — /auth/google routes disabled")
	}

	// === The like route is NOT behind RequireAuth ===
	// It soft-fails for anonymous callers with {"success":false}; a
	// redirect would be useless to the fetch() that calls it.
	s.router.Post("/like/{id}", postHandler.HandleLike)

	// === Authenticated Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/profile", postHandler.HandleProfile)
		r.Post("/posts", postHandler.HandleCreatePost)
		r.Post("/delete/{id}", postHandler.HandleDelete)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// If we skip step 3, the database file might be left in an inconsistent state.
// The `defer s.db.Close()` ensures this happens even if something panics.
func (s *Server) Start() error {
	defer s.db.Close()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("url", "http://localhost:"+s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		// Received shutdown signal
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
