// Package server wires the dependency graph and runs the HTTP server.
//
// This is the composition root: main.go hands over a config and a logger,
// and everything else — database, services, handlers, routes — is
// assembled here in one place.
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

	"github.com/tasave/tasave-go/internal/auth"
	"github.com/tasave/tasave-go/internal/config"
	"github.com/tasave/tasave-go/internal/handler"
	"github.com/tasave/tasave-go/internal/middleware"
	sqliteRepo "github.com/tasave/tasave-go/internal/repository/sqlite"
	"github.com/tasave/tasave-go/internal/service"
)

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown so the SQLite WAL gets flushed.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency chain:
//
//	sqlite.DB → AuthService/MachineService → handlers → routes
//
// Each layer receives only what it needs; handlers never see the database
// and services never see HTTP.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
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
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for httptest in handler tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware, services, and the route table.
//
// Route map:
//
//	POST   /api/auth/register            create account + session
//	POST   /api/auth/login               start session
//	POST   /api/auth/logout              clear session cookie
//	GET    /api/me                       current user          [auth]
//	GET    /api/machines                 browse catalog        [optional auth]
//	POST   /api/machines                 upload machine        [auth, contributor+]
//	GET    /api/machines/{id}            machine detail        [optional auth]
//	DELETE /api/machines/{id}            delete machine        [auth, admin]
//	POST   /api/machines/{id}/favorite   toggle favorite       [auth]
//	POST   /api/machines/{id}/todo       toggle todo           [auth]
//	PUT    /api/machines/{id}/review     save review           [auth]
//	DELETE /api/reviews/{id}             delete review         [auth]
//	GET    /api/favorites                caller's favorites    [auth]
//	GET    /api/todos                    caller's todo list    [auth]
//	PUT    /api/users/{username}/role    change role tier      [auth, admin]
//	GET    /healthz                      liveness probe
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	cookies := auth.CookieWriter{Secure: s.config.SecureCookies}

	authService := service.NewAuthService(s.db.Users(), tokens, passwords, s.logger)
	machineService := service.NewMachineService(s.db.Machines(), s.db.Reviews(), s.db.Relations(), authService, s.logger)

	authHandler := handler.NewAuthHandler(authService, cookies, s.logger)
	machineHandler := handler.NewMachineHandler(machineService, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		// Login and register do bcrypt work per request; keep the door
		// narrow against credential stuffing.
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RateLimit(5, 10))
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/machines", machineHandler.HandleList)
			r.Get("/machines/{id}", machineHandler.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/machines", machineHandler.HandleUpload)
			r.Delete("/machines/{id}", machineHandler.HandleDelete)
			r.Post("/machines/{id}/favorite", machineHandler.HandleToggleFavorite)
			r.Post("/machines/{id}/todo", machineHandler.HandleToggleTodo)
			r.Put("/machines/{id}/review", machineHandler.HandleReview)
			r.Delete("/reviews/{id}", machineHandler.HandleDeleteReview)
			r.Get("/favorites", machineHandler.HandleFavorites)
			r.Get("/todos", machineHandler.HandleTodos)
			r.Put("/users/{username}/role", authHandler.HandleSetRole)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight
// requests (30s) and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
