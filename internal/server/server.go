// Package server wires the dependency graph and owns the HTTP lifecycle.
//
// This is the composition root: everything — stores, services, handlers,
// middleware — is constructed here in New, in dependency order, and
// nowhere else. main.go only loads config and calls New/Start.
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

	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/config"
	"github.com/rkamal/authcore/internal/handler"
	"github.com/rkamal/authcore/internal/metrics"
	"github.com/rkamal/authcore/internal/middleware"
	"github.com/rkamal/authcore/internal/model"
	sqliteRepo "github.com/rkamal/authcore/internal/repository/sqlite"
	"github.com/rkamal/authcore/internal/service"
)

// Server is the HTTP server plus the resources it owns. The database
// connection is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph:
//
//	sqlite.DB → stores → codec/hasher/providers → services → handlers → routes
//
// Each layer receives interfaces or narrow structs, never the layers
// above it.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	users := s.db.Users()
	identities := s.db.Identities()
	tokens := s.db.Tokens()

	codec, err := auth.NewCodec(s.cfg.JWTSecret)
	if err != nil {
		return err
	}
	hasher := auth.NewHasher()
	collector := metrics.NewCollector()

	providers := auth.NewRegistry(map[model.Provider]auth.ProviderCredentials{
		model.ProviderGoogle:   providerCreds(s.cfg.Google, s.cfg.BaseURL, model.ProviderGoogle),
		model.ProviderFacebook: providerCreds(s.cfg.Facebook, s.cfg.BaseURL, model.ProviderFacebook),
		model.ProviderGitHub:   providerCreds(s.cfg.GitHub, s.cfg.BaseURL, model.ProviderGitHub),
		model.ProviderLinkedIn: providerCreds(s.cfg.LinkedIn, s.cfg.BaseURL, model.ProviderLinkedIn),
	})
	if names := providers.Names(); len(names) > 0 {
		s.logger.Info("oauth providers configured", slog.Any("providers", names))
	} else {
		s.logger.Warn("no oauth providers configured — only password auth is available")
	}

	tokenManager := service.NewTokenManager(codec, tokens, s.logger, service.TokenManagerOptions{
		AccessTokenTTL:  s.cfg.AccessTokenTTL,
		RefreshTokenTTL: s.cfg.RefreshTokenTTL,
		Recorder:        collector,
	})
	authService := service.NewAuthService(users, hasher, tokenManager, s.logger, collector)
	linker := service.NewIdentityLinker(identities, users, tokenManager, s.logger,
		service.WithLinkerRecorder(collector))

	authHandler := handler.NewAuthHandler(authService, s.logger)
	oauthHandler := handler.NewOAuthHandler(providers, linker, s.logger)
	profileHandler := handler.NewProfileHandler(identities, s.logger)

	requireAuth := auth.RequireAuth(tokenManager, users)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(collector.Middleware)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.With(requireAuth).Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/oauth", func(r chi.Router) {
		r.Get("/{provider}/login", oauthHandler.HandleLogin)
		r.Get("/{provider}/callback", oauthHandler.HandleCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", profileHandler.HandleMe)
	})

	s.router.Handle("/metrics", collector.Handler())
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return nil
}

// providerCreds maps config credentials into the auth package's shape,
// defaulting the redirect URL to this server's callback route.
func providerCreds(c config.ProviderCredentials, baseURL string, p model.Provider) auth.ProviderCredentials {
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = fmt.Sprintf("%s/oauth/%s/callback", baseURL, p)
	}
	return auth.ProviderCredentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirect,
	}
}

// Handler exposes the router, mainly for httptest in integration tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the server's resources without serving. Start closes
// them itself; callers using Handler directly should defer Close.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting, drain in-flight requests (30s budget),
// close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
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
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
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
