package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger   *slog.Logger
	handlers Handlers
	ping     PingHandler
}

// New builds the REST server. GET /ping fails while any of checks fails.
func New(logger *slog.Logger, manager gameManager, checks ...HealthCheck) *Server {
	return &Server{
		logger:   logger.With("component", "rest"),
		handlers: NewHandlers(logger, manager),
		ping:     NewPingHandler(checks...),
	}
}

func (that *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/ping", that.ping.PingHandler)

	router.Route("/api", func(r chi.Router) {
		r.Post("/games", that.handlers.CreateGame)
		r.Get("/games/{id}", that.handlers.GetGame)
		r.Post("/identities", that.handlers.CreateIdentity)
	})

	return router
}

// Start serves the REST API on port until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		that.logger.Info("server stopped", "port", port)

		return nil
	}
}
