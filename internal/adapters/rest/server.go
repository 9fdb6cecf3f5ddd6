package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server - служебный REST API сервис
type Server struct {
	httpServer *http.Server
	logger     port.LoggerPort
}

// NewRouter собирает маршруты. Вынесен отдельно, чтобы его можно было тестировать через httptest.
func NewRouter(handlers *AdminHandler, baseLogger port.LoggerPort) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware(baseLogger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/health", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Post("/check", handlers.CheckProduct)
			r.Get("/price-stats", handlers.PriceStatistics)
			r.Get("/price-history", handlers.PriceHistory)
		})

		r.Route("/circuits/{site}", func(r chi.Router) {
			r.Get("/", handlers.CircuitState)
			r.Post("/reset", handlers.ResetCircuit)
		})

		r.Delete("/cache", handlers.ClearCache)
		r.Post("/checks/{bucket}", handlers.RunBucket)
	})

	return r
}

// NewServer создает новый экземпляр сервера
func NewServer(listenPort string, handlers *AdminHandler, baseLogger port.LoggerPort) *Server {
	srv := &http.Server{
		Addr:              ":" + listenPort,
		Handler:           NewRouter(handlers, baseLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     baseLogger,
	}
}

// Start запускает HTTP-сервер
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop корректно останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
