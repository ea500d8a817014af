// Package server exposes the operational HTTP surface: a liveness probe and
// a status endpoint. The bot itself talks to Telegram over long polling, so
// this server exists for deployment tooling, not for users.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	sqliteRepo "github.com/vladkruhlyk/git-bot.statistic/internal/repository/sqlite"
)

// Server is the operational HTTP server.
type Server struct {
	addr      string
	router    *chi.Mux
	logger    *slog.Logger
	db        *sqliteRepo.DB
	startedAt time.Time
}

// New wires the router. The database handle is borrowed, not owned: the
// composition root closes it.
func New(addr string, db *sqliteRepo.DB, logger *slog.Logger) *Server {
	s := &Server{
		addr:      addr,
		router:    chi.NewRouter(),
		logger:    logger,
		db:        db,
		startedAt: time.Now(),
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(requestLogger(logger))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/status", s.handleStatus)

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("health server starting", slog.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
	}

	code := http.StatusOK
	if err := s.db.Ping(); err != nil {
		s.logger.Error("database ping failed", slog.String("error", err.Error()))
		resp.Status = "degraded"
		resp.Database = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encoding status response", slog.String("error", err.Error()))
	}
}
