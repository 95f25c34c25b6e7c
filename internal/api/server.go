// Package api exposes the agent's local HTTP surface: timeline edits,
// virtual playback control, ingest, export and file playback. The server
// binds loopback only; the web app reaches it through the browser.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/filmroom/filmroom-agent/internal/editor"
	"github.com/filmroom/filmroom-agent/internal/ingest"
	"github.com/filmroom/filmroom-agent/internal/media"
	"github.com/filmroom/filmroom-agent/internal/playback"
	"github.com/filmroom/filmroom-agent/internal/player"
	"github.com/filmroom/filmroom-agent/internal/store"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Editor     *editor.Service
	Saver      *editor.Saver
	Ingest     *ingest.Service
	Player     *player.Player
	Playback   *playback.Server
	Repository store.Repository
	Tools      *media.CachedTools
	Logger     *slog.Logger
	StartTime  time.Time
	DeviceID   string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
