package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/heimdex/heimdex-slicer/internal/cloud"
	"github.com/heimdex/heimdex-slicer/internal/history"
	"github.com/heimdex/heimdex-slicer/internal/media"
	"github.com/heimdex/heimdex-slicer/internal/playback"
	"github.com/heimdex/heimdex-slicer/internal/timeline"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// EngineStatus reports transcoder readiness. *engine.Queue satisfies it.
type EngineStatus interface {
	Ready() bool
	Workers() int
	Stats() (waiting, inFlight int64)
}

// AssetWatcher follows the loaded file on disk.
type AssetWatcher interface {
	Watch(path string) error
	Clear()
}

type ServerConfig struct {
	Port           int
	Version        string
	Timeline       *timeline.Timeline
	Exporter       timeline.Exporter
	Engine         EngineStatus
	Prober         media.Prober
	PlaybackServer playback.PlaybackService
	Repository     history.Repository
	History        *history.Service
	Watcher        AssetWatcher
	OutputDir      string
	Uploader       cloud.Uploader
	Logger         *slog.Logger
	StartTime      time.Time
	DeviceID       string
}

// NewServer binds to loopback only; the agent is never reachable from the
// network.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)),
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Streams and archive downloads may run long.
			WriteTimeout: 0,
			IdleTimeout:  time.Minute,
		},
		logger: cfg.Logger,
	}
}

// Start listens and serves until Shutdown. A closed server is not an error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server draining")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
