// control/server.go
// Author: momentics <momentics@gmail.com>
//
// HTTP observability endpoint: Prometheus metrics, health and debug state.

package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-relay/internal/logging"
)

// ServerConfig contains observability server configuration.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves /metrics, /healthz and /debug/state.
type Server struct {
	cfg      ServerConfig
	log      *slog.Logger
	health   func() error
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

// NewServer wires the handlers. gatherer is scraped on /metrics, probes are
// dumped on /debug/state and health decides the /healthz status.
func NewServer(cfg ServerConfig, gatherer prometheus.Gatherer, probes *DebugProbes, health func() error, log *slog.Logger) *Server {
	s := &Server{cfg: cfg, log: log, health: health}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, probes.DumpState())
	})

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("observability server stopped", logging.KeyError, err)
		}
	}()
	s.log.Info("observability server listening", logging.KeyLocalAddr, ln.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Address
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.health != nil {
		if err := s.health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
