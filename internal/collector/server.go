// internal/collector/server.go
package collector

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/signalnine/blescope/internal/analysis"
	"github.com/signalnine/blescope/internal/config"
	"github.com/signalnine/blescope/internal/logging"
)

// Server is the central collector
type Server struct {
	cfg     *config.CollectorConfig
	db      *DB
	metrics *Metrics
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new collector server
func NewServer(cfg *config.CollectorConfig) (*Server, error) {
	db, err := NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		db:      db,
		metrics: NewMetrics(),
		logger:  logging.New("collector"),
	}
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(analysis.NewSuite(cfg.Analysis)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Router wires every endpoint. /health and /metrics skip authentication.
func (s *Server) Router(suite *analysis.Suite) *mux.Router {
	ingest := NewIngestHandler(s.db, s.metrics, s.logger, s.cfg.MaxPayloadBytes)
	reports := NewReportHandler(s.db, suite, s.metrics, s.logger, s.cfg.MaxRows, s.cfg.MaxPayloadBytes)

	r := mux.NewRouter()
	r.Use(withRequestID(s.logger, s.metrics))
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(requireBearer(s.cfg.APIKey))
	api.Handle("/ingest", ingest).Methods(http.MethodPost)
	api.HandleFunc("/reports/{kind}", reports.Stored).Methods(http.MethodGet)
	api.HandleFunc("/analyze/{kind}", reports.Analyze).Methods(http.MethodPost)
	return r
}

// Handler returns the wired router
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Listen binds the configured address, wrapped in TLS when a certificate
// and key are configured.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	if s.cfg.TLSCert == "" && s.cfg.TLSKey == "" {
		return ln, nil
	}

	cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("load TLS cert: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully and closes the database.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	tlsOn := s.cfg.TLSCert != ""
	s.logger.Info("collector starting", "addr", ln.Addr().String(), "tls", tlsOn)
	if s.cfg.APIKey == "" {
		s.logger.Warn("no API key configured; ingest and reports are unauthenticated")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("collector shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		s.db.Close()
		return err
	}

	return s.db.Close()
}

// Run listens on the configured address and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		s.db.Close()
		return err
	}
	return s.Serve(ctx, ln)
}
