package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alexanderjulianmartinez/data-extract/internal/extract"
	"github.com/alexanderjulianmartinez/data-extract/internal/source"
	"github.com/alexanderjulianmartinez/data-extract/pkg/types"
)

const readyMessage = "App is up and running"

// ExtractFunc runs one extraction on demand.
type ExtractFunc func(ctx context.Context) (*source.ExtractionReport, error)

// Server exposes a liveness endpoint and an on-demand extraction endpoint.
type Server struct {
	extract ExtractFunc
	logger  *slog.Logger
}

type extractResponse struct {
	Schema     string               `json:"schema"`
	DurationMS int64                `json:"duration_ms"`
	Tables     []types.TableSummary `json:"tables"`
	Error      string               `json:"error,omitempty"`
}

func New(fn ExtractFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{extract: fn, logger: logger}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/extract", s.handleExtract)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, readyMessage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.extract == nil {
		http.Error(w, "extraction is not configured", http.StatusServiceUnavailable)
		return
	}

	report, err := s.extract(r.Context())
	if err != nil {
		s.logger.Error("extraction failed", "err", err)
		writeJSON(w, http.StatusBadGateway, extractResponse{Tables: []types.TableSummary{}, Error: err.Error()})
		return
	}

	resp := extractResponse{
		Schema:     report.Schema,
		DurationMS: report.Duration.Milliseconds(),
		Tables:     extract.Summarize(report),
	}
	if err := report.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
