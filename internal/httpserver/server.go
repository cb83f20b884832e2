package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skobkin/phoenixrec/internal/api"
	"github.com/skobkin/phoenixrec/internal/config"
	"github.com/skobkin/phoenixrec/internal/export"
	"github.com/skobkin/phoenixrec/internal/store"
	"github.com/skobkin/phoenixrec/internal/version"
)

const (
	readHeaderTimeout = 5 * time.Second
	wsSendQueueSize   = 64
	maxEntriesPage    = 1000
)

// LinkStatus reports the state of the telemetry link feeding the store.
type LinkStatus interface {
	Connected() bool
}

// Options carries the collaborators of a Server. Link and Registry may be nil.
type Options struct {
	Store *store.Store
	Link  LinkStatus
	// Registry receives the HTTP and store metrics when Prometheus is enabled.
	Registry *prometheus.Registry
	// ExportMeta supplies the user and host written into exports.
	ExportMeta export.Metadata
}

// Server wraps the HTTP surface area of the recorder.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	store      *store.Store
	link       LinkStatus
	exportMeta export.Metadata

	maxWSClients int64
	wsActive     atomic.Int64
	wsTotal      atomic.Uint64
	wsRejected   atomic.Uint64
	wsSent       atomic.Uint64
	wsDropped    atomic.Uint64
	wsConnIDs    atomic.Uint64
	requestIDs   atomic.Uint64
}

// New assembles a Server with its handlers.
func New(cfg config.Config, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	st := opts.Store
	if st == nil {
		st = store.New()
	}
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		link:       opts.Link,
		exportMeta: opts.ExportMeta,
	}

	if cfg.WS.MaxClients > 0 {
		s.maxWSClients = int64(cfg.WS.MaxClients)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/api/readyz", s.handleReadyz)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/kinds", s.handleKinds)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/entries", s.handleEntries)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/ws", s.handleWS)

	if cfg.EnablePrometheus {
		registry := opts.Registry
		if registry == nil {
			registry = prometheus.NewRegistry()
		}
		s.registerPrometheus(mux, registry)
	}
	if cfg.EnablePprof {
		registerPprof(mux)
	}

	handler := s.withRequestLogging(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Handler exposes the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving HTTP until shutdown is requested.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until shutdown is requested.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("listener stopped")
	return nil
}

// Shutdown attempts a graceful shutdown within the supplied context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	info := s.readiness()
	statusCode := http.StatusOK
	if info.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, statusCode, info)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, version.Current())
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.Catalog())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.NewSessionInfo(s.store, s.linkConnected()))
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	from, err := intParam(r, "from", 0)
	if err != nil || from < 0 {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", maxEntriesPage)
	if err != nil || limit <= 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	if limit > maxEntriesPage {
		limit = maxEntriesPage
	}

	s.writeJSON(w, r, http.StatusOK, api.NewEntriesResponse(s.store.Entries(), from, limit))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	logger := s.loggerFromContext(r.Context())
	meta := s.exportMeta
	meta.CreatedAt = time.Now()
	meta.SessionName = s.store.SessionName()

	var buf bytes.Buffer
	if err := export.Write(&buf, s.store.Entries(), meta); err != nil {
		logger.Error("failed to render export", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(meta.SessionName)+`"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Warn("failed to write export response", "err", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	logger := s.loggerFromContext(r.Context())
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to encode response", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		logger.Warn("failed to write response", "err", err)
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func registerPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func (s *Server) linkConnected() bool {
	return s.link != nil && s.link.Connected()
}

// readiness is "ok" while the link is up or once data has arrived.
func (s *Server) readiness() readyResponse {
	resp := readyResponse{
		Connected: s.linkConnected(),
		Entries:   s.store.Len(),
	}

	switch {
	case s.link == nil:
		resp.Status = "ok"
	case resp.Connected:
		resp.Status = "ok"
	case resp.Entries > 0:
		resp.Status = "ok"
		resp.Reason = "session_ended"
	default:
		resp.Status = "initializing"
		resp.Reason = "waiting_for_collector"
	}
	return resp
}

type readyResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Entries   int    `json:"entries"`
	Reason    string `json:"reason,omitempty"`
}
