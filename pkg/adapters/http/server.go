// Package http exposes a reloading development server on top of a reload
// coordinator. Every application request resolves the configured target
// through the coordinator's cache, so a freshly reloaded handle serves the
// very next request without restarting the process. Control endpoints under
// /_graft drive reloads remotely.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/aretw0/graft"
	"github.com/aretw0/graft/internal/logging"
	"github.com/aretw0/graft/pkg/domain"
)

//go:embed openapi.yaml
var specYAML []byte

// GenerationHeader carries the cache generation that served a response.
const GenerationHeader = "X-Graft-Generation"

// Reloader defines the surface of the reload coordinator the server drives.
type Reloader interface {
	Load(ctx context.Context, target string, force bool) (domain.Handle, uint64, error)
	Cached() (domain.Handle, bool)
	Generation() uint64
	Target() (domain.Target, bool)
	LastError() error
	Clear()
}

// Server serves an application handle from behind a reload coordinator.
type Server struct {
	Target   string
	Reloader Reloader
	Streams  *StreamManager

	logger  *slog.Logger
	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a metrics exposition handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates a Server that loads and serves the given target.
func New(target string, rl Reloader, opts ...Option) *Server {
	s := &Server{
		Target:   target,
		Reloader: rl,
		Streams:  NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.For(s.logger, logging.ComponentServer)
	return s
}

// NewHandler builds the complete HTTP handler for a reloader in one step.
func NewHandler(target string, rl Reloader, opts ...Option) http.Handler {
	return New(target, rl, opts...).Handler()
}

// Handler assembles the route tree: control endpoints under /_graft, the
// API description, optional metrics, and the application catch-all.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/_graft", func(r chi.Router) {
		r.Get("/health", s.getHealth)
		r.Get("/status", s.getStatus)
		r.Post("/reload", s.postReload)
		r.Post("/clear", s.postClear)
		r.Get("/events", s.subscribeEvents)
	})

	r.Get("/openapi.yaml", s.getSpec)
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(docsHTML))
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Handle("/*", http.HandlerFunc(s.proxy))

	return enableCORS(r)
}

// proxy resolves the target through the coordinator and hands the request to
// the loaded application.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	handle, generation, err := s.Reloader.Load(r.Context(), s.Target, false)
	if err != nil {
		s.logger.Error("failed to load application", "target", s.Target, "err", err)
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to load %s: %v", s.Target, err))
		return
	}

	app, ok := handle.(http.Handler)
	if !ok {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("target %s is not an http.Handler (got %T)", s.Target, handle))
		return
	}

	w.Header().Set(GenerationHeader, strconv.FormatUint(generation, 10))
	app.ServeHTTP(w, r)
}

// getHealth handles the GET /_graft/health request.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse describes the coordinator state returned by /_graft/status.
type StatusResponse struct {
	Target     string `json:"target"`
	Loaded     bool   `json:"loaded"`
	Generation uint64 `json:"generation"`
	LastError  string `json:"last_error,omitempty"`
	Version    string `json:"version"`
	APIVersion string `json:"api_version,omitempty"`
}

// ReloadResponse is returned by a successful POST /_graft/reload.
type ReloadResponse struct {
	Target     string `json:"target"`
	Generation uint64 `json:"generation"`
}

// ErrorResponse carries a handler failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// getStatus handles the GET /_graft/status request.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Target:     s.Target,
		Generation: s.Reloader.Generation(),
		Version:    strings.TrimSpace(graft.Version),
	}
	if target, ok := s.Reloader.Target(); ok {
		resp.Target = target.String()
		resp.Loaded = true
	}
	if err := s.Reloader.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	if doc, err := Spec(); err == nil && doc.Info != nil {
		resp.APIVersion = doc.Info.Version
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// postReload handles the POST /_graft/reload request. A reload over HTTP is
// always forced.
func (s *Server) postReload(w http.ResponseWriter, r *http.Request) {
	_, generation, err := s.Reloader.Load(r.Context(), s.Target, true)
	if err != nil {
		s.logger.Error("reload failed", "target", s.Target, "err", err)
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("reload failed: %v", err))
		return
	}

	s.logger.Info("reload requested over http", "target", s.Target, "generation", generation)
	s.NotifyReload(generation)
	s.writeJSON(w, http.StatusOK, ReloadResponse{Target: s.Target, Generation: generation})
}

// postClear handles the POST /_graft/clear request.
func (s *Server) postClear(w http.ResponseWriter, r *http.Request) {
	s.Reloader.Clear()
	s.logger.Info("cache cleared over http")
	s.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// getSpec handles the GET /openapi.yaml request.
func (s *Server) getSpec(w http.ResponseWriter, r *http.Request) {
	if _, err := Spec(); err != nil {
		http.Error(w, "Failed to load spec", http.StatusInternalServerError)
		s.logger.Error("failed to load OpenAPI spec", "err", err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml")
	w.Write(specYAML)
}

// NotifyReload pushes a generation change to every connected events client.
func (s *Server) NotifyReload(generation uint64) {
	payload, err := json.Marshal(map[string]uint64{"generation": generation})
	if err != nil {
		return
	}
	s.Streams.Broadcast(string(payload))
}

// subscribeEvents handles the GET /_graft/events request (SSE). Clients
// receive one data frame per completed reload.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("events subscription rejected, streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("events client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var (
	specOnce sync.Once
	specDoc  *openapi3.T
	specErr  error
)

// Spec parses and validates the embedded OpenAPI description. The result is
// memoized after the first call.
func Spec() (*openapi3.T, error) {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		specDoc, specErr = loader.LoadFromData(specYAML)
		if specErr != nil {
			specErr = fmt.Errorf("failed to parse embedded OpenAPI spec: %w", specErr)
			return
		}
		if err := specDoc.Validate(loader.Context); err != nil {
			specDoc, specErr = nil, fmt.Errorf("embedded OpenAPI spec is invalid: %w", err)
		}
	})
	return specDoc, specErr
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]struct{}),
	}
}

func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow client, drop the frame rather than stall the reload path.
		}
	}
}

const docsHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Graft API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
