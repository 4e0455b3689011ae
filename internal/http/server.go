// Package http exposes the management API and the public carrier webhook.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/NKRTECH/unified-inbox/internal/contacts"
	"github.com/NKRTECH/unified-inbox/internal/dispatch"
	"github.com/NKRTECH/unified-inbox/internal/events"
	"github.com/NKRTECH/unified-inbox/internal/scheduler"
)

// Server bundles the HTTP handlers and the listener.
type Server struct {
	addr string
	log  *slog.Logger

	httpServer *http.Server
	mux        *http.ServeMux
}

// ServerDeps carries everything the HTTP surface needs.
type ServerDeps struct {
	Dispatch  *dispatch.Service
	Scheduler *scheduler.Service
	Resolver  *contacts.Resolver
	Hub       *events.Hub
	Events    events.Publisher

	// Token guards the /v1 management API. Empty disables auth.
	Token string
	// WebhookSecret signs carrier webhook requests.
	WebhookSecret string
	// WebhookRateLimit is requests per source per minute (0 = default).
	WebhookRateLimit int
}

// NewServer assembles the mux and registers every route.
func NewServer(addr string, deps ServerDeps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()

	wh := NewWebhookHandler(deps.WebhookSecret, deps.WebhookRateLimit, deps.Dispatch, log)
	wh.RegisterRoutes(mux)

	mh := NewMessagesHandler(deps.Dispatch, deps.Token)
	mh.RegisterRoutes(mux)

	sh := NewSchedulesHandler(deps.Scheduler, deps.Token)
	sh.RegisterRoutes(mux)

	ch := NewContactsHandler(deps.Resolver, deps.Events, deps.Token)
	ch.RegisterRoutes(mux)

	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{
		addr: addr,
		log:  log,
		mux:  mux,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start blocks serving until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// requireToken wraps a handler with exact-match bearer auth. An empty
// configured token disables the check.
func requireToken(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			if extractBearerToken(r) != token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}
