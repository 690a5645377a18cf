// Package api exposes the HTTP surface of the daemon: health, manual
// flow entry, inbound-message injection and read endpoints for
// applications, appointments and abandonment analytics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/creditflow"
	"github.com/CasaLindaMX/LeadFlow/internal/messaging"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP API server.
type Server struct {
	addr       string
	store      store.Store
	svc        messaging.Service
	router     *messaging.Router
	engine     *creditflow.Engine
	httpServer *http.Server
}

// Opts holds server configuration.
type Opts struct {
	Addr string
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// NewServer wires the API server. The Twilio webhook route is added
// only when the messaging service is a TwilioService.
func NewServer(st store.Store, svc messaging.Service, router *messaging.Router, engine *creditflow.Engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:   cfg.Addr,
		store:  st,
		svc:    svc,
		router: router,
		engine: engine,
	}
}

// Start runs the HTTP server in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/flow/start", s.startFlowHandler)
	mux.HandleFunc("/flow/cancel", s.cancelFlowHandler)
	mux.HandleFunc("/reply", s.replyHandler)
	mux.HandleFunc("/applications", s.applicationsHandler)
	mux.HandleFunc("/appointments", s.appointmentsHandler)
	mux.HandleFunc("/abandonments", s.abandonmentsHandler)

	if twilio, ok := s.svc.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", twilio.TwilioWebhookHandler)
		slog.Info("Server registered Twilio webhook route")
	}

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
