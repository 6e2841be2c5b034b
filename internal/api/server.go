// Package api provides the HTTP REST API and WebSocket server for the
// Linden access core.
//
// It exposes the session lifecycle (login, refresh, logout), the route
// access guard, account administration, and the audit trail to user
// interfaces, plus a WebSocket feed of session state transitions.
//
// The server follows the standard lifecycle pattern:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lindenpress/linden-access/internal/audit"
	"github.com/lindenpress/linden-access/internal/infrastructure/config"
	"github.com/lindenpress/linden-access/internal/infrastructure/logging"
	"github.com/lindenpress/linden-access/internal/session"
	"github.com/lindenpress/linden-access/internal/token"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Machine   *session.Machine
	Users     session.UserRepository
	Revoker   session.TokenRevoker // optional: server-side token revocation on logout
	AuditRepo audit.Repository     // optional: nil disables the audit endpoints
	Codec     *token.Codec
	Idle      *session.IdleMonitor // optional: touched on authenticated requests
	Version   string
}

// Server is the HTTP API server for the Linden access core.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// hub that relays session state transitions. The server is created with
// New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	machine   *session.Machine
	users     session.UserRepository
	revoker   session.TokenRevoker
	auditRepo audit.Repository
	codec     *token.Codec
	idle      *session.IdleMonitor
	version   string

	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
	unsubscribe func()             // detaches the hub from session events
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Machine == nil {
		return nil, fmt.Errorf("session machine is required")
	}
	if deps.Codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		machine:   deps.Machine,
		users:     deps.Users,
		revoker:   deps.Revoker,
		auditRepo: deps.AuditRepo,
		codec:     deps.Codec,
		idle:      deps.Idle,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, bridges session
// state transitions onto the hub, and launches the HTTP listener in a
// background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.unsubscribe = s.machine.Subscribe(func(ev session.Event) {
		s.hub.Broadcast(ChannelSessionState, sessionEventPayload(ev))
	})

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
