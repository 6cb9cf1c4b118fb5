package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pokevote/gameserver/internal/admin"
	"github.com/pokevote/gameserver/internal/authn"
	"github.com/pokevote/gameserver/internal/ban"
	"github.com/pokevote/gameserver/internal/broadcast"
	"github.com/pokevote/gameserver/internal/handlers"
	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/tick"
	"github.com/pokevote/gameserver/internal/vote"
)

// Server manages the HTTP listener and route table for the agent and admin
// surfaces.
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	logger  *logging.Logger
	authnMW *authn.Middleware
	adminH  *admin.Handler
	voteH   *handlers.VoteHandler
	stateH  *handlers.StateHandler
	mcpH    http.Handler
}

// Config configures a new Server.
type Config struct {
	Host        string
	Port        int
	Logger      *logging.Logger
	AuthnMW     *authn.Middleware
	Admin       *admin.Handler
	Aggregator  *vote.Aggregator
	Processor   *tick.Processor
	Broadcaster *broadcast.Broadcaster
	// MCP, if set, is mounted at /mcp behind the same authn gate as the
	// HTTP tools.
	MCP http.Handler
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	s := &Server{
		logger:  cfg.Logger,
		authnMW: cfg.AuthnMW,
		adminH:  cfg.Admin,
		voteH:   handlers.NewVoteHandler(cfg.Aggregator, cfg.Processor, cfg.AuthnMW),
		stateH:  handlers.NewStateHandler(cfg.Broadcaster),
		mcpH:    cfg.MCP,
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(otelhttp.NewHandler(s.router, "gameserver")),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures the health, agent and admin routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handlers.HealthHandler)

	mux.Handle("/api/v1/vote", s.authnMW.Wrap(s.voteH))
	mux.Handle("/api/v1/state", s.authnMW.Wrap(s.stateH))

	if s.mcpH != nil {
		mux.Handle("/mcp", s.authnMW.Wrap(s.mcpH))
	}

	mux.HandleFunc("/api/v1/admin/ban/agent", s.adminH.HandleCreateFor(ban.KindAgent))
	mux.HandleFunc("/api/v1/admin/ban/ip", s.adminH.HandleCreateFor(ban.KindIP))
	mux.HandleFunc("/api/v1/admin/ban/cidr", s.adminH.HandleCreateFor(ban.KindCIDR))
	mux.HandleFunc("/api/v1/admin/ban/user-agent", s.adminH.HandleCreateFor(ban.KindUserAgent))
	mux.HandleFunc("/api/v1/admin/unban", s.adminH.HandleUnban)
	mux.HandleFunc("/api/v1/admin/bans", s.adminH.HandleList)

	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

// handleNotFound returns a JSON 404 for unmatched routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","code":"NOT_FOUND"}`))
}

// Start starts the HTTP server. Blocks until Shutdown is called or the
// server fails.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
