// Package app wires every component into a runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/pokevote/gameserver/internal/admin"
	"github.com/pokevote/gameserver/internal/authn"
	"github.com/pokevote/gameserver/internal/ban"
	"github.com/pokevote/gameserver/internal/broadcast"
	"github.com/pokevote/gameserver/internal/config"
	"github.com/pokevote/gameserver/internal/credentials"
	"github.com/pokevote/gameserver/internal/game"
	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/mcpapi"
	"github.com/pokevote/gameserver/internal/ratelimit"
	"github.com/pokevote/gameserver/internal/server"
	"github.com/pokevote/gameserver/internal/store"
	"github.com/pokevote/gameserver/internal/tick"
	"github.com/pokevote/gameserver/internal/vote"
)

// Auto-escalation thresholds: 10 rate-limit hits or 5 invalid requests
// within the violation window trips an automatic ban.
const (
	rateLimitEscalationThreshold  = 10
	invalidReqEscalationThreshold = 5
)

// App holds every component the game server wires together.
type App struct {
	Config *config.Config
	Logger *logging.Logger

	Store       *store.Client
	Credentials *credentials.Store
	RateLimiter *ratelimit.Limiter
	Bans        *ban.Subsystem
	Votes       *vote.Aggregator
	Broadcaster *broadcast.Broadcaster
	Tick        *tick.Processor
	Authn       *authn.Middleware
	Admin       *admin.Handler
	Server      *server.Server
	MCPServer   *mcpserver.MCPServer
}

// New initializes every component from cfg. The emulator and extractor
// are supplied by the caller; this package wires them but does not own
// their implementations.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, emulator game.Emulator, extractor game.StateExtractor) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	storeClient, err := store.New(ctx, cfg.Store.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("app: connect store: %w", err)
	}
	a.Store = storeClient

	a.Credentials = credentials.New(storeClient)
	a.RateLimiter = ratelimit.New(storeClient)
	a.Bans = ban.New(storeClient, logger)
	a.Votes = vote.New(storeClient)
	a.Broadcaster = broadcast.New(storeClient)

	a.Tick = tick.New(tick.Config{
		GameID:           "default",
		Emulator:         emulator,
		Extractor:        extractor,
		Aggregator:       a.Votes,
		Broadcaster:      a.Broadcaster,
		Logger:           logger,
		TickInterval:     time.Duration(cfg.Tick.IntervalMs) * time.Millisecond,
		EmulatorSettleMs: time.Duration(cfg.Tick.EmulatorSettleMs) * time.Millisecond,
		SnapshotEvery:    cfg.Tick.SnapshotEveryTurns,
	})

	a.Authn = authn.New(authn.Config{
		Credentials:         a.Credentials,
		Bans:                a.Bans,
		Limiter:             a.RateLimiter,
		Logger:              logger,
		TrustProxy:          authn.TrustProxy(cfg.Admin.TrustProxy),
		RateLimitThreshold:  rateLimitEscalationThreshold,
		InvalidReqThreshold: invalidReqEscalationThreshold,
	})

	a.Admin = admin.New(a.Bans, cfg.Admin.Secret)

	a.MCPServer = mcpapi.NewServer(a.Votes, a.Tick, a.Broadcaster, logger)

	a.Server = server.New(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Logger:      logger,
		AuthnMW:     a.Authn,
		Admin:       a.Admin,
		Aggregator:  a.Votes,
		Processor:   a.Tick,
		Broadcaster: a.Broadcaster,
		MCP:         mcpapi.NewHTTPHandler(a.MCPServer),
	})

	logger.Info().Msg("application initialization complete")
	return a, nil
}

// StartTick starts the tick processor.
func (a *App) StartTick(ctx context.Context) error {
	return a.Tick.Start(ctx)
}

// Close releases every resource the app holds.
func (a *App) Close() error {
	a.Tick.Stop()
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("app: close store: %w", err)
		}
	}
	a.Logger.Info().Msg("application closed")
	return nil
}
