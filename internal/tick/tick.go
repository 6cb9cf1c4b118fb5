// Package tick implements the single-writer tick loop that tallies votes,
// actuates the emulator, decodes state, persists and publishes it, and
// advances a monotonic per-game tick counter.
package tick

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pokevote/gameserver/internal/broadcast"
	"github.com/pokevote/gameserver/internal/game"
	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/vote"
)

// ErrAlreadyRunning is returned by Start when the processor is already
// running. Starting twice is an error; stopping twice is not.
var ErrAlreadyRunning = errors.New("tick: processor already running")

// Callback is invoked with the unified state at the end of every tick.
// A callback that panics is recovered and logged; it never aborts the tick.
type Callback func(state game.UnifiedState)

// VoteSource is the slice of the vote aggregator the tick loop consumes.
// *vote.Aggregator satisfies it.
type VoteSource interface {
	TallyVotes(ctx context.Context, gameID string, tickID int64) (vote.TallyResult, error)
	ClearVotes(ctx context.Context, gameID string, tickID int64) error
}

// StateSink receives each tick's unified state and action event.
// *broadcast.Broadcaster satisfies it.
type StateSink interface {
	PublishState(ctx context.Context, state game.UnifiedState) error
	SnapshotState(ctx context.Context, state game.UnifiedState) error
	AppendEvent(ctx context.Context, gameID string, ev broadcast.Event) error
}

// Processor drives a single game's tick loop. One Processor exists per
// game-id; the emulator it wraps is single-owner.
type Processor struct {
	gameID           string
	emulator         game.Emulator
	extractor        game.StateExtractor
	aggregator       VoteSource
	broadcaster      StateSink
	logger           *logging.Logger
	tickInterval     time.Duration
	emulatorSettleMs time.Duration
	snapshotEvery    int64

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	currentTick int64

	callbacksMu sync.RWMutex
	callbacks   []Callback
}

// Config configures a new Processor.
type Config struct {
	GameID           string
	Emulator         game.Emulator
	Extractor        game.StateExtractor
	Aggregator       VoteSource
	Broadcaster      StateSink
	Logger           *logging.Logger
	TickInterval     time.Duration
	EmulatorSettleMs time.Duration
	// SnapshotEvery, if > 0, takes a durable snapshot of the unified state
	// every SnapshotEvery ticks. 0 disables snapshotting.
	SnapshotEvery int64
}

// New creates a Processor from cfg, stopped.
func New(cfg Config) *Processor {
	return &Processor{
		gameID:           cfg.GameID,
		emulator:         cfg.Emulator,
		extractor:        cfg.Extractor,
		aggregator:       cfg.Aggregator,
		broadcaster:      cfg.Broadcaster,
		logger:           cfg.Logger,
		tickInterval:     cfg.TickInterval,
		emulatorSettleMs: cfg.EmulatorSettleMs,
		snapshotEvery:    cfg.SnapshotEvery,
	}
}

// RegisterCallback adds a callback invoked at the end of every tick.
func (p *Processor) RegisterCallback(cb Callback) {
	p.callbacksMu.Lock()
	defer p.callbacksMu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

// CurrentTick returns the processor's current tick counter.
func (p *Processor) CurrentTick() int64 {
	return atomic.LoadInt64(&p.currentTick)
}

// Start begins the tick loop. Returns ErrAlreadyRunning if already started.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.run(runCtx)
	return nil
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
// Stopping an already-stopped processor is a no-op.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.running = false
	p.mu.Unlock()

	cancel()
	<-done
}

// run executes ticks strictly sequentially at tickInterval cadence. A tick
// that overruns the interval delays the next tick rather than overlapping
// it; the emulator is non-reentrant.
func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.executeTick(ctx)
		}
	}
}

// executeTick runs exactly one tick: tally, actuate, extract, persist,
// publish, clear, advance.
func (p *Processor) executeTick(ctx context.Context) {
	currentTick := atomic.LoadInt64(&p.currentTick)

	res, err := p.aggregator.TallyVotes(ctx, p.gameID, currentTick)
	if err != nil {
		p.logger.Error().Str("gameId", p.gameID).Int("tick", int(currentTick)).Str("error", err.Error()).Msg("tick: tally failed")
		res = vote.TallyResult{}
	}

	if res.TotalVotes > 0 {
		p.actuate(ctx, res.WinningAction)
	}

	memory, err := p.emulator.ReadMemory(ctx)
	if err != nil {
		p.logger.Error().Str("gameId", p.gameID).Int("tick", int(currentTick)).Str("error", err.Error()).Msg("tick: read memory failed")
		atomic.AddInt64(&p.currentTick, 1)
		return
	}

	state, err := p.extractor.Extract(memory, p.gameID, currentTick)
	if err != nil {
		p.logger.Error().Str("gameId", p.gameID).Int("tick", int(currentTick)).Str("error", err.Error()).Msg("tick: state extraction failed")
		atomic.AddInt64(&p.currentTick, 1)
		return
	}

	if err := p.broadcaster.PublishState(ctx, state); err != nil {
		// Log and skip this tick's persistence; currentTick still advances
		// so agents are not left voting on a tick that will never clear.
		p.logger.Error().Str("gameId", p.gameID).Int("tick", int(currentTick)).Str("error", err.Error()).Msg("tick: publish failed, skipping")
	}

	if p.snapshotEvery > 0 && currentTick%p.snapshotEvery == 0 {
		if err := p.broadcaster.SnapshotState(ctx, state); err != nil {
			p.logger.Error().Str("gameId", p.gameID).Int("tick", int(currentTick)).Str("error", err.Error()).Msg("tick: snapshot failed")
		}
	}

	if res.TotalVotes > 0 {
		if err := p.aggregator.ClearVotes(ctx, p.gameID, currentTick); err != nil {
			p.logger.Error().Str("gameId", p.gameID).Int("tick", int(currentTick)).Str("error", err.Error()).Msg("tick: clear votes failed")
		}
		if err := p.broadcaster.AppendEvent(ctx, p.gameID, broadcast.Event{
			Type:        broadcast.ActionEvent,
			Turn:        currentTick,
			Action:      res.WinningAction,
			Votes:       res.VoteCounts[res.WinningAction],
			Description: fmt.Sprintf("agents voted %s", res.WinningAction),
		}); err != nil {
			p.logger.Error().Str("gameId", p.gameID).Int("tick", int(currentTick)).Str("error", err.Error()).Msg("tick: append event failed")
		}
	}

	p.invokeCallbacks(state)

	atomic.AddInt64(&p.currentTick, 1)
}

// actuate presses the button mapped from winningAction. An emulator error
// aborts only this tick's actuation; RAM read and publish still proceed so
// observers see liveness.
func (p *Processor) actuate(ctx context.Context, winningAction string) {
	button, ok := game.ButtonFor(winningAction)
	if !ok {
		p.logger.Error().Str("gameId", p.gameID).Str("action", winningAction).Msg("tick: unmapped winning action")
		return
	}

	if err := p.emulator.PressButton(ctx, button); err != nil {
		p.logger.Error().Str("gameId", p.gameID).Str("button", string(button)).Str("error", err.Error()).Msg("tick: press button failed")
		return
	}

	if p.emulatorSettleMs > 0 {
		select {
		case <-time.After(p.emulatorSettleMs):
		case <-ctx.Done():
		}
	}
}

// invokeCallbacks runs every registered callback, recovering and logging any
// panic so one misbehaving callback never aborts the tick.
func (p *Processor) invokeCallbacks(state game.UnifiedState) {
	p.callbacksMu.RLock()
	callbacks := append([]Callback(nil), p.callbacks...)
	p.callbacksMu.RUnlock()

	for _, cb := range callbacks {
		p.runCallback(cb, state)
	}
}

func (p *Processor) runCallback(cb Callback, state game.UnifiedState) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("gameId", p.gameID).Str("panic", fmt.Sprintf("%v", r)).Msg("tick: callback panicked")
		}
	}()
	cb(state)
}
