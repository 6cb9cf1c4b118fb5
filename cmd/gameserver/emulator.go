package main

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pokevote/gameserver/internal/game"
)

// gbRAMSize is the size of the memory snapshot the loopback emulator
// serves, matching the Game Boy's addressable range.
const gbRAMSize = 0x10000

// loopbackEmulator is a stand-in emulator: it accepts button presses and
// serves a zeroed memory snapshot. It exists so the server can run end to
// end without a real Game Boy process attached.
type loopbackEmulator struct {
	mu         sync.Mutex
	lastButton game.Button
	presses    int64
	memory     []byte
}

func newLoopbackEmulator() *loopbackEmulator {
	return &loopbackEmulator{memory: make([]byte, gbRAMSize)}
}

func (e *loopbackEmulator) PressButton(ctx context.Context, button game.Button) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastButton = button
	e.presses++
	return nil
}

func (e *loopbackEmulator) ReadMemory(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := make([]byte, len(e.memory))
	copy(snapshot, e.memory)
	return snapshot, nil
}

// rawExtractor produces a minimal unified state from a memory snapshot.
// A real deployment swaps this for the Pokemon Red RAM decoder.
type rawExtractor struct{}

func (x *rawExtractor) Extract(memory []byte, gameID string, turn int64) (game.UnifiedState, error) {
	progress, err := json.Marshal(map[string]any{"memoryBytes": len(memory)})
	if err != nil {
		return game.UnifiedState{}, err
	}
	return game.UnifiedState{
		GameID:   gameID,
		Turn:     turn,
		Phase:    game.PhaseOverworld,
		Progress: progress,
	}, nil
}
