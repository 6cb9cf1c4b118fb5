// Package game defines the contract between the tick processor and the
// emulator/extractor it drives. This package holds only the types and the
// button mapping table; it never touches an actual emulator process.
package game

import (
	"context"
	"encoding/json"
)

// Button is one of the Game Boy's eight physical inputs.
type Button string

const (
	ButtonUp     Button = "UP"
	ButtonDown   Button = "DOWN"
	ButtonLeft   Button = "LEFT"
	ButtonRight  Button = "RIGHT"
	ButtonA      Button = "A"
	ButtonB      Button = "B"
	ButtonStart  Button = "START"
	ButtonSelect Button = "SELECT"
)

// actionToButton maps a winning vote action to the physical button the
// emulator receives.
var actionToButton = map[string]Button{
	"up":     ButtonUp,
	"down":   ButtonDown,
	"left":   ButtonLeft,
	"right":  ButtonRight,
	"a":      ButtonA,
	"b":      ButtonB,
	"start":  ButtonStart,
	"select": ButtonSelect,
}

// ButtonFor maps a validated vote action to its physical button. Returns
// ok=false for anything outside the eight-button alphabet.
func ButtonFor(action string) (Button, bool) {
	b, ok := actionToButton[action]
	return b, ok
}

// Emulator is the single-owner interface the tick processor drives. Only
// the tick processor, or a caller serialised behind the same lock, may
// call PressButton or ReadMemory.
type Emulator interface {
	// PressButton actuates button and returns once the input has been
	// delivered to the running game.
	PressButton(ctx context.Context, button Button) error
	// ReadMemory returns a byte-addressable snapshot of the emulator's
	// current memory state.
	ReadMemory(ctx context.Context) ([]byte, error)
}

// Phase is the high-level mode a decoded UnifiedState reports.
type Phase string

const (
	PhaseOverworld Phase = "overworld"
	PhaseBattle    Phase = "battle"
)

// UnifiedState is the structured record the extractor produces from a raw
// memory snapshot. The tick processor treats Overworld,
// Battle and Screen as opaque JSON payloads; only GameID, Turn and Phase
// are read by the processor itself.
type UnifiedState struct {
	GameID    string          `json:"gameId"`
	Turn      int64           `json:"turn"`
	Phase     Phase           `json:"phase"`
	Player    json.RawMessage `json:"player,omitempty"`
	Party     json.RawMessage `json:"party,omitempty"`
	Inventory json.RawMessage `json:"inventory,omitempty"`
	Progress  json.RawMessage `json:"progress,omitempty"`
	Battle    json.RawMessage `json:"battle,omitempty"`
	Overworld json.RawMessage `json:"overworld,omitempty"`
	Screen    json.RawMessage `json:"screen,omitempty"`
}

// StateExtractor is a pure function from a raw memory snapshot to a
// UnifiedState. Implementations must not perform I/O.
type StateExtractor interface {
	Extract(memory []byte, gameID string, turn int64) (UnifiedState, error)
}
