// Package broadcast implements the two channels a game's state fans out
// on: a last-write-wins pub/sub topic and an append-only event stream,
// plus reconstitution for a newly-connecting consumer.
package broadcast

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pokevote/gameserver/internal/game"
	"github.com/pokevote/gameserver/internal/store"
)

// EventType identifies an event-stream entry's kind.
type EventType string

const ActionEvent EventType = "ACTION"

// Event is a single append-only entry in a game's event stream.
type Event struct {
	Type        EventType `json:"type"`
	Turn        int64     `json:"turn"`
	Action      string    `json:"action"`
	Votes       int64     `json:"votes"`
	Description string    `json:"description"`
}

// Broadcaster publishes unified state and action events for games.
type Broadcaster struct {
	client *store.Client
}

// New creates a Broadcaster backed by client.
func New(client *store.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// PublishState persists state at its durable key and publishes it on the
// game's pub/sub topic. Persistence and publish
// are independent store calls; a publish failure does not roll back the
// persisted state, since the topic is explicitly last-write-wins and a
// reconnecting subscriber recovers via the persisted key.
func (b *Broadcaster) PublishState(ctx context.Context, state game.UnifiedState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if err := b.client.Set(ctx, store.KeyGameState(state.GameID), string(encoded), 0); err != nil {
		return err
	}

	return b.client.Publish(ctx, store.ChannelGameState(state.GameID), string(encoded))
}

// AppendEvent appends an action event to the game's event stream.
func (b *Broadcaster) AppendEvent(ctx context.Context, gameID string, ev Event) error {
	return b.client.XAdd(ctx, store.KeyGameEvents(gameID), map[string]any{
		"type":        string(ev.Type),
		"turn":        ev.Turn,
		"action":      ev.Action,
		"votes":       ev.Votes,
		"description": ev.Description,
	})
}

// EventsSince replays every event appended at or after fromID ("-" for the
// full history) on gameID's event stream, for a consumer reconstituting its
// view of a game it just connected to.
func (b *Broadcaster) EventsSince(ctx context.Context, gameID string, fromID string) ([]Event, error) {
	if fromID == "" {
		fromID = "-"
	}

	messages, err := b.client.XRangeFrom(ctx, store.KeyGameEvents(gameID), fromID)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(messages))
	for _, msg := range messages {
		events = append(events, eventFromStreamValues(msg.Values))
	}
	return events, nil
}

func eventFromStreamValues(values map[string]any) Event {
	ev := Event{Type: ActionEvent}
	if v, ok := values["type"].(string); ok {
		ev.Type = EventType(v)
	}
	if v, ok := values["turn"]; ok {
		ev.Turn = toInt64(v)
	}
	if v, ok := values["action"].(string); ok {
		ev.Action = v
	}
	if v, ok := values["votes"]; ok {
		ev.Votes = toInt64(v)
	}
	if v, ok := values["description"].(string); ok {
		ev.Description = v
	}
	return ev
}

// toInt64 converts a stream-field value (go-redis always returns fields as
// strings, but accepts other scalars from XAddArgs round-trips in tests) to
// an int64, defaulting to 0 on parse failure.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// SnapshotState persists a durable, TTL-bound copy of state under its
// turn number, independent of the live game:state key.
func (b *Broadcaster) SnapshotState(ctx context.Context, state game.UnifiedState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, store.KeyGameSnapshot(state.GameID, state.Turn), string(encoded), store.SnapshotTTLSeconds*time.Second)
}

// CurrentStateRaw reads the persisted unified state JSON verbatim, for
// callers that pass it through untouched.
func (b *Broadcaster) CurrentStateRaw(ctx context.Context, gameID string) (string, bool, error) {
	raw, err := b.client.Get(ctx, store.KeyGameState(gameID))
	if err != nil {
		return "", false, err
	}
	return raw, raw != "", nil
}

// CurrentState reads the most recently persisted unified state for gameID,
// decoded, used by reconstitution and the MCP get_state tool.
func (b *Broadcaster) CurrentState(ctx context.Context, gameID string) (game.UnifiedState, bool, error) {
	raw, err := b.client.Get(ctx, store.KeyGameState(gameID))
	if err != nil {
		return game.UnifiedState{}, false, err
	}
	if raw == "" {
		return game.UnifiedState{}, false, nil
	}

	var state game.UnifiedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return game.UnifiedState{}, false, err
	}
	return state, true, nil
}

// Subscribe opens a subscription to gameID's state topic. The caller owns
// the returned subscription and must Close it.
func (b *Broadcaster) Subscribe(ctx context.Context, gameID string) *redis.PubSub {
	return b.client.Subscribe(ctx, store.ChannelGameState(gameID))
}
