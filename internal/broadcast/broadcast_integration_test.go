package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pokevote/gameserver/internal/game"
	"github.com/pokevote/gameserver/internal/storetest"
)

func TestPublishStateAndCurrentState(t *testing.T) {
	b := New(storetest.NewClient(t))
	ctx := context.Background()

	state := game.UnifiedState{GameID: "g", Turn: 3, Phase: game.PhaseBattle}
	require.NoError(t, b.PublishState(ctx, state))

	got, ok, err := b.CurrentState(ctx, "g")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state.Turn, got.Turn)
	require.Equal(t, state.Phase, got.Phase)

	_, ok, err = b.CurrentState(ctx, "other")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPublishStateReachesSubscriber(t *testing.T) {
	b := New(storetest.NewClient(t))
	ctx := context.Background()

	sub := b.Subscribe(ctx, "g")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	state := game.UnifiedState{GameID: "g", Turn: 1, Phase: game.PhaseOverworld}
	require.NoError(t, b.PublishState(ctx, state))

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var got game.UnifiedState
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	require.Equal(t, int64(1), got.Turn)
}

func TestAppendAndReplayEvents(t *testing.T) {
	b := New(storetest.NewClient(t))
	ctx := context.Background()

	for turn := int64(0); turn < 3; turn++ {
		require.NoError(t, b.AppendEvent(ctx, "g", Event{
			Type: ActionEvent, Turn: turn, Action: "up", Votes: turn + 1,
			Description: "agents voted up",
		}))
	}

	events, err := b.EventsSince(ctx, "g", "")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		require.Equal(t, int64(i), ev.Turn)
		require.Equal(t, "up", ev.Action)
		require.Equal(t, int64(i+1), ev.Votes)
	}
}
