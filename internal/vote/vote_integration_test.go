package vote

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pokevote/gameserver/internal/storetest"
)

func TestRecordVoteDedup(t *testing.T) {
	a := New(storetest.NewClient(t))
	ctx := context.Background()

	res, err := a.RecordVote(ctx, "g", 0, "a1", "a")
	require.NoError(t, err)
	require.Equal(t, StatusNew, res.Status)

	res, err = a.RecordVote(ctx, "g", 0, "a1", "a")
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, res.Status)

	res, err = a.RecordVote(ctx, "g", 0, "a1", "b")
	require.NoError(t, err)
	require.Equal(t, StatusChanged, res.Status)

	tally, err := a.TallyVotes(ctx, "g", 0)
	require.NoError(t, err)
	require.Equal(t, "b", tally.WinningAction)
	require.Equal(t, int64(1), tally.TotalVotes)
	require.Equal(t, map[string]int64{"b": 1}, tally.VoteCounts)
}

func TestTallyReflectsOnlyLastVotePerAgent(t *testing.T) {
	a := New(storetest.NewClient(t))
	ctx := context.Background()

	// Each agent flips through several choices; only the final one counts.
	for i := 0; i < 5; i++ {
		agent := fmt.Sprintf("agent-%d", i)
		for _, action := range []string{"up", "down", "left"} {
			_, err := a.RecordVote(ctx, "g", 3, agent, action)
			require.NoError(t, err)
		}
	}

	tally, err := a.TallyVotes(ctx, "g", 3)
	require.NoError(t, err)
	require.Equal(t, "left", tally.WinningAction)
	require.Equal(t, int64(5), tally.TotalVotes, "tally total must equal distinct voting agents")
	require.Equal(t, map[string]int64{"left": 5}, tally.VoteCounts)
}

func TestTallyPicksHighestCount(t *testing.T) {
	a := New(storetest.NewClient(t))
	ctx := context.Background()

	votes := map[string]string{
		"a1": "up", "a2": "up", "a3": "up",
		"a4": "b", "a5": "b",
		"a6": "start",
	}
	for agent, action := range votes {
		_, err := a.RecordVote(ctx, "g", 7, agent, action)
		require.NoError(t, err)
	}

	tally, err := a.TallyVotes(ctx, "g", 7)
	require.NoError(t, err)
	require.Equal(t, "up", tally.WinningAction)
	require.Equal(t, int64(6), tally.TotalVotes)
	require.Equal(t, int64(3), tally.VoteCounts["up"])
	require.Equal(t, int64(2), tally.VoteCounts["b"])
	require.Equal(t, int64(1), tally.VoteCounts["start"])
}

func TestTallyEmptyTickFallsBack(t *testing.T) {
	a := New(storetest.NewClient(t))

	tally, err := a.TallyVotes(context.Background(), "g", 99)
	require.NoError(t, err)
	require.Equal(t, int64(0), tally.TotalVotes)
	require.Equal(t, AllowedActions[0], tally.WinningAction)
	require.Empty(t, tally.VoteCounts)
}

func TestClearVotes(t *testing.T) {
	a := New(storetest.NewClient(t))
	ctx := context.Background()

	_, err := a.RecordVote(ctx, "g", 4, "a1", "up")
	require.NoError(t, err)
	require.NoError(t, a.ClearVotes(ctx, "g", 4))

	tally, err := a.TallyVotes(ctx, "g", 4)
	require.NoError(t, err)
	require.Equal(t, int64(0), tally.TotalVotes)

	// A cleared tick accepts fresh votes as "new" again.
	res, err := a.RecordVote(ctx, "g", 4, "a1", "up")
	require.NoError(t, err)
	require.Equal(t, StatusNew, res.Status)
}

func TestGetVoteCount(t *testing.T) {
	a := New(storetest.NewClient(t))
	ctx := context.Background()

	count, err := a.GetVoteCount(ctx, "g", 5, "up")
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	_, err = a.RecordVote(ctx, "g", 5, "a1", "up")
	require.NoError(t, err)
	_, err = a.RecordVote(ctx, "g", 5, "a2", "up")
	require.NoError(t, err)

	count, err = a.GetVoteCount(ctx, "g", 5, "up")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
