package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pokevote/gameserver/internal/credentials"
	"github.com/pokevote/gameserver/internal/storetest"
)

func TestCheckFreePlanBurst(t *testing.T) {
	l := New(storetest.NewClient(t))
	ctx := context.Background()

	// Free plan: rate 5, burst 8. Back-to-back calls drain the burst.
	allowed := 0
	var lastDenied Result
	for i := 0; i < 10; i++ {
		res, err := l.Check(ctx, "free-agent", credentials.PlanFree, 5)
		require.NoError(t, err)
		if res.Allowed {
			allowed++
		} else {
			lastDenied = res
		}
	}

	// Allow for a token or two of refill between calls; the burst bound
	// itself must hold.
	require.GreaterOrEqual(t, allowed, 8)
	require.Less(t, allowed, 10)
	require.Equal(t, int64(200), lastDenied.RetryAfterMs, "retry-after is ceil(1000/rate)")
}

func TestCheckSeparateAgentsSeparateBuckets(t *testing.T) {
	l := New(storetest.NewClient(t))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		res, err := l.Check(ctx, "agent-a", credentials.PlanFree, 5)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	// Draining agent-a's bucket leaves agent-b untouched.
	res, err := l.Check(ctx, "agent-b", credentials.PlanFree, 5)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, int64(7), res.Remaining)
}
