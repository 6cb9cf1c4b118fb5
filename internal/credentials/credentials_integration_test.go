package credentials

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pokevote/gameserver/internal/storetest"
)

func TestStoreLookupRevoke(t *testing.T) {
	client := storetest.NewClient(t)
	s := New(client)
	ctx := context.Background()

	meta := Metadata{AgentID: "a1", Plan: PlanStandard, RPSLimit: 20, CreatedAt: 1700000000000}
	require.NoError(t, s.Store(ctx, "raw-key-1", meta))

	got, ok, err := s.Lookup(ctx, "raw-key-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, meta, got)

	_, ok, err = s.Lookup(ctx, "never-issued")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Revoke(ctx, "raw-key-1"))
	_, ok, err = s.Lookup(ctx, "raw-key-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegisterAgent(t *testing.T) {
	client := storetest.NewClient(t)
	s := New(client)
	ctx := context.Background()

	res, err := s.RegisterAgent(ctx, "fresh", PlanFree, 5)
	require.NoError(t, err)
	require.Equal(t, "fresh", res.AgentID)
	require.NotEmpty(t, res.APIKey)

	// The issued key authenticates.
	meta, ok, err := s.Lookup(ctx, res.APIKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", meta.AgentID)
	require.Equal(t, PlanFree, meta.Plan)

	// A second claim on the same id fails.
	_, err = s.RegisterAgent(ctx, "fresh", PlanFree, 5)
	require.ErrorIs(t, err, ErrAgentIDTaken)
}

func TestRegisterAgentRace(t *testing.T) {
	client := storetest.NewClient(t)
	s := New(client)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.RegisterAgent(ctx, "contested", PlanFree, 5)
		}(i)
	}
	wg.Wait()

	var succeeded, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAgentIDTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one registration must win")
	require.Equal(t, racers-1, taken)
}
