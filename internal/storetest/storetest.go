// Package storetest spins up a throwaway Redis container for integration
// tests that need a real store. Tests using it skip themselves when Docker
// is unavailable or -short is set.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/store"
)

const redisImage = "redis:7-alpine"

// NewClient starts a Redis container and returns a connected store client.
// The container and client are torn down when the test finishes.
func NewClient(tb testing.TB) *store.Client {
	tb.Helper()

	if testing.Short() {
		tb.Skip("skipping store integration test in -short mode")
	}

	ctx := context.Background()

	// testcontainers panics instead of returning an error when it finds no
	// Docker host; turn that into an error so the test skips.
	var redisC *tcredis.RedisContainer
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		redisC, err = tcredis.Run(ctx, redisImage)
		return err
	}()
	if err != nil {
		tb.Skipf("could not start redis container (docker unavailable?): %v", err)
	}
	tb.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisC); err != nil {
			tb.Logf("terminate redis container: %v", err)
		}
	})

	url, err := redisC.ConnectionString(ctx)
	if err != nil {
		tb.Fatalf("redis connection string: %v", err)
	}

	client, err := store.New(ctx, url, logging.NewSilent())
	if err != nil {
		tb.Fatalf("connect store: %v", err)
	}
	tb.Cleanup(func() { _ = client.Close() })

	return client
}
