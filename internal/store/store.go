// Package store wraps the shared key-value store (Redis) that holds
// votes, unified game state, bans and credentials: a connection with
// reconnect/retry backoff plus the two atomic scripts every other
// component builds on.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/pokevote/gameserver/internal/logging"
)

// ErrUnavailable is returned when the store could not be reached after the
// configured number of reconnect attempts.
var ErrUnavailable = errors.New("store: unavailable")

// defaultTimeout bounds every outbound store call.
const defaultTimeout = 5 * time.Second

// Reconnects back off exponentially, capped at 5s, up to 10 attempts
// before surfacing an unavailable state.
const (
	maxReconnectAttempts = 10
	maxReconnectBackoff  = 5 * time.Second
)

// Client is a connection to the shared store, safe for concurrent and
// pipelined use (go-redis's *redis.Client already is; this type adds
// reconnect/backoff and the domain-specific helpers the rest of the server
// calls).
type Client struct {
	rdb    *redis.Client
	logger *logging.Logger
	ttTB   *redis.Script
	ttVote *redis.Script
}

// New dials the store at url (a redis:// URL), retrying with exponential
// backoff up to maxReconnectAttempts times before returning ErrUnavailable.
func New(ctx context.Context, url string, logger *logging.Logger) (*Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse url: %w", err)
	}

	rdb := redis.NewClient(opt)

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = maxReconnectBackoff
	b.MaxElapsedTime = 0 // bounded by attempt count below, not elapsed time

	var lastErr error
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		lastErr = rdb.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			c := &Client{rdb: rdb, logger: logger}
			c.ttTB = redis.NewScript(tokenBucketScript)
			c.ttVote = redis.NewScript(voteDedupScript)
			return c, nil
		}

		logger.Warn().Int("attempt", attempt).Str("error", lastErr.Error()).Msg("store: connect failed, retrying")
		if attempt == maxReconnectAttempts {
			break
		}
		select {
		case <-time.After(b.NextBackOff()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// isRetryable reports whether err is a transient condition worth
// retrying: READONLY (failover demoted the primary), connection reset,
// connection refused.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "READONLY") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused")
}

// withTimeout derives a context bounded by the default per-call store timeout.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultTimeout)
}

// readRetries is how many extra attempts an idempotent read gets when the
// store returns a transient error. Writes are never retried here; their
// errors propagate to the caller.
const readRetries = 2

// readWithRetry runs fn with the per-call timeout, retrying transient
// errors. Only safe for idempotent reads.
func (c *Client) readWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	var err error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil || !isRetryable(err) || attempt == readRetries {
			return err
		}
		select {
		case <-time.After(b.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// --- string ops ---

// Get reads a string key. Returns ("", nil) if the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := c.readWithRetry(ctx, func(ctx context.Context) error {
		res, err := c.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		v = res
		return nil
	})
	return v, err
}

// SetNX sets key to value only if it does not already exist, the
// linearisation point for agent-ID claims. Returns true if the set
// happened.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Set sets key to value with an optional TTL (0 means no expiry).
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Del removes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Del(ctx, keys...).Err()
}

// Expire sets a TTL on an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// --- hash ops ---

// HGetAll reads every field of a hash key.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var fields map[string]string
	err := c.readWithRetry(ctx, func(ctx context.Context) error {
		res, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		fields = res
		return nil
	})
	return fields, err
}

// HSet sets one or more fields of a hash key.
func (c *Client) HSet(ctx context.Context, key string, fields map[string]any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.HSet(ctx, key, fields).Err()
}

// HGet reads one field of a hash key. Returns ("", nil) if missing.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	var v string
	err := c.readWithRetry(ctx, func(ctx context.Context) error {
		res, err := c.rdb.HGet(ctx, key, field).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		v = res
		return nil
	})
	return v, err
}

// HIncrBy atomically increments an integer hash field.
func (c *Client) HIncrBy(ctx context.Context, key, field string, by int64) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.HIncrBy(ctx, key, field, by).Result()
}

// --- ordered-set ops (vote tallies, CIDR index) ---

// ZIncrBy increments the score of member in the ordered set at key.
func (c *Client) ZIncrBy(ctx context.Context, key string, increment float64, member string) (float64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.ZIncrBy(ctx, key, increment, member).Result()
}

// ZRevRangeWithScores returns members in descending score order, highest
// first. Equal-score members come in reverse lexicographic order, the way
// Redis itself orders them; insertion order is not tracked.
func (c *Client) ZRevRangeWithScores(ctx context.Context, key string) ([]redis.Z, error) {
	var pairs []redis.Z
	err := c.readWithRetry(ctx, func(ctx context.Context) error {
		res, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		pairs = res
		return nil
	})
	return pairs, err
}

// ZScore reads the score of a single member, or 0 if absent/non-numeric.
func (c *Client) ZScore(ctx context.Context, key, member string) (float64, error) {
	var score float64
	err := c.readWithRetry(ctx, func(ctx context.Context) error {
		res, err := c.rdb.ZScore(ctx, key, member).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		score = res
		return nil
	})
	return score, err
}

// --- set ops (UA ban patterns) ---

// SAdd adds one or more members to a set.
func (c *Client) SAdd(ctx context.Context, key string, members ...any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.SAdd(ctx, key, members...).Err()
}

// SRem removes one or more members from a set.
func (c *Client) SRem(ctx context.Context, key string, members ...any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.SRem(ctx, key, members...).Err()
}

// SMembers returns every member of a set.
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := c.readWithRetry(ctx, func(ctx context.Context) error {
		res, err := c.rdb.SMembers(ctx, key).Result()
		if err != nil {
			return err
		}
		members = res
		return nil
	})
	return members, err
}

// ZRange returns ordered-set members (without scores) in ascending order,
// used to enumerate the CIDR ban index.
func (c *Client) ZRange(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := c.readWithRetry(ctx, func(ctx context.Context) error {
		res, err := c.rdb.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		members = res
		return nil
	})
	return members, err
}

// ScanKeys enumerates every key matching pattern. Best-effort: used by admin
// listing and by the ban cache when it rebuilds its snapshot.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// --- stream + pub/sub (state broadcast plumbing, component L) ---

// XAdd appends an entry to a stream.
func (c *Client) XAdd(ctx context.Context, stream string, fields map[string]any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fields}).Err()
}

// XRangeFrom reads stream entries at or after startID ("-" for the
// beginning), used to replay an event stream for a newly-connecting
// consumer.
func (c *Client) XRangeFrom(ctx context.Context, stream, startID string) ([]redis.XMessage, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.XRange(ctx, stream, startID, "+").Result()
}

// Publish publishes a message on a pub/sub channel.
func (c *Client) Publish(ctx context.Context, channel string, message string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe subscribes to a pub/sub channel. The caller owns the returned
// subscription and must Close it.
func (c *Client) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channel)
}

// Raw exposes the underlying *redis.Client for call sites (tests, admin
// tooling) that need an operation this wrapper doesn't cover.
func (c *Client) Raw() *redis.Client { return c.rdb }
