package store

import (
	"context"
	"fmt"
)

// tokenBucketScript is the atomic token-bucket admission check.
// KEYS=[bucket] ARGV=[now_ms, rate_per_s, burst, cost]. Returns {allowed,
// tokens_remaining_floor}.
const tokenBucketScript = `
local bucket = KEYS[1]
local now_ms = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tokens = burst
local last_refill = now_ms

local existing = redis.call('HMGET', bucket, 'tokens', 'last_refill')
if existing[1] then
	tokens = tonumber(existing[1])
	last_refill = tonumber(existing[2])
end

local elapsed_s = math.max(0, now_ms - last_refill) / 1000
local new_tokens = math.min(burst, tokens + elapsed_s * rate)

local allowed = 0
if new_tokens >= cost then
	allowed = 1
	new_tokens = new_tokens - cost
end

redis.call('HSET', bucket, 'tokens', new_tokens, 'last_refill', now_ms)
local ttl = math.ceil(burst / rate) + 60
redis.call('EXPIRE', bucket, ttl)

return {allowed, math.floor(new_tokens)}
`

// voteDedupScript enforces at most one vote per agent per tick and keeps
// the tally in step. KEYS=[agent_votes, tally] ARGV=[agentId, action,
// ttl_s]. Returns 0 (duplicate), 1 (new vote) or 2 (changed vote).
const voteDedupScript = `
local agent_votes = KEYS[1]
local tally = KEYS[2]
local agent_id = ARGV[1]
local action = ARGV[2]
local ttl_s = tonumber(ARGV[3])

local prior = redis.call('HGET', agent_votes, agent_id)

if prior == action then
	return 0
end

local result = 1
if prior then
	redis.call('ZINCRBY', tally, -1, prior)
	result = 2
end

redis.call('ZINCRBY', tally, 1, action)
redis.call('HSET', agent_votes, agent_id, action)
redis.call('EXPIRE', agent_votes, ttl_s)
redis.call('EXPIRE', tally, ttl_s)

return result
`

// TokenBucketResult is the outcome of a RunTokenBucket call.
type TokenBucketResult struct {
	Allowed   bool
	Remaining int64
}

// RunTokenBucket executes the token-bucket script against bucketKey.
func (c *Client) RunTokenBucket(ctx context.Context, bucketKey string, nowMs int64, ratePerSec, burst float64, cost float64) (TokenBucketResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.ttTB.Run(ctx, c.rdb, []string{bucketKey}, nowMs, ratePerSec, burst, cost).Result()
	if err != nil {
		return TokenBucketResult{}, fmt.Errorf("store: token bucket script: %w", err)
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return TokenBucketResult{}, fmt.Errorf("store: unexpected token bucket result shape: %#v", res)
	}

	allowed, _ := vals[0].(int64)
	remaining, _ := vals[1].(int64)
	return TokenBucketResult{Allowed: allowed == 1, Remaining: remaining}, nil
}

// VoteDedupStatus is the outcome of a RunVoteDedup call.
type VoteDedupStatus int

const (
	VoteDuplicate VoteDedupStatus = 0
	VoteNew       VoteDedupStatus = 1
	VoteChanged   VoteDedupStatus = 2
)

// RunVoteDedup executes the vote-dedup script against the given agent-votes
// and tally keys.
func (c *Client) RunVoteDedup(ctx context.Context, agentVotesKey, tallyKey, agentID, action string, ttlSeconds int) (VoteDedupStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.ttVote.Run(ctx, c.rdb, []string{agentVotesKey, tallyKey}, agentID, action, ttlSeconds).Result()
	if err != nil {
		return 0, fmt.Errorf("store: vote dedup script: %w", err)
	}

	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("store: unexpected vote dedup result shape: %#v", res)
	}
	return VoteDedupStatus(n), nil
}
