// Package ratelimit implements the per-agent token bucket built on the
// store's atomic token-bucket script, plus the plan->(rate,burst) table.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/pokevote/gameserver/internal/credentials"
	"github.com/pokevote/gameserver/internal/store"
)

// planLimits maps a plan to its (rate per second, burst) pair.
var planLimits = map[credentials.Plan]struct {
	Rate  float64
	Burst float64
}{
	credentials.PlanFree:     {Rate: 5, Burst: 8},
	credentials.PlanStandard: {Rate: 20, Burst: 30},
	credentials.PlanPremium:  {Rate: 100, Burst: 150},
}

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed      bool
	Remaining    int64
	RetryAfterMs int64
}

// Limiter is a token-bucket rate limiter backed by the shared store.
type Limiter struct {
	client *store.Client
}

// New creates a Limiter backed by client.
func New(client *store.Client) *Limiter {
	return &Limiter{client: client}
}

// LimitsFor resolves a plan to its (rate, burst) pair. An unknown plan
// falls back to burst = rpsLimit * 2, using rpsLimit as the rate.
func LimitsFor(plan credentials.Plan, rpsLimit int) (rate, burst float64) {
	if l, ok := planLimits[plan]; ok {
		return l.Rate, l.Burst
	}
	return float64(rpsLimit), float64(rpsLimit) * 2
}

// Check runs the token-bucket script for agentID, consuming one token.
func (l *Limiter) Check(ctx context.Context, agentID string, plan credentials.Plan, rpsLimit int) (Result, error) {
	rate, burst := LimitsFor(plan, rpsLimit)
	return l.CheckWithLimits(ctx, agentID, rate, burst)
}

// CheckWithLimits runs the token-bucket script for agentID against an
// explicit (rate, burst) pair, cost 1.
func (l *Limiter) CheckWithLimits(ctx context.Context, agentID string, rate, burst float64) (Result, error) {
	now := time.Now().UnixMilli()
	res, err := l.client.RunTokenBucket(ctx, store.KeyRateLimit(agentID), now, rate, burst, 1)
	if err != nil {
		return Result{}, err
	}

	result := Result{Allowed: res.Allowed, Remaining: res.Remaining}
	if !res.Allowed {
		result.RetryAfterMs = int64(math.Ceil(1000 / rate))
	}
	return result, nil
}
