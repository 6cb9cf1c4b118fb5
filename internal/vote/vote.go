// Package vote implements the per-tick vote aggregator built on the
// store's atomic dedup script and ordered-set tallies.
package vote

import (
	"context"
	"fmt"

	"github.com/pokevote/gameserver/internal/store"
)

// AllowedActions is the fixed 8-button action alphabet. The first entry
// doubles as the fallback winner for a tick with no valid votes.
var AllowedActions = []string{"up", "down", "left", "right", "a", "b", "start", "select"}

func isAllowed(action string) bool {
	for _, a := range AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// Status is the outcome of RecordVote.
type Status string

const (
	StatusNew       Status = "new"
	StatusChanged   Status = "changed"
	StatusDuplicate Status = "duplicate"
)

// RecordResult is the outcome of RecordVote.
type RecordResult struct {
	Status Status
}

// TallyResult is the outcome of TallyVotes.
type TallyResult struct {
	GameID        string
	TickID        int64
	WinningAction string
	VoteCounts    map[string]int64
	TotalVotes    int64
}

// Aggregator is the vote aggregator for a single store.
type Aggregator struct {
	client *store.Client
}

// New creates an Aggregator backed by client.
func New(client *store.Client) *Aggregator {
	return &Aggregator{client: client}
}

// RecordVote records agentID's vote for action on the given tick, via the
// store's atomic dedup script. An unrecognised action is rejected before
// reaching the store so a malformed vote can never be tallied.
func (a *Aggregator) RecordVote(ctx context.Context, gameID string, tickID int64, agentID, action string) (RecordResult, error) {
	if !isAllowed(action) {
		return RecordResult{}, fmt.Errorf("vote: invalid action %q", action)
	}

	status, err := a.client.RunVoteDedup(ctx,
		store.KeyAgentVotes(gameID, tickID),
		store.KeyVotes(gameID, tickID),
		agentID, action, store.VoteTallyTTLSeconds)
	if err != nil {
		return RecordResult{}, err
	}

	switch status {
	case store.VoteNew:
		return RecordResult{Status: StatusNew}, nil
	case store.VoteChanged:
		return RecordResult{Status: StatusChanged}, nil
	default:
		return RecordResult{Status: StatusDuplicate}, nil
	}
}

// TallyVotes reads the ordered-set tally for the given tick, validates every
// member against the allowed-action alphabet, and picks the single highest
// count. ZREVRANGE returns members highest-score-first, breaking ties in
// reverse lexicographic order; the first candidate this loop sees at the
// current max score keeps the win, so a tie goes to whichever action sorts
// first in that order. If no valid votes exist, winningAction falls back to
// the first allowed action.
func (a *Aggregator) TallyVotes(ctx context.Context, gameID string, tickID int64) (TallyResult, error) {
	pairs, err := a.client.ZRevRangeWithScores(ctx, store.KeyVotes(gameID, tickID))
	if err != nil {
		return TallyResult{}, err
	}

	result := TallyResult{
		GameID:     gameID,
		TickID:     tickID,
		VoteCounts: map[string]int64{},
	}

	var winner string
	var winnerCount int64 = -1
	for _, pair := range pairs {
		action, ok := pair.Member.(string)
		if !ok || !isAllowed(action) {
			continue
		}
		count := int64(pair.Score)
		if count <= 0 {
			continue
		}
		result.VoteCounts[action] = count
		result.TotalVotes += count
		if count > winnerCount {
			winner = action
			winnerCount = count
		}
	}

	if result.TotalVotes == 0 {
		result.WinningAction = AllowedActions[0]
	} else {
		result.WinningAction = winner
	}

	return result, nil
}

// ClearVotes deletes both the tally and per-agent dedup keys for a tick.
func (a *Aggregator) ClearVotes(ctx context.Context, gameID string, tickID int64) error {
	return a.client.Del(ctx, store.KeyVotes(gameID, tickID), store.KeyAgentVotes(gameID, tickID))
}

// GetVoteCount reads a single action's current score, 0 if missing.
func (a *Aggregator) GetVoteCount(ctx context.Context, gameID string, tickID int64, action string) (int64, error) {
	score, err := a.client.ZScore(ctx, store.KeyVotes(gameID, tickID), action)
	if err != nil {
		return 0, err
	}
	return int64(score), nil
}
