package store

import "fmt"

// Key layout, shared with every other process on the store. Other
// packages build their keys through these helpers rather than formatting
// strings inline, so the layout stays in one place.

func KeyAPIKey(hash string) string              { return fmt.Sprintf("api-key:%s", hash) }
func KeyAgentRegistered(agentID string) string  { return fmt.Sprintf("agent:registered:%s", agentID) }
func KeyRateLimit(agentID string) string        { return fmt.Sprintf("rl:%s", agentID) }
func KeyVotes(gameID string, tick int64) string { return fmt.Sprintf("votes:%s:%d", gameID, tick) }
func KeyAgentVotes(gameID string, tick int64) string {
	return fmt.Sprintf("agent_votes:%s:%d", gameID, tick)
}
func KeyBanAgent(agentID string) string { return fmt.Sprintf("ban:agent:%s", agentID) }
func KeyBanIP(ip string) string         { return fmt.Sprintf("ban:ip:%s", ip) }
func KeyBanCIDRIndex() string           { return "ban:cidr" }
func KeyBanCIDRMeta(cidr string) string { return fmt.Sprintf("ban:cidr:meta:%s", cidr) }
func KeyBanUA() string                  { return "ban:ua" }
func KeyViolations(agentID string) string { return fmt.Sprintf("violations:%s", agentID) }
func KeyGameState(gameID string) string   { return fmt.Sprintf("game:state:%s", gameID) }
func KeyGameSnapshot(gameID string, turn int64) string {
	return fmt.Sprintf("game:snapshot:%s:%d", gameID, turn)
}
func KeyGameEvents(gameID string) string    { return fmt.Sprintf("game_events:%s", gameID) }
func ChannelGameState(gameID string) string { return fmt.Sprintf("game_state:%s", gameID) }

// VoteTallyTTLSeconds is the TTL on the vote tally and per-agent dedup
// keys. Tick ids come from a monotonic 64-bit counter, so a still-live
// key is never reused by a later tick.
const VoteTallyTTLSeconds = 3600

// SnapshotTTLSeconds is the TTL on periodic state snapshots.
const SnapshotTTLSeconds = 24 * 60 * 60
