// Package credentials implements the credential store and agent-ID claim
// index, including key issuance on registration.
package credentials

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pokevote/gameserver/internal/store"
)

// keyPrefix gives every issued key a recognisable shape for ops tooling
// (log scrubbers, secret scanners) without affecting entropy.
const keyPrefix = "pvk_"

// Plan is an agent's pricing/rate-limit tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// Metadata is the credential record stored at api-key:{hash}.
type Metadata struct {
	AgentID   string `json:"agentId"`
	Plan      Plan   `json:"plan"`
	RPSLimit  int    `json:"rpsLimit"`
	CreatedAt int64  `json:"createdAt"`
}

// ErrAgentIDTaken is returned by RegisterAgent when the agent-ID claim's
// compare-and-set fails.
var ErrAgentIDTaken = fmt.Errorf("credentials: agent id taken")

// Store is the credential store and agent-ID claim index.
type Store struct {
	client *store.Client
}

// New creates a credential Store backed by client.
func New(client *store.Client) *Store {
	return &Store{client: client}
}

// Hash returns the lowercase hex SHA-256 of a raw API key. Raw keys are
// never persisted; only this hash is.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two strings in constant time for equal-length
// inputs, used anywhere a raw credential affects an authorisation
// decision.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Store persists metadata for the hash of raw under api-key:{hash}.
func (s *Store) Store(ctx context.Context, raw string, meta Metadata) error {
	hash := Hash(raw)
	fields := map[string]any{
		"agentId":   meta.AgentID,
		"plan":      string(meta.Plan),
		"rpsLimit":  meta.RPSLimit,
		"createdAt": meta.CreatedAt,
	}
	return s.client.HSet(ctx, store.KeyAPIKey(hash), fields)
}

// Lookup looks up metadata for raw. Returns (Metadata{}, false, nil) if no
// credential exists or its stored shape is invalid; lookups fail closed,
// never erroring out in a way that could be mistaken for "authenticated".
func (s *Store) Lookup(ctx context.Context, raw string) (Metadata, bool, error) {
	hash := Hash(raw)
	fields, err := s.client.HGetAll(ctx, store.KeyAPIKey(hash))
	if err != nil {
		return Metadata{}, false, err
	}
	if len(fields) == 0 {
		return Metadata{}, false, nil
	}

	meta, ok := decodeMetadata(fields)
	if !ok {
		return Metadata{}, false, nil
	}
	return meta, true, nil
}

func decodeMetadata(fields map[string]string) (Metadata, bool) {
	agentID, ok := fields["agentId"]
	if !ok || agentID == "" {
		return Metadata{}, false
	}
	plan, ok := fields["plan"]
	if !ok {
		return Metadata{}, false
	}

	var rpsLimit int
	if _, err := fmt.Sscanf(fields["rpsLimit"], "%d", &rpsLimit); err != nil {
		return Metadata{}, false
	}
	var createdAt int64
	if _, err := fmt.Sscanf(fields["createdAt"], "%d", &createdAt); err != nil {
		return Metadata{}, false
	}

	return Metadata{
		AgentID:   agentID,
		Plan:      Plan(plan),
		RPSLimit:  rpsLimit,
		CreatedAt: createdAt,
	}, true
}

// Revoke deletes the credential record for raw's hash.
func (s *Store) Revoke(ctx context.Context, raw string) error {
	return s.client.Del(ctx, store.KeyAPIKey(Hash(raw)))
}

// RegisterResult is the outcome of a successful registration.
type RegisterResult struct {
	APIKey  string
	AgentID string
	Plan    Plan
}

// claim is the value stored at agent:registered:{agentId}.
type claim struct {
	KeyHash   string `json:"keyHash"`
	Plan      Plan   `json:"plan"`
	CreatedAt int64  `json:"createdAt"`
}

// RegisterAgent claims agentID and, on success, mints and stores a new raw
// API key. The SETNX against the agent-ID claim key is the linearisation
// point: exactly one concurrent caller for a given agentID succeeds.
func (s *Store) RegisterAgent(ctx context.Context, agentID string, plan Plan, rpsLimit int) (RegisterResult, error) {
	now := time.Now().UnixMilli()

	// Placeholder claim value; immediately overwritten below with the real
	// keyHash once the key has been generated. The NX itself is what
	// linearises concurrent registrations for the same agentID.
	claimed, err := s.client.SetNX(ctx, store.KeyAgentRegistered(agentID), "pending", 0)
	if err != nil {
		return RegisterResult{}, err
	}
	if !claimed {
		return RegisterResult{}, ErrAgentIDTaken
	}

	raw, err := generateAPIKey()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("credentials: generate key: %w", err)
	}

	meta := Metadata{AgentID: agentID, Plan: plan, RPSLimit: rpsLimit, CreatedAt: now}
	if err := s.Store(ctx, raw, meta); err != nil {
		return RegisterResult{}, err
	}

	c := claim{KeyHash: Hash(raw), Plan: plan, CreatedAt: now}
	encoded, err := json.Marshal(c)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := s.client.Set(ctx, store.KeyAgentRegistered(agentID), string(encoded), 0); err != nil {
		return RegisterResult{}, err
	}

	return RegisterResult{APIKey: raw, AgentID: agentID, Plan: plan}, nil
}

// generateAPIKey creates a 32-byte random key prefixed with keyPrefix.
func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(b), nil
}
