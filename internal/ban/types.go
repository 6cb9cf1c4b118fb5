// Package ban implements the multi-dimensional ban subsystem
// (agent/IP/CIDR/user-agent), its in-process read cache, and the violation
// counters that feed auto-escalation.
package ban

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is a ban's severity.
type Type string

const (
	TypeSoft Type = "soft"
	TypeHard Type = "hard"
)

// Kind identifies which dimension a ban applies to.
type Kind string

const (
	KindAgent     Kind = "agent"
	KindIP        Kind = "ip"
	KindCIDR      Kind = "cidr"
	KindUserAgent Kind = "user-agent"
)

// ViolationKind identifies which violation counter to increment.
type ViolationKind string

const (
	ViolationRateLimitHit   ViolationKind = "rateLimitHit"
	ViolationInvalidRequest ViolationKind = "invalidRequest"
)

// Record is a single ban. ExpiresAt is nil for a ban with no
// expiry.
type Record struct {
	Type      Type       `json:"type"`
	Reason    string     `json:"reason"`
	BannedAt  time.Time  `json:"bannedAt"`
	BannedBy  string     `json:"bannedBy"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	// Pattern carries the user-agent substring/pattern for KindUserAgent
	// records, which are stored as JSON blobs in the ban:ua set rather than
	// a dedicated hash key.
	Pattern string `json:"pattern,omitempty"`
	// Identifier and Kind carry the agentId/IP/CIDR/pattern a Record was
	// looked up by and which dimension it lives in, filled in by List() so
	// callers can tell entries apart.
	Identifier string `json:"identifier,omitempty"`
	Kind       Kind   `json:"kind,omitempty"`
}

// Expired reports whether the record's expiry has passed. A record with no
// ExpiresAt never expires.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// hashToBanRecord decodes a Record from the field map stored in a Redis
// hash. Returns ok=false if a mandatory field (type, reason, bannedAt,
// bannedBy) is missing.
func hashToBanRecord(fields map[string]string) (Record, bool) {
	t, ok := fields["type"]
	if !ok || t == "" {
		return Record{}, false
	}
	reason, ok := fields["reason"]
	if !ok {
		return Record{}, false
	}
	bannedAtStr, ok := fields["bannedAt"]
	if !ok {
		return Record{}, false
	}
	bannedBy, ok := fields["bannedBy"]
	if !ok {
		return Record{}, false
	}

	var bannedAtMs int64
	if _, err := fmt.Sscanf(bannedAtStr, "%d", &bannedAtMs); err != nil {
		return Record{}, false
	}

	r := Record{
		Type:     Type(t),
		Reason:   reason,
		BannedAt: time.UnixMilli(bannedAtMs),
		BannedBy: bannedBy,
		Pattern:  fields["pattern"],
	}

	if expStr, ok := fields["expiresAt"]; ok && expStr != "" {
		var expMs int64
		if _, err := fmt.Sscanf(expStr, "%d", &expMs); err == nil {
			exp := time.UnixMilli(expMs)
			r.ExpiresAt = &exp
		}
	}

	return r, true
}

// banRecordToHash encodes a Record into the field map persisted to a Redis
// hash.
func banRecordToHash(r Record) map[string]any {
	fields := map[string]any{
		"type":     string(r.Type),
		"reason":   r.Reason,
		"bannedAt": r.BannedAt.UnixMilli(),
		"bannedBy": r.BannedBy,
	}
	if r.Pattern != "" {
		fields["pattern"] = r.Pattern
	}
	if r.ExpiresAt != nil {
		fields["expiresAt"] = r.ExpiresAt.UnixMilli()
	}
	return fields
}

// uaEntry is the JSON shape stored as a member of the ban:ua set.
type uaEntry struct {
	Pattern   string     `json:"pattern"`
	Type      Type       `json:"type"`
	Reason    string     `json:"reason"`
	BannedAt  time.Time  `json:"bannedAt"`
	BannedBy  string     `json:"bannedBy"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (e uaEntry) toRecord() Record {
	return Record{
		Type: e.Type, Reason: e.Reason, BannedAt: e.BannedAt,
		BannedBy: e.BannedBy, ExpiresAt: e.ExpiresAt, Pattern: e.Pattern,
	}
}

func (e uaEntry) marshal() (string, error) {
	b, err := json.Marshal(e)
	return string(b), err
}

func unmarshalUAEntry(s string) (uaEntry, bool) {
	var e uaEntry
	if err := json.Unmarshal([]byte(s), &e); err != nil || e.Pattern == "" {
		return uaEntry{}, false
	}
	return e, true
}

// CheckResult is the outcome of a Check call.
type CheckResult struct {
	Banned    bool
	Type      Type
	Reason    string
	ExpiresAt *time.Time
}
