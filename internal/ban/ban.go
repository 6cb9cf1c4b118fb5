package ban

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/store"
)

// Subsystem holds the store-backed bans plus the in-process cache that
// makes IP/CIDR/UA checks cheap on the hot path.
type Subsystem struct {
	client *store.Client
	logger *logging.Logger
	cache  *cache
}

// New creates a ban Subsystem backed by client.
func New(client *store.Client, logger *logging.Logger) *Subsystem {
	return &Subsystem{client: client, logger: logger, cache: newCache()}
}

// Check evaluates agentID/ip/userAgent against every ban dimension in
// priority order: agent ban > IP/CIDR ban > UA pattern match.
func (s *Subsystem) Check(ctx context.Context, agentID, ip, userAgent string) (CheckResult, error) {
	if agentID != "" {
		fields, err := s.client.HGetAll(ctx, store.KeyBanAgent(agentID))
		if err != nil {
			return CheckResult{}, err
		}
		if len(fields) > 0 {
			if r, ok := hashToBanRecord(fields); ok && !r.Expired(time.Now()) {
				return toCheckResult(r), nil
			}
		}
	}

	s.ensureFresh(ctx)
	if r, ok := s.cache.lookupIP(ip, userAgent); ok {
		return toCheckResult(r), nil
	}

	return CheckResult{Banned: false}, nil
}

func toCheckResult(r Record) CheckResult {
	return CheckResult{Banned: true, Type: r.Type, Reason: r.Reason, ExpiresAt: r.ExpiresAt}
}

// ensureFresh refreshes the cache if it is stale or past its TTL. A store
// failure during refresh logs and keeps serving the stale cache.
func (s *Subsystem) ensureFresh(ctx context.Context) {
	if !s.cache.needsRefresh(time.Now()) {
		return
	}

	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		s.logger.Warn().Str("error", err.Error()).Msg("ban: cache refresh failed, serving stale cache")
		return
	}
	s.cache.replace(snap)
}

func (s *Subsystem) buildSnapshot(ctx context.Context) (cacheSnapshot, error) {
	now := time.Now()
	snap := cacheSnapshot{ipBans: map[string]Record{}, refreshedAt: now}

	ipKeys, err := s.client.ScanKeys(ctx, "ban:ip:*")
	if err != nil {
		return cacheSnapshot{}, err
	}
	for _, key := range ipKeys {
		ip := key[len("ban:ip:"):]
		fields, err := s.client.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		if r, ok := hashToBanRecord(fields); ok && !r.Expired(now) {
			snap.ipBans[ip] = r
		}
	}

	cidrs, err := s.client.ZRange(ctx, store.KeyBanCIDRIndex())
	if err != nil {
		return cacheSnapshot{}, err
	}
	for _, cidr := range cidrs {
		fields, err := s.client.HGetAll(ctx, store.KeyBanCIDRMeta(cidr))
		if err != nil || len(fields) == 0 {
			continue
		}
		if r, ok := hashToBanRecord(fields); ok && !r.Expired(now) {
			snap.cidrBans = append(snap.cidrBans, struct {
				cidr   string
				record Record
			}{cidr: cidr, record: r})
		}
	}

	uaMembers, err := s.client.SMembers(ctx, store.KeyBanUA())
	if err != nil {
		return cacheSnapshot{}, err
	}
	for _, member := range uaMembers {
		entry, ok := unmarshalUAEntry(member)
		if !ok {
			continue
		}
		record := entry.toRecord()
		if record.Expired(now) {
			continue
		}
		re, err := regexp.Compile(entry.Pattern)
		if err != nil {
			continue
		}
		snap.uaPatterns = append(snap.uaPatterns, uaPattern{re: re, record: record})
	}

	return snap, nil
}

func ttlFor(expiresAt *time.Time) time.Duration {
	if expiresAt == nil {
		return 0
	}
	d := time.Until(*expiresAt)
	if d < 0 {
		return 0
	}
	return d
}

// BanAgent creates or replaces an agent ban.
func (s *Subsystem) BanAgent(ctx context.Context, agentID string, t Type, reason, bannedBy string, expiresAt *time.Time) error {
	r := Record{Type: t, Reason: reason, BannedAt: time.Now(), BannedBy: bannedBy, ExpiresAt: expiresAt}
	if err := s.client.HSet(ctx, store.KeyBanAgent(agentID), banRecordToHash(r)); err != nil {
		return err
	}
	if ttl := ttlFor(expiresAt); ttl > 0 {
		return s.client.Expire(ctx, store.KeyBanAgent(agentID), ttl)
	}
	return nil
}

// BanIP creates or replaces an IP ban and invalidates the cache.
func (s *Subsystem) BanIP(ctx context.Context, ip string, t Type, reason, bannedBy string, expiresAt *time.Time) error {
	r := Record{Type: t, Reason: reason, BannedAt: time.Now(), BannedBy: bannedBy, ExpiresAt: expiresAt}
	if err := s.client.HSet(ctx, store.KeyBanIP(ip), banRecordToHash(r)); err != nil {
		return err
	}
	if ttl := ttlFor(expiresAt); ttl > 0 {
		if err := s.client.Expire(ctx, store.KeyBanIP(ip), ttl); err != nil {
			return err
		}
	}
	s.cache.invalidate()
	return nil
}

// BanCIDR creates or replaces a CIDR ban, indexing it in the CIDR ordered
// set, and invalidates the cache.
func (s *Subsystem) BanCIDR(ctx context.Context, cidr string, t Type, reason, bannedBy string, expiresAt *time.Time) error {
	r := Record{Type: t, Reason: reason, BannedAt: time.Now(), BannedBy: bannedBy, ExpiresAt: expiresAt}
	if err := s.client.HSet(ctx, store.KeyBanCIDRMeta(cidr), banRecordToHash(r)); err != nil {
		return err
	}
	if ttl := ttlFor(expiresAt); ttl > 0 {
		if err := s.client.Expire(ctx, store.KeyBanCIDRMeta(cidr), ttl); err != nil {
			return err
		}
	}
	if _, err := s.client.ZIncrBy(ctx, store.KeyBanCIDRIndex(), 0, cidr); err != nil {
		return err
	}
	s.cache.invalidate()
	return nil
}

// BanUserAgent adds a user-agent pattern ban and invalidates the cache.
func (s *Subsystem) BanUserAgent(ctx context.Context, pattern string, t Type, reason, bannedBy string, expiresAt *time.Time) error {
	entry := uaEntry{Pattern: pattern, Type: t, Reason: reason, BannedAt: time.Now(), BannedBy: bannedBy, ExpiresAt: expiresAt}
	encoded, err := entry.marshal()
	if err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, store.KeyBanUA(), encoded); err != nil {
		return err
	}
	s.cache.invalidate()
	return nil
}

// Unban removes a ban of the given kind for identifier.
func (s *Subsystem) Unban(ctx context.Context, kind Kind, identifier string) error {
	switch kind {
	case KindAgent:
		return s.client.Del(ctx, store.KeyBanAgent(identifier))
	case KindIP:
		if err := s.client.Del(ctx, store.KeyBanIP(identifier)); err != nil {
			return err
		}
		s.cache.invalidate()
		return nil
	case KindCIDR:
		if err := s.client.Del(ctx, store.KeyBanCIDRMeta(identifier)); err != nil {
			return err
		}
		if err := s.client.Raw().ZRem(ctx, store.KeyBanCIDRIndex(), identifier).Err(); err != nil {
			return err
		}
		s.cache.invalidate()
		return nil
	case KindUserAgent:
		members, err := s.client.SMembers(ctx, store.KeyBanUA())
		if err != nil {
			return err
		}
		for _, m := range members {
			entry, ok := unmarshalUAEntry(m)
			if ok && entry.Pattern == identifier {
				if err := s.client.SRem(ctx, store.KeyBanUA(), m); err != nil {
					return err
				}
			}
		}
		s.cache.invalidate()
		return nil
	default:
		return nil
	}
}

// List performs a best-effort enumeration across every ban kind, skipping
// expired entries.
func (s *Subsystem) List(ctx context.Context) ([]Record, error) {
	now := time.Now()
	var out []Record

	agentKeys, err := s.client.ScanKeys(ctx, "ban:agent:*")
	if err != nil {
		return nil, err
	}
	for _, key := range agentKeys {
		fields, err := s.client.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		if r, ok := hashToBanRecord(fields); ok && !r.Expired(now) {
			r.Identifier = key[len("ban:agent:"):]
			r.Kind = KindAgent
			out = append(out, r)
		}
	}

	ipKeys, err := s.client.ScanKeys(ctx, "ban:ip:*")
	if err != nil {
		return nil, err
	}
	for _, key := range ipKeys {
		fields, err := s.client.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		if r, ok := hashToBanRecord(fields); ok && !r.Expired(now) {
			r.Identifier = key[len("ban:ip:"):]
			r.Kind = KindIP
			out = append(out, r)
		}
	}

	cidrs, err := s.client.ZRange(ctx, store.KeyBanCIDRIndex())
	if err != nil {
		return nil, err
	}
	for _, cidr := range cidrs {
		fields, err := s.client.HGetAll(ctx, store.KeyBanCIDRMeta(cidr))
		if err != nil || len(fields) == 0 {
			continue
		}
		if r, ok := hashToBanRecord(fields); ok && !r.Expired(now) {
			r.Identifier = cidr
			r.Kind = KindCIDR
			out = append(out, r)
		}
	}

	uaMembers, err := s.client.SMembers(ctx, store.KeyBanUA())
	if err != nil {
		return nil, err
	}
	for _, m := range uaMembers {
		entry, ok := unmarshalUAEntry(m)
		if !ok {
			continue
		}
		r := entry.toRecord()
		if r.Expired(now) {
			continue
		}
		r.Identifier = entry.Pattern
		r.Kind = KindUserAgent
		out = append(out, r)
	}

	return out, nil
}

// violationWindow bounds each agent's violation counters; the key expires
// with the window, resetting the counts.
const violationWindow = 5 * time.Minute

// RecordViolation increments agentID's counter for kind within the current
// 5-minute window, resetting the TTL on each hit so the window slides.
func (s *Subsystem) RecordViolation(ctx context.Context, agentID string, kind ViolationKind) (int64, error) {
	key := store.KeyViolations(agentID)
	count, err := s.client.HIncrBy(ctx, key, string(kind), 1)
	if err != nil {
		return 0, err
	}
	if err := s.client.Expire(ctx, key, violationWindow); err != nil {
		return count, err
	}
	return count, nil
}

// CheckAutoEscalation reads agentID's current violation counts and
// escalates: a rate-limit-hit count at or above
// rateLimitThreshold soft-bans the agent for 1h; an invalid-request count at
// or above invalidReqThreshold hard-bans the IP for 1h. Both are attributed
// to "system".
func (s *Subsystem) CheckAutoEscalation(ctx context.Context, agentID, ip string, rateLimitThreshold, invalidReqThreshold int) error {
	const escalationTTL = time.Hour
	fields, err := s.client.HGetAll(ctx, store.KeyViolations(agentID))
	if err != nil {
		return err
	}

	if rateLimitThreshold > 0 {
		if n, ok := parseCount(fields[string(ViolationRateLimitHit)]); ok && n >= int64(rateLimitThreshold) {
			expires := time.Now().Add(escalationTTL)
			if err := s.BanAgent(ctx, agentID, TypeSoft, "automatic: repeated rate-limit violations", "system", &expires); err != nil {
				return err
			}
		}
	}

	if invalidReqThreshold > 0 && ip != "" {
		if n, ok := parseCount(fields[string(ViolationInvalidRequest)]); ok && n >= int64(invalidReqThreshold) {
			expires := time.Now().Add(escalationTTL)
			if err := s.BanIP(ctx, ip, TypeHard, "automatic: repeated invalid requests", "system", &expires); err != nil {
				return err
			}
		}
	}

	return nil
}

func parseCount(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}
