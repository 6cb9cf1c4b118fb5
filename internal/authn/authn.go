// Package authn implements the authenticated-request middleware: resolve
// the API key to an agent identity, extract the client IP under the
// configured trust-proxy mode, check bans and rate limits, and attach the
// result to the request context.
package authn

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/pokevote/gameserver/internal/apierr"
	"github.com/pokevote/gameserver/internal/ban"
	"github.com/pokevote/gameserver/internal/credentials"
	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/ratelimit"
	"github.com/pokevote/gameserver/internal/reqctx"
)

// TrustProxy selects how the client IP is extracted from a request.
type TrustProxy string

const (
	TrustProxyNone       TrustProxy = "none"
	TrustProxyCloudflare TrustProxy = "cloudflare"
	TrustProxyAny        TrustProxy = "any"
)

// Middleware is the authenticated-request gate.
type Middleware struct {
	credentials *credentials.Store
	bans        *ban.Subsystem
	limiter     *ratelimit.Limiter
	logger      *logging.Logger
	trustProxy  TrustProxy

	rateLimitThreshold  int
	invalidReqThreshold int
}

// Config configures a new Middleware.
type Config struct {
	Credentials         *credentials.Store
	Bans                *ban.Subsystem
	Limiter             *ratelimit.Limiter
	Logger              *logging.Logger
	TrustProxy          TrustProxy
	RateLimitThreshold  int
	InvalidReqThreshold int
}

// New creates a Middleware from cfg.
func New(cfg Config) *Middleware {
	return &Middleware{
		credentials:         cfg.Credentials,
		bans:                cfg.Bans,
		limiter:             cfg.Limiter,
		logger:              cfg.Logger,
		trustProxy:          cfg.TrustProxy,
		rateLimitThreshold:  cfg.RateLimitThreshold,
		invalidReqThreshold: cfg.InvalidReqThreshold,
	}
}

// Wrap returns next gated behind the authentication, ban and rate-limit
// checks, in that order.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("X-Api-Key")
		if rawKey == "" {
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeMissingAuth, "missing X-Api-Key header")
			return
		}

		meta, ok, err := m.credentials.Lookup(r.Context(), rawKey)
		if err != nil {
			m.logger.Error().Str("error", err.Error()).Msg("authn: credential lookup failed")
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeInvalidAuth, "invalid API key")
			return
		}
		if !ok {
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeInvalidAuth, "invalid API key")
			return
		}

		ip := ClientIP(r, m.trustProxy)
		userAgent := r.Header.Get("User-Agent")

		banResult, err := m.bans.Check(r.Context(), meta.AgentID, ip, userAgent)
		if err != nil {
			m.logger.Error().Str("error", err.Error()).Msg("authn: ban check failed")
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeInvalidAuth, "unable to verify request")
			return
		}
		if banResult.Banned {
			apierr.WriteDetails(w, http.StatusForbidden, apierr.CodeBanned, "agent is banned", map[string]any{
				"reason":    banResult.Reason,
				"expiresAt": banResult.ExpiresAt,
			})
			return
		}

		rlResult, err := m.limiter.Check(r.Context(), meta.AgentID, meta.Plan, meta.RPSLimit)
		if err != nil {
			m.logger.Error().Str("error", err.Error()).Msg("authn: rate limit check failed")
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeInvalidAuth, "unable to verify request")
			return
		}

		rate, _ := ratelimit.LimitsFor(meta.Plan, meta.RPSLimit)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(rate)))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(rlResult.Remaining, 10))

		if !rlResult.Allowed {
			if _, err := m.bans.RecordViolation(r.Context(), meta.AgentID, ban.ViolationRateLimitHit); err != nil {
				m.logger.Warn().Str("error", err.Error()).Msg("authn: record violation failed")
			}
			if err := m.bans.CheckAutoEscalation(r.Context(), meta.AgentID, ip, m.rateLimitThreshold, m.invalidReqThreshold); err != nil {
				m.logger.Warn().Str("error", err.Error()).Msg("authn: auto escalation failed")
			}

			retryAfterSec := (rlResult.RetryAfterMs + 999) / 1000
			if retryAfterSec < 1 {
				retryAfterSec = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
			apierr.Write(w, http.StatusTooManyRequests, apierr.CodeRateLimited, "rate limit exceeded")
			return
		}

		ctx := reqctx.WithAgentContext(r.Context(), reqctx.AgentContext{
			AgentID:  meta.AgentID,
			Plan:     meta.Plan,
			RPSLimit: meta.RPSLimit,
			IP:       ip,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RecordInvalidRequest records an invalid-request violation for agentID
// and applies auto-escalation. Handlers call it after a request passes
// auth but fails body validation, before the 400 is written.
func (m *Middleware) RecordInvalidRequest(r *http.Request, agentID, ip string) {
	if _, err := m.bans.RecordViolation(r.Context(), agentID, ban.ViolationInvalidRequest); err != nil {
		m.logger.Warn().Str("error", err.Error()).Msg("authn: record invalid-request violation failed")
	}
	if err := m.bans.CheckAutoEscalation(r.Context(), agentID, ip, m.rateLimitThreshold, m.invalidReqThreshold); err != nil {
		m.logger.Warn().Str("error", err.Error()).Msg("authn: auto escalation failed")
	}
}

// ClientIP extracts the request's client IP per the configured trust-proxy
// mode, unwrapping an IPv6-mapped IPv4 address.
func ClientIP(r *http.Request, mode TrustProxy) string {
	var ip string
	switch mode {
	case TrustProxyCloudflare:
		ip = r.Header.Get("CF-Connecting-IP")
	case TrustProxyAny:
		xff := r.Header.Get("X-Forwarded-For")
		if xff != "" {
			ip = strings.TrimSpace(strings.Split(xff, ",")[0])
		}
	}

	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}

	return unwrapIPv4Mapped(ip)
}

// unwrapIPv4Mapped strips the ::ffff: prefix from an IPv6-mapped IPv4
// address, returning the address unchanged otherwise.
func unwrapIPv4Mapped(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil && strings.Contains(ip, ":") {
		return v4.String()
	}
	return ip
}
