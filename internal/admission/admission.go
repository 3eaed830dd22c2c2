// Package admission implements the layered request admission described in
// spec.md §4.5: CIDR allowlist, authentication (API keys or shared
// token), scope check, rate limit, and payload size guard, applied in
// that order. Grounded on original_source/src/store.rs (verify_token,
// check_cidr) and src/auth.rs (authorize), reshaped around
// internal/apikeys and internal/ratelimit instead of auth.rs's inline
// per-minute counter.
package admission

import (
	"crypto/subtle"
	"fmt"
	"net"

	"github.com/zhengpenghou/lanpaste/internal/apikeys"
	"github.com/zhengpenghou/lanpaste/internal/ratelimit"
)

// Kind identifies the reason a request was denied, used by the HTTP layer
// to pick a status code and error code per spec.md §7.
type Kind int

const (
	KindNone Kind = iota
	KindForbidden
	KindUnauthorized
	KindRateLimited
	KindTooLarge
)

// Error is a denial from the admission layer.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func deny(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Gate bundles the admission-time configuration: the CIDR allowlist, the
// shared token (used only when no API keys file is configured), the API
// key store and the rate limiter.
type Gate struct {
	AllowCIDR []*net.IPNet
	Token     string
	Keys      *apikeys.Store
	Limiter   *ratelimit.Limiter
}

// AnonymousPrincipal is the fixed principal id returned when no API keys
// file is configured (shared-token or open mode); with API keys the
// principal is the key's apikeys.PrincipalID, per spec.md §9 open
// question (c).
const AnonymousPrincipal = "anonymous"

// CheckCIDR implements admission step 1: the create route's peer-IP
// allowlist. The raw socket IP is authoritative; no proxy header is
// trusted, per spec.md §9's explicit CIDR-vs-X-Forwarded-For rationale.
func (g *Gate) CheckCIDR(peerIP net.IP) error {
	if len(g.AllowCIDR) == 0 {
		return nil
	}
	if peerIP == nil {
		return deny(KindForbidden, "client IP not in allowlist")
	}
	for _, n := range g.AllowCIDR {
		if n.Contains(peerIP) {
			return nil
		}
	}
	return deny(KindForbidden, "client IP not in allowlist")
}

// Authenticate implements admission steps 2-4 for a protected route that
// requires scope. When an API keys file is configured, apiKeyHeader must
// match an enabled key with the required scope and available rate-limit
// tokens. Otherwise, if a shared token is configured, token must match it
// via constant-time comparison; scope and rate limiting do not apply in
// token mode. Returns the resolved principal id on success.
func (g *Gate) Authenticate(apiKeyHeader, token, scope string) (string, error) {
	principal, err := g.ResolvePrincipal(apiKeyHeader, token, scope)
	if err != nil {
		return "", err
	}
	if err := g.ConsumeRateLimit(principal); err != nil {
		return "", err
	}
	return principal, nil
}

// ResolvePrincipal implements admission steps 2-3 (authenticate, check
// scope) without consuming a rate-limit token. Used by the create route so
// an idempotent replay can be identified before a token is spent, per
// spec.md §4.6's "replays do not consume tokens on second and later calls".
func (g *Gate) ResolvePrincipal(apiKeyHeader, token, scope string) (string, error) {
	if g.Keys.Enabled() {
		if apiKeyHeader == "" {
			return "", deny(KindUnauthorized, "missing or invalid API key")
		}
		entry, ok := g.Keys.Resolve(apiKeyHeader)
		if !ok {
			return "", deny(KindUnauthorized, "missing or invalid API key")
		}
		if scope != "" && !apikeys.HasScope(entry, scope) {
			return "", deny(KindForbidden, fmt.Sprintf("api key lacks required scope '%s'", scope))
		}
		return apikeys.PrincipalID(entry), nil
	}

	if g.Token != "" {
		if subtle.ConstantTimeCompare([]byte(g.Token), []byte(token)) != 1 {
			return "", deny(KindUnauthorized, "missing or invalid token")
		}
	}
	return AnonymousPrincipal, nil
}

// ConsumeRateLimit implements admission step 4 for a resolved principal.
// API-key principals are rate limited; the shared-token/open-mode
// anonymous principal is not, matching Authenticate's prior behaviour.
func (g *Gate) ConsumeRateLimit(principal string) error {
	if !g.Keys.Enabled() {
		return nil
	}
	if g.Limiter != nil && !g.Limiter.Allow(principal) {
		return deny(KindRateLimited, "rate limit exceeded")
	}
	return nil
}

// CheckSize implements admission step 5: the create payload size guard.
func CheckSize(size, maxBytes int64) error {
	if size > maxBytes {
		return deny(KindTooLarge, "request body exceeds max-bytes")
	}
	return nil
}

// ParseCIDRList parses repeatable --allow-cidr flag values into net.IPNet.
func ParseCIDRList(values []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(values))
	for _, v := range values {
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", v, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
