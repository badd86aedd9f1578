// Package gate is the request gate sitting in front of every route:
// static security headers, a fixed-window rate limiter keyed by source
// IP, and heuristic rejection of non-browser clients and cross-origin
// requests.
package gate

import (
	"context"
	"strings"
	"time"

	"github.com/bastion-dev/bastion/core"
)

// SecurityHeaders are attached to every response.
var SecurityHeaders = map[string]string{
	"Content-Security-Policy": "default-src 'self'; frame-ancestors 'none'",
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"X-XSS-Protection":        "1; mode=block",
}

// defaultBlockedAgents are client signatures that never belong to a
// browser session.
var defaultBlockedAgents = []string{
	"curl",
	"wget",
	"python-requests",
	"go-http-client",
	"postmanruntime",
	"scrapy",
}

// Config configures the gate.
type Config struct {
	// MaxRequests per Window per source IP.
	MaxRequests int
	Window      time.Duration

	// Origin is the application's own origin; cross-origin requests
	// carrying any other Origin header are rejected. Empty disables
	// the check.
	Origin string

	// BlockedAgents overrides the default denylist when non-nil.
	BlockedAgents []string
}

// Gate combines the rate limiter with the policy checks, in the order
// the middleware must apply them.
type Gate struct {
	Limiter *Limiter
	policy  policy
}

type policy struct {
	origin        string
	blockedAgents []string
}

// New builds a gate over the given bucket store (nil means an in-memory
// store).
func New(cfg Config, store BucketStore) *Gate {
	agents := cfg.BlockedAgents
	if agents == nil {
		agents = defaultBlockedAgents
	}
	lowered := make([]string, len(agents))
	for i, a := range agents {
		lowered[i] = strings.ToLower(a)
	}

	return &Gate{
		Limiter: NewLimiter(store, cfg.MaxRequests, cfg.Window),
		policy: policy{
			origin:        strings.TrimRight(cfg.Origin, "/"),
			blockedAgents: lowered,
		},
	}
}

// CheckRate counts the request against the source IP.
func (g *Gate) CheckRate(ctx context.Context, ip string) (*Decision, error) {
	return g.Limiter.Allow(ctx, ip)
}

// CheckUserAgent rejects empty or denylisted client signatures.
func (g *Gate) CheckUserAgent(userAgent string) error {
	trimmed := strings.TrimSpace(userAgent)
	if trimmed == "" {
		return core.ErrUserAgentBlocked
	}

	lowered := strings.ToLower(trimmed)
	for _, sig := range g.policy.blockedAgents {
		if strings.Contains(lowered, sig) {
			return core.ErrUserAgentBlocked
		}
	}
	return nil
}

// CheckOrigin rejects cross-origin requests. Same-origin requests
// without an Origin header pass.
func (g *Gate) CheckOrigin(origin string) error {
	if g.policy.origin == "" || origin == "" {
		return nil
	}
	if strings.TrimRight(origin, "/") != g.policy.origin {
		return core.ErrOriginNotAllowed
	}
	return nil
}
