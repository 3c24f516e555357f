package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/settlement-engine/api/responses"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

// RateLimiter counts requests in fixed windows; *redis.Client satisfies it.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy caps requests per subject in a fixed window. Subject picks
// the counter for a request; an empty subject is not limited.
type RateLimitPolicy struct {
	Name    string
	Limit   int64
	Window  time.Duration
	Subject func(*http.Request) string
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0 && p.Subject != nil
}

// RateLimit rejects requests over the policy limit with 429.
func RateLimit(store RateLimiter, policy RateLimitPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.enabled() {
			return next
		}
		name := strings.ToLower(strings.TrimSpace(policy.Name))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subject := policy.Subject(r)
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := store.FixedWindowAllow(ctx, name+":"+subject, policy.Limit, policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"policy":         name,
						"subject":        subject,
						"count":          count,
						"limit":          policy.Limit,
						"window_seconds": int(policy.Window.Seconds()),
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// VendorSubject limits per acting vendor. It must run after Auth.
func VendorSubject(r *http.Request) string {
	actor, ok := ActorFromContext(r.Context())
	if !ok || actor.VendorID == nil {
		return ""
	}
	return "vendor:" + actor.VendorID.String()
}

// ClientIPSubject limits per caller address, preferring proxy headers.
func ClientIPSubject(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return "ip:" + ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return "ip:" + ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return "ip:" + host
	}
	if r.RemoteAddr == "" {
		return ""
	}
	return "ip:" + r.RemoteAddr
}
