package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gin context keys set by upstream auth middleware. Requests without
// them fall back to client IP identities.
const (
	ContextKeyUserID = "userID"
	ContextKeyOrgID  = "orgID"
	ContextKeyTier   = "tier"
)

// Violation describes one denied request, handed to the tracker for
// offline analysis.
type Violation struct {
	Identity   string
	RulePrefix string
	Path       string
	Method     string
	OccurredAt time.Time
}

// ViolationTracker persists denied requests. Tracking is optional and
// always best-effort.
type ViolationTracker interface {
	SaveViolation(ctx context.Context, v Violation) error
}

// Middleware enforces a set of rules on every request. Identities are
// derived per rule: IP-scoped rules use the client address, user/org
// rules read what auth middleware stored on the context, and
// endpoint-scoped rules combine IP with the route path.
func Middleware(limiter *Limiter, rules []Rule, tracker ViolationTracker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.AllowAll(c.Request.Context(), rules, func(rule Rule) string {
			return identityFor(c, rule)
		})
		if decision.Allowed {
			c.Next()
			return
		}

		if tracker != nil {
			v := Violation{
				Identity:   identityFor(c, decision.Rule),
				RulePrefix: decision.Rule.KeyPrefix,
				Path:       c.FullPath(),
				Method:     c.Request.Method,
				OccurredAt: time.Now(),
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := tracker.SaveViolation(ctx, v); err != nil {
					logger.Warn("Failed to record rate limit violation", zap.Error(err))
				}
			}()
		}

		c.Header("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": decision.Rule.ErrorMessage,
		})
	}
}

// TierMiddleware applies the subscription-tier budget resolved from the
// request context, defaulting unauthenticated clients to the free tier.
func TierMiddleware(limiter *Limiter, tracker ViolationTracker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier := TierFree
		if v, ok := c.Get(ContextKeyTier); ok {
			if s, ok := v.(string); ok && s != "" {
				tier = s
			}
		}
		Middleware(limiter, []Rule{TierRule(tier)}, tracker, logger)(c)
	}
}

func identityFor(c *gin.Context, rule Rule) string {
	switch rule.KeyPrefix {
	case "user":
		if v, ok := c.Get(ContextKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	case "org":
		if v, ok := c.Get(ContextKeyOrgID); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	case "endpoint":
		return fmt.Sprintf("%s:%s", c.ClientIP(), c.FullPath())
	}
	return c.ClientIP()
}
