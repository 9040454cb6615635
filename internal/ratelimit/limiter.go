package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tlgselvi/dese-opscore/internal/monitoring"
	"github.com/tlgselvi/dese-opscore/internal/store"
)

// Decision is the outcome of a limiter check for a single rule.
type Decision struct {
	Allowed    bool
	Rule       Rule
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter enforces fixed-window limits against a shared counter store.
// Store failures fail open: an unreachable store must not take the whole
// API down with it.
type Limiter struct {
	store   store.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

func NewLimiter(s store.Store, metrics *monitoring.Metrics, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:   s,
		logger:  logger,
		metrics: metrics,
	}
}

// Allow checks a single rule for an identity. The blocked marker is
// checked first so blocked clients do not keep consuming window points.
func (l *Limiter) Allow(ctx context.Context, rule Rule, identity string) Decision {
	if _, err := l.store.Get(ctx, rule.blockKey(identity)); err == nil {
		retryAfter := rule.BlockDuration
		if ttl, err := l.store.TTL(ctx, rule.blockKey(identity)); err == nil && ttl > 0 {
			retryAfter = ttl
		}
		l.metrics.RequestDenied(rule.KeyPrefix)
		return Decision{Allowed: false, Rule: rule, RetryAfter: retryAfter}
	} else if !errors.Is(err, store.ErrNotFound) {
		return l.failOpen(rule, identity, err)
	}

	count, err := l.store.Incr(ctx, rule.Key(identity))
	if err != nil {
		return l.failOpen(rule, identity, err)
	}
	if count == 1 {
		if err := l.store.Expire(ctx, rule.Key(identity), rule.Duration); err != nil {
			l.logger.Warn("Failed to set rate limit window expiry",
				zap.String("rule", rule.KeyPrefix),
				zap.Error(err),
			)
		}
	}

	if count > rule.Points {
		// Without a block duration the denial lasts only until the
		// window counter expires; the marker would otherwise be
		// written with no TTL and block the identity permanently.
		retryAfter := l.windowRetry(ctx, rule, identity)
		if rule.BlockDuration > 0 {
			retryAfter = rule.BlockDuration
			if err := l.store.Set(ctx, rule.blockKey(identity), "1", rule.BlockDuration); err != nil {
				l.logger.Warn("Failed to set block marker",
					zap.String("rule", rule.KeyPrefix),
					zap.Error(err),
				)
			}
		}
		l.metrics.RequestDenied(rule.KeyPrefix)
		return Decision{Allowed: false, Rule: rule, RetryAfter: retryAfter}
	}

	l.metrics.RequestAllowed()
	return Decision{Allowed: true, Rule: rule, Remaining: rule.Points - count}
}

// AllowAll evaluates rules in order and short-circuits on the first
// denial. The returned decision is the denying rule's, or the last
// rule's allow.
func (l *Limiter) AllowAll(ctx context.Context, rules []Rule, identify func(Rule) string) Decision {
	decision := Decision{Allowed: true}
	for _, rule := range rules {
		decision = l.Allow(ctx, rule, identify(rule))
		if !decision.Allowed {
			return decision
		}
	}
	return decision
}

// windowRetry reads the remaining TTL on the window counter so denial
// responses carry a meaningful retry hint even without a block marker.
func (l *Limiter) windowRetry(ctx context.Context, rule Rule, identity string) time.Duration {
	if ttl, err := l.store.TTL(ctx, rule.Key(identity)); err == nil && ttl > 0 {
		return ttl
	}
	return rule.Duration
}

func (l *Limiter) failOpen(rule Rule, identity string, err error) Decision {
	l.logger.Warn("Rate limit store unavailable, failing open",
		zap.String("rule", rule.KeyPrefix),
		zap.String("identity", identity),
		zap.Error(err),
	)
	l.metrics.FailOpen()
	return Decision{Allowed: true, Rule: rule, Remaining: rule.Points}
}
