// Package ratelimit implements fixed-window request limiting backed by a
// shared counter store, with per-tier point budgets and temporary blocks
// for clients that exceed them.
package ratelimit

import (
	"fmt"
	"time"
)

// Rule is one limiting policy: a client identified by KeyPrefix may
// consume up to Points within Duration; exceeding it blocks further
// requests for BlockDuration.
type Rule struct {
	KeyPrefix     string
	Points        int64
	Duration      time.Duration
	BlockDuration time.Duration
	ErrorMessage  string
}

// Key builds the counter key for an identity under this rule.
func (r Rule) Key(identity string) string {
	return fmt.Sprintf("ratelimit:%s:%s", r.KeyPrefix, identity)
}

// blockKey marks an identity as blocked until the key expires.
func (r Rule) blockKey(identity string) string {
	return fmt.Sprintf("ratelimit:%s:%s:blocked", r.KeyPrefix, identity)
}

// Subscription tiers, lowest to highest.
const (
	TierFree       = "free"
	TierStarter    = "starter"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

var tierPoints = map[string]int64{
	TierFree:       100,
	TierStarter:    500,
	TierPro:        2000,
	TierEnterprise: 10000,
}

// TierRule returns the per-minute budget for a subscription tier.
// Unknown tiers get the free budget.
func TierRule(tier string) Rule {
	points, ok := tierPoints[tier]
	if !ok {
		points = tierPoints[TierFree]
		tier = TierFree
	}
	return Rule{
		KeyPrefix:     "tier:" + tier,
		Points:        points,
		Duration:      60 * time.Second,
		BlockDuration: 60 * time.Second,
		ErrorMessage:  "Rate limit exceeded for your subscription tier, please retry later.",
	}
}
