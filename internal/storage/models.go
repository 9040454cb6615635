package storage

import (
	"time"
)

// ViolationRecord is one persisted rate limit violation row.
type ViolationRecord struct {
	ID         int64     `json:"id"`
	Identity   string    `json:"identity"`
	RulePrefix string    `json:"rule_prefix"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ViolationStats aggregates violations over a window for the admin API.
type ViolationStats struct {
	Total         int64         `json:"total"`
	UniqueClients int64         `json:"unique_clients"`
	TopRulePrefix string        `json:"top_rule_prefix"`
	TopIdentity   string        `json:"top_identity"`
	Duration      time.Duration `json:"duration"`
}
