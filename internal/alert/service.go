// Package alert stores anomaly alerts in an append-only stream with
// bounded retention and a resolve lifecycle.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/tlgselvi/dese-opscore/internal/monitoring"
	"github.com/tlgselvi/dese-opscore/internal/store"
)

// AnomalyScore is the detection result attached to an alert.
type AnomalyScore struct {
	ZScore   float64 `json:"z_score"`
	Severity string  `json:"severity"`
}

// Alert is one anomaly alert record. The ID is generated once and never
// changes; only the resolution fields are ever updated.
type Alert struct {
	ID           string       `json:"id"`
	Metric       string       `json:"metric"`
	AnomalyScore AnomalyScore `json:"anomaly_score"`
	Severity     string       `json:"severity"`
	Message      string       `json:"message"`
	Timestamp    int64        `json:"timestamp"`
	IsResolved   bool         `json:"is_resolved"`
	ResolvedAt   int64        `json:"resolved_at,omitempty"`
	ResolvedBy   string       `json:"resolved_by,omitempty"`
}

// History is a time-windowed slice of alerts with aggregate counts.
type History struct {
	Alerts        []Alert `json:"alerts"`
	TotalCount    int     `json:"total_count"`
	CriticalCount int     `json:"critical_count"`
	HighCount     int     `json:"high_count"`
	TimeRange     struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"time_range"`
}

// Stats aggregates alert counts by severity and resolution state.
type Stats struct {
	Total      int `json:"total"`
	Critical   int `json:"critical"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

const (
	defaultRecentLimit = 50
	minScanDepth       = 1000
)

// Service reads and writes the alert stream. Resolution appends an
// updated entry rather than mutating in place; readers collapse entries
// by alert ID keeping the newest, which is what makes resolve idempotent
// without overwriting the original resolution timestamp.
type Service struct {
	store     store.Store
	stream    string
	maxLen    int64
	retention time.Duration
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

func NewService(s store.Store, stream string, maxLen int64, retention time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *Service {
	if stream == "" {
		stream = "opscore.anomaly-alerts"
	}
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &Service{
		store:     s,
		stream:    stream,
		maxLen:    maxLen,
		retention: retention,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateCriticalAlert synthesizes a message, generates the alert ID and
// appends the record to the stream. The alerts-created counter bump is
// fire-and-forget: it cannot fail alert creation.
func (s *Service) CreateCriticalAlert(ctx context.Context, metric string, score AnomalyScore, extra map[string]interface{}) (*Alert, error) {
	a := &Alert{
		ID:           uuid.NewString(),
		Metric:       metric,
		AnomalyScore: score,
		Severity:     score.Severity,
		Message:      alertMessage(metric, score),
		Timestamp:    time.Now().UnixMilli(),
		IsResolved:   false,
	}

	if err := s.append(ctx, a, extra); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	s.metrics.AlertCreated(a.Severity)

	if a.Severity == "critical" || a.Severity == "high" {
		s.logger.Warn("Critical anomaly alert created",
			zap.String("alert_id", a.ID),
			zap.String("metric", metric),
			zap.String("severity", a.Severity),
			zap.Float64("z_score", score.ZScore),
		)
	} else {
		s.logger.Info("Anomaly alert created",
			zap.String("alert_id", a.ID),
			zap.String("metric", metric),
			zap.String("severity", a.Severity),
		)
	}

	return a, nil
}

func alertMessage(metric string, score AnomalyScore) string {
	return fmt.Sprintf("%s anomaly detected in %s (z-score %.2f)",
		score.Severity, metric, math.Abs(score.ZScore))
}

func (s *Service) append(ctx context.Context, a *Alert, extra map[string]interface{}) error {
	payload := map[string]interface{}{
		"id":            a.ID,
		"metric":        a.Metric,
		"anomaly_score": a.AnomalyScore,
		"severity":      a.Severity,
		"message":       a.Message,
		"timestamp":     a.Timestamp,
		"is_resolved":   a.IsResolved,
	}
	if a.ResolvedAt != 0 {
		payload["resolved_at"] = a.ResolvedAt
	}
	if a.ResolvedBy != "" {
		payload["resolved_by"] = a.ResolvedBy
	}
	for k, v := range extra {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	fields := map[string]string{
		"alert_id":    a.ID,
		"metric":      a.Metric,
		"severity":    a.Severity,
		"timestamp":   strconv.FormatInt(a.Timestamp, 10),
		"is_resolved": strconv.FormatBool(a.IsResolved),
		"payload":     string(body),
	}

	if _, err := s.store.Append(ctx, s.stream, fields, s.maxLen); err != nil {
		return err
	}

	if s.retention > 0 {
		if err := s.store.ExpireStream(ctx, s.stream, s.retention); err != nil {
			s.logger.Warn("Failed to refresh alert stream retention", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) parseEntry(e store.Entry) (*Alert, bool) {
	raw := e.Fields["payload"]
	if raw == "" {
		s.logger.Warn("Alert stream entry missing payload", zap.String("entry_id", e.ID))
		return nil, false
	}

	var a Alert
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		s.logger.Warn("Failed to parse alert payload",
			zap.String("entry_id", e.ID),
			zap.Error(err),
		)
		return nil, false
	}
	if a.ID == "" {
		return nil, false
	}
	return &a, true
}

// scanDepth bounds stream reads to the configured retention cap with
// headroom for the approximate trimming Redis applies at MAXLEN, so a
// retained alert is never invisible to reads or resolution.
func (s *Service) scanDepth() int64 {
	depth := s.maxLen * 2
	if depth < minScanDepth {
		depth = minScanDepth
	}
	return depth
}

// GetRecentAlerts returns up to limit alerts, most recent first,
// optionally filtered by severity. Superseded entries for the same alert
// ID (resolution updates) are collapsed to the newest one.
func (s *Service) GetRecentAlerts(ctx context.Context, limit int, severity string) ([]Alert, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	entries, err := s.store.RevRange(ctx, s.stream, s.scanDepth())
	if err != nil {
		return nil, fmt.Errorf("failed to read alert stream: %w", err)
	}

	seen := make(map[string]bool)
	alerts := make([]Alert, 0, limit)

	for _, e := range entries {
		a, ok := s.parseEntry(e)
		if !ok {
			continue
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true

		if severity != "" && a.Severity != severity {
			continue
		}
		alerts = append(alerts, *a)
		if len(alerts) >= limit {
			break
		}
	}

	return alerts, nil
}

// GetAlertHistory returns alerts within [startTime, endTime] with
// aggregate counts. endTime <= 0 means now.
func (s *Service) GetAlertHistory(ctx context.Context, startTime, endTime int64, severity string) (*History, error) {
	if endTime <= 0 {
		endTime = time.Now().UnixMilli()
	}

	alerts, err := s.GetRecentAlerts(ctx, int(s.scanDepth()), severity)
	if err != nil {
		return nil, err
	}

	h := &History{Alerts: make([]Alert, 0, len(alerts))}
	h.TimeRange.Start = startTime
	h.TimeRange.End = endTime

	for _, a := range alerts {
		if a.Timestamp < startTime || a.Timestamp > endTime {
			continue
		}
		h.Alerts = append(h.Alerts, a)
		switch a.Severity {
		case "critical":
			h.CriticalCount++
		case "high":
			h.HighCount++
		}
	}
	h.TotalCount = len(h.Alerts)

	return h, nil
}

// ResolveAlert marks an alert resolved. Resolving an already-resolved
// alert returns true without touching the original resolution metadata.
// Returns false when the alert ID is unknown.
func (s *Service) ResolveAlert(ctx context.Context, alertID, resolvedBy string) (bool, error) {
	entries, err := s.store.RevRange(ctx, s.stream, s.scanDepth())
	if err != nil {
		return false, fmt.Errorf("failed to read alert stream: %w", err)
	}

	for _, e := range entries {
		a, ok := s.parseEntry(e)
		if !ok || a.ID != alertID {
			continue
		}

		if a.IsResolved {
			return true, nil
		}

		a.IsResolved = true
		a.ResolvedAt = time.Now().UnixMilli()
		a.ResolvedBy = resolvedBy

		if err := s.append(ctx, a, nil); err != nil {
			return false, fmt.Errorf("failed to resolve alert: %w", err)
		}

		s.logger.Info("Alert resolved",
			zap.String("alert_id", alertID),
			zap.String("resolved_by", resolvedBy),
		)
		return true, nil
	}

	s.logger.Warn("Alert not found for resolution", zap.String("alert_id", alertID))
	return false, nil
}

// GetAlertStats aggregates counts over a human time-range token such as
// "1h", "24h" or "7d". Unparseable tokens fall back to 24h.
func (s *Service) GetAlertStats(ctx context.Context, timeRange string) (*Stats, error) {
	startTime := time.Now().Add(-parseTimeRange(timeRange)).UnixMilli()

	alerts, err := s.GetRecentAlerts(ctx, int(s.scanDepth()), "")
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, a := range alerts {
		if a.Timestamp < startTime {
			continue
		}
		stats.Total++
		switch a.Severity {
		case "critical":
			stats.Critical++
		case "high":
			stats.High++
		case "medium":
			stats.Medium++
		default:
			stats.Low++
		}
		if a.IsResolved {
			stats.Resolved++
		} else {
			stats.Unresolved++
		}
	}

	return stats, nil
}

// parseTimeRange converts tokens like "30m", "24h", "7d" to a duration.
// model.ParseDuration understands day suffixes that time.ParseDuration
// rejects.
func parseTimeRange(timeRange string) time.Duration {
	d, err := model.ParseDuration(timeRange)
	if err != nil {
		return 24 * time.Hour
	}
	return time.Duration(d)
}
