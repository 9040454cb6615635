package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tlgselvi/dese-opscore/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(store.NewMemory(), "test.alerts", 1000, 0, nil, zap.NewNop())
}

func highScore() AnomalyScore {
	return AnomalyScore{ZScore: 4.2, Severity: "high"}
}

func TestCreateCriticalAlert(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	a, err := s.CreateCriticalAlert(ctx, "cpu_usage", highScore(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "cpu_usage", a.Metric)
	assert.Equal(t, "high", a.Severity)
	assert.Contains(t, a.Message, "cpu_usage")
	assert.Contains(t, a.Message, "high")
	assert.False(t, a.IsResolved)
	assert.Greater(t, a.Timestamp, int64(0))
}

func TestCreateCriticalAlertUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	a1, err := s.CreateCriticalAlert(ctx, "m", highScore(), nil)
	require.NoError(t, err)
	a2, err := s.CreateCriticalAlert(ctx, "m", highScore(), nil)
	require.NoError(t, err)

	assert.NotEqual(t, a1.ID, a2.ID)
}

func TestGetRecentAlerts(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := s.CreateCriticalAlert(ctx, "latency", highScore(), nil)
		require.NoError(t, err)
	}
	_, err := s.CreateCriticalAlert(ctx, "errors", AnomalyScore{ZScore: 2.5, Severity: "medium"}, nil)
	require.NoError(t, err)

	alerts, err := s.GetRecentAlerts(ctx, 3, "")
	require.NoError(t, err)
	assert.Len(t, alerts, 3)
	// Most recent first.
	assert.Equal(t, "errors", alerts[0].Metric)

	medium, err := s.GetRecentAlerts(ctx, 10, "medium")
	require.NoError(t, err)
	require.Len(t, medium, 1)
	assert.Equal(t, "errors", medium[0].Metric)
}

func TestGetAlertHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.CreateCriticalAlert(ctx, "latency", AnomalyScore{ZScore: 5.0, Severity: "critical"}, nil)
	require.NoError(t, err)
	_, err = s.CreateCriticalAlert(ctx, "latency", highScore(), nil)
	require.NoError(t, err)

	start := time.Now().Add(-time.Hour).UnixMilli()
	h, err := s.GetAlertHistory(ctx, start, 0, "")
	require.NoError(t, err)

	assert.Equal(t, 2, h.TotalCount)
	assert.Equal(t, 1, h.CriticalCount)
	assert.Equal(t, 1, h.HighCount)

	// A window entirely in the past matches nothing.
	old, err := s.GetAlertHistory(ctx, start-1000, start-500, "")
	require.NoError(t, err)
	assert.Equal(t, 0, old.TotalCount)
}

func TestResolveAlert(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	a, err := s.CreateCriticalAlert(ctx, "cpu", highScore(), nil)
	require.NoError(t, err)

	ok, err := s.ResolveAlert(ctx, a.ID, "oncall")
	require.NoError(t, err)
	assert.True(t, ok)

	alerts, err := s.GetRecentAlerts(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].IsResolved)
	assert.Equal(t, "oncall", alerts[0].ResolvedBy)
	firstResolvedAt := alerts[0].ResolvedAt
	assert.Greater(t, firstResolvedAt, int64(0))

	// Resolving again succeeds without touching the original timestamp.
	ok, err = s.ResolveAlert(ctx, a.ID, "someone-else")
	require.NoError(t, err)
	assert.True(t, ok)

	alerts, err = s.GetRecentAlerts(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, firstResolvedAt, alerts[0].ResolvedAt)
	assert.Equal(t, "oncall", alerts[0].ResolvedBy)
}

func TestResolveAlertNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	ok, err := s.ResolveAlert(ctx, "no-such-id", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAlertStats(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	severities := []string{"critical", "high", "high", "medium", "low"}
	var lastID string
	for _, sev := range severities {
		a, err := s.CreateCriticalAlert(ctx, "m", AnomalyScore{ZScore: 3, Severity: sev}, nil)
		require.NoError(t, err)
		lastID = a.ID
	}

	_, err := s.ResolveAlert(ctx, lastID, "")
	require.NoError(t, err)

	stats, err := s.GetAlertStats(ctx, "24h")
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Critical)
	assert.Equal(t, 2, stats.High)
	assert.Equal(t, 1, stats.Medium)
	assert.Equal(t, 1, stats.Low)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 4, stats.Unresolved)
}

func TestGetAlertStatsTimeRangeTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.CreateCriticalAlert(ctx, "m", highScore(), nil)
	require.NoError(t, err)

	for _, token := range []string{"1h", "24h", "7d", "not-a-range"} {
		stats, err := s.GetAlertStats(ctx, token)
		require.NoError(t, err, "token=%s", token)
		assert.Equal(t, 1, stats.Total, "token=%s", token)
	}
}

func TestScanCoversConfiguredCap(t *testing.T) {
	ctx := context.Background()
	// Cap above the minimum scan depth: reads must still reach every
	// retained alert.
	s := NewService(store.NewMemory(), "test.alerts", 2000, 0, nil, zap.NewNop())

	first, err := s.CreateCriticalAlert(ctx, "latency", highScore(), nil)
	require.NoError(t, err)
	for i := 0; i < 1500; i++ {
		_, err := s.CreateCriticalAlert(ctx, "latency", highScore(), nil)
		require.NoError(t, err)
	}

	// The oldest alert is still inside the 2000-entry stream and must
	// be resolvable and counted.
	found, err := s.ResolveAlert(ctx, first.ID, "operator")
	require.NoError(t, err)
	assert.True(t, found)

	stats, err := s.GetAlertStats(ctx, "24h")
	require.NoError(t, err)
	assert.Equal(t, 1501, stats.Total)
	assert.Equal(t, 1, stats.Resolved)
}

func TestStreamRetentionCap(t *testing.T) {
	ctx := context.Background()
	s := NewService(store.NewMemory(), "test.alerts", 100, 0, nil, zap.NewNop())

	for i := 0; i < 150; i++ {
		_, err := s.CreateCriticalAlert(ctx, "m", highScore(), nil)
		require.NoError(t, err)
	}

	alerts, err := s.GetRecentAlerts(ctx, 1000, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(alerts), 100)
}
