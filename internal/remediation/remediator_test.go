package remediation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRemediator(t *testing.T) (*Remediator, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRemediator(dir, nil, zap.NewNop()), dir
}

func TestSuggestAction(t *testing.T) {
	r, _ := newTestRemediator(t)

	tests := []struct {
		severity string
		want     string
	}{
		{"high", "restart deployment for cpu_usage"},
		{"critical", "restart deployment for cpu_usage"},
		{"medium", "scale pods for cpu_usage"},
		{"low", "monitor metric cpu_usage"},
		{"", "monitor metric cpu_usage"},
		{"bogus", "monitor metric cpu_usage"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.SuggestAction("cpu_usage", tt.severity), "severity=%q", tt.severity)
	}
}

func TestRecordAndReplay(t *testing.T) {
	r, _ := newTestRemediator(t)

	for i := 0; i < 3; i++ {
		r.RecordEvent(Event{
			Timestamp: time.Now().UnixMilli(),
			Metric:    fmt.Sprintf("metric_%d", i),
			Action:    "restart deployment for metric",
			Severity:  "high",
			Status:    StatusPending,
		})
	}

	events := r.Replay()
	require.Len(t, events, 3)
	assert.Equal(t, "metric_0", events[0].Metric)
	assert.Equal(t, "metric_2", events[2].Metric)
}

func TestReplaySkipsMalformedLines(t *testing.T) {
	r, dir := newTestRemediator(t)

	for i := 0; i < 3; i++ {
		r.RecordEvent(Event{Metric: fmt.Sprintf("m%d", i), Status: StatusExecuted})
	}

	// Corrupt the log with a truncated line, then append two more.
	logPath := filepath.Join(dir, "remediation.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"metric\": \"broken\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r.RecordEvent(Event{Metric: "m3", Status: StatusExecuted})

	events := r.Replay()
	require.Len(t, events, 4)
	for _, e := range events {
		assert.False(t, strings.Contains(e.Metric, "broken"))
	}
	assert.Equal(t, "m3", events[3].Metric)
}

func TestReplayCapsAtFifty(t *testing.T) {
	r, _ := newTestRemediator(t)

	for i := 0; i < 60; i++ {
		r.RecordEvent(Event{Metric: fmt.Sprintf("m%d", i), Status: StatusPending})
	}

	events := r.Replay()
	require.Len(t, events, 50)
	assert.Equal(t, "m10", events[0].Metric)
	assert.Equal(t, "m59", events[49].Metric)
}

func TestReplayMissingFile(t *testing.T) {
	r, _ := newTestRemediator(t)
	assert.Empty(t, r.Replay())
}

func TestHistory(t *testing.T) {
	r, _ := newTestRemediator(t)

	for i := 0; i < 15; i++ {
		r.RecordEvent(Event{Metric: fmt.Sprintf("m%d", i), Status: StatusExecuted})
	}

	recent := r.History(0)
	require.Len(t, recent, 10)
	assert.Equal(t, "m5", recent[0].Metric)

	all := r.History(100)
	assert.Len(t, all, 15)
}
