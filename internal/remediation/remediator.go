// Package remediation suggests corrective actions for anomalous metrics
// and keeps a durable append-only log of remediation attempts.
package remediation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/tlgselvi/dese-opscore/internal/monitoring"
)

// Event statuses.
const (
	StatusExecuted = "executed"
	StatusPending  = "pending"
	StatusFailed   = "failed"
)

const replayLimit = 50

// Event is one remediation attempt, appended as a single NDJSON line.
type Event struct {
	Timestamp int64  `json:"timestamp"`
	Metric    string `json:"metric"`
	Action    string `json:"action"`
	Severity  string `json:"severity"`
	Status    string `json:"status"`
}

// Remediator appends events to a newline-delimited JSON log file and
// suggests actions from a deterministic severity rule table.
type Remediator struct {
	logPath string
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu sync.Mutex
}

// NewRemediator creates the log directory if needed. Directory creation
// failure is logged, not fatal: suggestion still works without the log.
func NewRemediator(logDir string, metrics *monitoring.Metrics, logger *zap.Logger) *Remediator {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logger.Error("Failed to create remediation log directory",
			zap.String("dir", logDir),
			zap.Error(err),
		)
	}
	return &Remediator{
		logPath: filepath.Join(logDir, "remediation.log"),
		logger:  logger,
		metrics: metrics,
	}
}

// RecordEvent appends one event to the log. Persistence is best-effort:
// I/O failures are logged and swallowed so the remediation path itself
// never fails on a disk problem.
func (r *Remediator) RecordEvent(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to marshal remediation event", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Error("Failed to open remediation log",
			zap.String("path", r.logPath),
			zap.Error(err),
		)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		r.logger.Error("Failed to append remediation event", zap.Error(err))
		return
	}

	r.metrics.RemediationEvent(event.Status)
}

// SuggestAction maps metric and severity to a remediation action. Pure
// and total: unknown severities fall through to the monitor suggestion.
func (r *Remediator) SuggestAction(metric, severity string) string {
	switch severity {
	case "high", "critical":
		return fmt.Sprintf("restart deployment for %s", metric)
	case "medium":
		return fmt.Sprintf("scale pods for %s", metric)
	default:
		return fmt.Sprintf("monitor metric %s", metric)
	}
}

// Replay re-reads the full log and returns at most the 50 most recent
// events. Each line is parsed independently; a malformed line is skipped
// rather than aborting the whole replay.
func (r *Remediator) Replay() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.logPath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Error("Failed to open remediation log for replay", zap.Error(err))
		}
		return []Event{}
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			r.logger.Warn("Skipping malformed remediation log line", zap.Error(err))
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Error("Error scanning remediation log", zap.Error(err))
	}

	if len(events) > replayLimit {
		events = events[len(events)-replayLimit:]
	}
	return events
}

// History returns the last count events from the log, most recent last.
func (r *Remediator) History(count int) []Event {
	if count <= 0 {
		count = 10
	}
	events := r.Replay()
	if len(events) > count {
		events = events[len(events)-count:]
	}
	return events
}
