// Package monitor runs the detection pipeline: poll telemetry, score the
// observed series, raise alerts and remediation suggestions for the
// worst offender.
package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tlgselvi/dese-opscore/internal/alert"
	"github.com/tlgselvi/dese-opscore/internal/monitoring"
	"github.com/tlgselvi/dese-opscore/internal/remediation"
	"github.com/tlgselvi/dese-opscore/internal/stats"
	"github.com/tlgselvi/dese-opscore/internal/telemetry"
)

// minBaseline is how many clean observations a series needs before any
// value can be scored.
const minBaseline = 3

// windowSize caps the rolling series the periodic loop scores.
const windowSize = 100

// Finding is one anomalous observation within a series.
type Finding struct {
	Index    int     `json:"index"`
	Value    float64 `json:"value"`
	ZScore   float64 `json:"z_score"`
	Severity string  `json:"severity"`
}

// Evaluation is the outcome of scoring a full series.
type Evaluation struct {
	Anomalous bool      `json:"anomalous"`
	Findings  []Finding `json:"findings"`
	// Worst is the finding with the largest |z|, nil when clean.
	Worst *Finding `json:"worst,omitempty"`
}

// EvaluateSeries scores each value against the trailing baseline of
// values that were themselves clean, so an anomaly does not poison the
// baseline used to judge the ones after it. The first minBaseline
// values seed the baseline unscored.
func EvaluateSeries(values []float64, threshold float64) Evaluation {
	var eval Evaluation
	baseline := make([]float64, 0, len(values))

	for i, v := range values {
		if len(baseline) < minBaseline {
			baseline = append(baseline, v)
			continue
		}

		mean := stats.Mean(baseline)
		std := stats.StdDev(baseline)
		if std == 0 {
			std = 1
		}
		z := (v - mean) / std

		if math.Abs(z) > threshold {
			f := Finding{
				Index:    i,
				Value:    v,
				ZScore:   z,
				Severity: stats.AlertSeverity(math.Abs(z)),
			}
			eval.Findings = append(eval.Findings, f)
			if eval.Worst == nil || math.Abs(f.ZScore) > math.Abs(eval.Worst.ZScore) {
				worst := f
				eval.Worst = &worst
			}
			continue
		}
		baseline = append(baseline, v)
	}

	eval.Anomalous = len(eval.Findings) > 0
	return eval
}

// Pipeline wires the collector, scorer, alert service, remediator and
// webhook into one periodic evaluation loop.
type Pipeline struct {
	collector  *telemetry.Collector
	alerts     *alert.Service
	remediator *remediation.Remediator
	webhook    *telemetry.WebhookNotifier
	metrics    *monitoring.Metrics
	logger     *zap.Logger

	metricName string
	predicted  float64
	threshold  float64
	zThreshold float64

	mu     sync.Mutex
	window []float64
	latest telemetry.TelemetryData
}

// Options carries the tunables the pipeline needs from config.
type Options struct {
	MetricName     string
	Predicted      float64
	DriftThreshold float64
	ZThreshold     float64
}

func NewPipeline(
	collector *telemetry.Collector,
	alerts *alert.Service,
	remediator *remediation.Remediator,
	webhook *telemetry.WebhookNotifier,
	metrics *monitoring.Metrics,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if opts.ZThreshold <= 0 {
		opts.ZThreshold = 2
	}
	if opts.MetricName == "" {
		opts.MetricName = "avg_latency"
	}
	return &Pipeline{
		collector:  collector,
		alerts:     alerts,
		remediator: remediator,
		webhook:    webhook,
		metrics:    metrics,
		logger:     logger,
		metricName: opts.MetricName,
		predicted:  opts.Predicted,
		threshold:  opts.DriftThreshold,
		zThreshold: opts.ZThreshold,
	}
}

// LatestState returns the most recent telemetry probe result.
func (p *Pipeline) LatestState() telemetry.TelemetryData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Run performs one poll-score-act cycle. The rolling window absorbs the
// new observation first; the pipeline acts only when that newest
// observation itself scored anomalous, so a lingering old spike does not
// re-alert on every tick.
func (p *Pipeline) Run(ctx context.Context) {
	state := p.collector.GetSystemState(ctx, p.predicted, p.threshold)

	outcome := "ok"
	if len(state.Metrics.Data.Result) == 0 {
		outcome = "empty"
	}
	p.metrics.CollectorPoll(outcome)

	p.mu.Lock()
	p.latest = state
	p.window = append(p.window, state.AvgLatency)
	if len(p.window) > windowSize {
		p.window = p.window[len(p.window)-windowSize:]
	}
	series := make([]float64, len(p.window))
	copy(series, p.window)
	p.mu.Unlock()

	p.EvaluateAndAct(ctx, p.metricName, series, state)
}

// EvaluateAndAct scores a series and, when its newest value is
// anomalous, raises a single alert for the worst finding plus one
// remediation suggestion and an optional webhook notification.
func (p *Pipeline) EvaluateAndAct(ctx context.Context, metricName string, series []float64, state telemetry.TelemetryData) Evaluation {
	eval := EvaluateSeries(series, p.zThreshold)
	if eval.Worst == nil {
		return eval
	}

	newest := eval.Findings[len(eval.Findings)-1]
	if newest.Index != len(series)-1 {
		return eval
	}

	worst := *eval.Worst
	score := alert.AnomalyScore{
		ZScore:   worst.ZScore,
		Severity: worst.Severity,
	}

	created, err := p.alerts.CreateCriticalAlert(ctx, metricName, score, map[string]interface{}{
		"value": worst.Value,
		"index": worst.Index,
	})
	if err != nil {
		p.logger.Error("Failed to create anomaly alert",
			zap.String("metric", metricName),
			zap.Error(err),
		)
	}

	action := p.remediator.SuggestAction(metricName, worst.Severity)
	p.remediator.RecordEvent(remediation.Event{
		Timestamp: time.Now().UnixMilli(),
		Metric:    metricName,
		Action:    action,
		Severity:  worst.Severity,
		Status:    remediation.StatusPending,
	})

	if p.webhook != nil && p.webhook.Enabled() {
		p.webhook.Notify(telemetry.WebhookPayload{
			Type:        "anomaly",
			Severity:    worst.Severity,
			Drift:       state.Drift,
			Metrics:     state,
			Timestamp:   time.Now().UnixMilli(),
			Suggestions: []string{action},
		})
	}

	if created != nil {
		p.logger.Info("Anomaly detected",
			zap.String("metric", metricName),
			zap.String("alert_id", created.ID),
			zap.Float64("z_score", worst.ZScore),
			zap.String("severity", worst.Severity),
			zap.String("suggestion", action),
		)
	}
	return eval
}

// Start runs the periodic evaluation loop until the context is done.
func (p *Pipeline) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("Monitoring pipeline started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Monitoring pipeline stopped")
			return
		case <-ticker.C:
			p.Run(ctx)
		}
	}
}
