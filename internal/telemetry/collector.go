// Package telemetry polls an external Prometheus-compatible metrics
// source and derives drift indicators for the detection pipeline.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const defaultEpsilon = 1e-9

// QueryResult is the canonical instant-query response shape:
// {status, data:{result:[{metric, value:[ts, "v"]}]}}.
type QueryResult struct {
	Status string    `json:"status"`
	Data   QueryData `json:"data"`
}

type QueryData struct {
	ResultType string         `json:"resultType,omitempty"`
	Result     []SampleStream `json:"result"`
}

type SampleStream struct {
	Metric map[string]string `json:"metric,omitempty"`
	// Value is [unix-timestamp, "stringValue"].
	Value []json.RawMessage `json:"value"`
}

// SampleValue parses the sample's string value. The second return is
// false for malformed or non-numeric samples.
func (s SampleStream) SampleValue() (float64, bool) {
	if len(s.Value) < 2 {
		return 0, false
	}
	var raw string
	if err := json.Unmarshal(s.Value[1], &raw); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// TelemetryData is the read-only system probe result.
type TelemetryData struct {
	Timestamp  int64       `json:"timestamp"`
	AvgLatency float64     `json:"avg_latency"`
	Drift      bool        `json:"drift"`
	Metrics    QueryResult `json:"metrics"`
}

// Collector issues single-shot instant queries against the metrics
// source. It owns no scheduler: the caller supplies the cadence.
type Collector struct {
	baseURL string
	query   string
	client  *http.Client
	logger  *zap.Logger
}

// NewCollector builds a collector for baseURL with a bounded request
// timeout.
func NewCollector(baseURL, query string, timeout time.Duration, logger *zap.Logger) *Collector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Collector{
		baseURL: baseURL,
		query:   query,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CollectMetrics queries the metrics source. Network failures, non-2xx
// responses and undecodable bodies all degrade to an empty result so the
// monitoring loop stays available during source outages.
func (c *Collector) CollectMetrics(ctx context.Context) QueryResult {
	endpoint := fmt.Sprintf("%s/api/v1/query?query=%s", c.baseURL, url.QueryEscape(c.query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("Failed to build metrics query request", zap.Error(err))
		return QueryResult{}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Metrics source unreachable", zap.String("url", c.baseURL), zap.Error(err))
		return QueryResult{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Metrics source returned non-2xx status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", c.baseURL),
		)
		return QueryResult{}
	}

	var result QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("Failed to decode metrics response", zap.Error(err))
		return QueryResult{}
	}
	return result
}

// AverageLatency reduces the result's sample values to their arithmetic
// mean. Malformed samples are skipped; empty input returns 0.
func AverageLatency(result QueryResult) float64 {
	var sum float64
	var count int
	for _, sample := range result.Data.Result {
		v, ok := sample.SampleValue()
		if !ok {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// DetectDrift reports whether actual deviates from predicted by more
// than threshold, relative to predicted. An epsilon guards against
// division by zero when predicted is (near) zero.
func DetectDrift(actual, predicted, threshold float64) bool {
	denominator := math.Max(math.Abs(predicted), defaultEpsilon)
	drift := math.Abs(actual-predicted) / denominator
	return drift > threshold
}

// GetSystemState orchestrates collect -> average -> drift-check. It is a
// read-only probe: the outbound query is its only side effect.
func (c *Collector) GetSystemState(ctx context.Context, predicted, threshold float64) TelemetryData {
	result := c.CollectMetrics(ctx)
	avg := AverageLatency(result)

	return TelemetryData{
		Timestamp:  time.Now().UnixMilli(),
		AvgLatency: avg,
		Drift:      DetectDrift(avg, predicted, threshold),
		Metrics:    result,
	}
}

// Health reports whether the metrics source answers queries.
func (c *Collector) Health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/v1/query?query=%s", c.baseURL, url.QueryEscape("up"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("metrics source health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("metrics source health check returned status %d", resp.StatusCode)
	}
	return nil
}
