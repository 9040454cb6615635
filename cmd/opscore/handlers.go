package main

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tlgselvi/dese-opscore/internal/alert"
	"github.com/tlgselvi/dese-opscore/internal/core"
	"github.com/tlgselvi/dese-opscore/internal/monitor"
	"github.com/tlgselvi/dese-opscore/internal/remediation"
	"github.com/tlgselvi/dese-opscore/internal/stats"
	"github.com/tlgselvi/dese-opscore/internal/storage"
	"github.com/tlgselvi/dese-opscore/internal/store"
)

func healthHandler(s store.Store, db *storage.PostgresClient, config *core.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := gin.H{"redis": "ok"}
		healthy := true

		if err := s.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
		if db != nil {
			checks["database"] = "ok"
			if err := db.Health(ctx); err != nil {
				checks["database"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"checks": checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"checks":    checks,
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   config.App.Version,
		})
	}
}

func readyHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := s.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"reason": "redis unavailable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func statusHandler(config *core.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":   config.App.Name,
			"version":   config.App.Version,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func telemetryStateHandler(pipeline *monitor.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pipeline.LatestState())
	}
}

type detectRequest struct {
	Values    []float64 `json:"values" binding:"required"`
	Threshold float64   `json:"threshold"`
}

func detectHandler(config *core.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req detectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "values array is required"})
			return
		}

		threshold := req.Threshold
		if threshold <= 0 {
			threshold = config.Alerts.ZThreshold
		}

		c.JSON(http.StatusOK, monitor.EvaluateSeries(req.Values, threshold))
	}
}

type correlationRequest struct {
	SeriesA []float64 `json:"series_a" binding:"required"`
	SeriesB []float64 `json:"series_b" binding:"required"`
}

func correlationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req correlationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "series_a and series_b arrays are required"})
			return
		}
		if len(req.SeriesA) != len(req.SeriesB) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "series must have equal length"})
			return
		}

		coefficient := stats.Correlation(req.SeriesA, req.SeriesB)
		strength := stats.CorrelationStrength(coefficient)

		// NaN (undefined correlation, e.g. a constant series) is not
		// representable in JSON.
		if math.IsNaN(coefficient) {
			c.JSON(http.StatusOK, gin.H{
				"coefficient": nil,
				"strength":    strength,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"coefficient": coefficient,
			"strength":    strength,
		})
	}
}

func recentAlertsHandler(alerts *alert.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		severity := c.Query("severity")

		result, err := alerts.GetRecentAlerts(c.Request.Context(), limit, severity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"alerts": result,
			"count":  len(result),
		})
	}
}

func alertHistoryHandler(alerts *alert.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UnixMilli()
		start, err := strconv.ParseInt(c.DefaultQuery("start", "0"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a unix millisecond timestamp"})
			return
		}
		end, err := strconv.ParseInt(c.DefaultQuery("end", strconv.FormatInt(now, 10)), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a unix millisecond timestamp"})
			return
		}
		if start == 0 {
			start = now - (24 * time.Hour).Milliseconds()
		}

		history, err := alerts.GetAlertHistory(c.Request.Context(), start, end, c.Query("severity"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, history)
	}
}

func alertStatsHandler(alerts *alert.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := alerts.GetAlertStats(c.Request.Context(), c.DefaultQuery("range", "24h"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

func resolveAlertHandler(alerts *alert.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		alertID := c.Param("id")

		var req resolveRequest
		_ = c.ShouldBindJSON(&req)
		if req.ResolvedBy == "" {
			req.ResolvedBy = "operator"
		}

		found, err := alerts.ResolveAlert(c.Request.Context(), alertID, req.ResolvedBy)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":       alertID,
			"resolved": true,
		})
	}
}

func remediationHistoryHandler(remediator *remediation.Remediator) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, _ := strconv.Atoi(c.DefaultQuery("count", "10"))
		events := remediator.History(count)

		c.JSON(http.StatusOK, gin.H{
			"events": events,
			"count":  len(events),
		})
	}
}

func violationsHandler(db *storage.PostgresClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "violation tracking requires the database"})
			return
		}

		duration, err := time.ParseDuration(c.DefaultQuery("range", "1h"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "range must be a valid duration"})
			return
		}

		records, err := db.GetRecentViolations(c.Request.Context(), duration)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"violations": records,
			"count":      len(records),
		})
	}
}

func violationStatsHandler(db *storage.PostgresClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "violation tracking requires the database"})
			return
		}

		duration, err := time.ParseDuration(c.DefaultQuery("range", "1h"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "range must be a valid duration"})
			return
		}

		result, err := db.GetViolationStats(c.Request.Context(), duration)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
