package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tlgselvi/dese-opscore/internal/alert"
	"github.com/tlgselvi/dese-opscore/internal/core"
	"github.com/tlgselvi/dese-opscore/internal/monitor"
	"github.com/tlgselvi/dese-opscore/internal/monitoring"
	"github.com/tlgselvi/dese-opscore/internal/ratelimit"
	"github.com/tlgselvi/dese-opscore/internal/remediation"
	"github.com/tlgselvi/dese-opscore/internal/storage"
	"github.com/tlgselvi/dese-opscore/internal/store"
	"github.com/tlgselvi/dese-opscore/internal/telemetry"
	"github.com/tlgselvi/dese-opscore/pkg/logger"
)

func main() {
	configPath := os.Getenv("OPSCORE_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/opscore.yaml"
	}

	config, err := core.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Config load failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(config.App.LogLevel); err != nil {
		fmt.Printf("Logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	redisStore, err := store.NewRedis(config.Redis.Addr, config.Redis.Password, config.Redis.DB, logger.Log)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisStore.Close()

	var db *storage.PostgresClient
	var tracker ratelimit.ViolationTracker
	if config.Database.Enabled {
		db, err = storage.NewPostgresClient(config.GetDatabaseURL(), logger.Log)
		if err != nil {
			logger.Fatal("Database connection failed", zap.Error(err))
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := db.EnsureSchema(ctx); err != nil {
			cancel()
			logger.Fatal("Database schema setup failed", zap.Error(err))
		}
		cancel()
		tracker = db
	} else {
		logger.Info("Database disabled, rate limit violations are not persisted")
	}

	metrics := monitoring.NewMetrics()

	alerts := alert.NewService(
		redisStore,
		config.Alerts.Stream,
		config.Alerts.MaxEntries,
		config.AlertRetention(),
		metrics,
		logger.Log,
	)

	collector := telemetry.NewCollector(
		config.Telemetry.MetricsURL,
		config.Telemetry.Query,
		10*time.Second,
		logger.Log,
	)

	var webhook *telemetry.WebhookNotifier
	if config.Telemetry.WebhookURL != "" {
		webhook = telemetry.NewWebhookNotifier(config.Telemetry.WebhookURL, logger.Log)
	}

	remediator := remediation.NewRemediator(config.Remediation.LogDir, metrics, logger.Log)

	pipeline := monitor.NewPipeline(collector, alerts, remediator, webhook, metrics, monitor.Options{
		MetricName:     config.Telemetry.Query,
		Predicted:      config.Telemetry.Baseline,
		DriftThreshold: config.Telemetry.DriftThreshold,
		ZThreshold:     config.Alerts.ZThreshold,
	}, logger.Log)

	pipelineCtx, pipelineCancel := context.WithCancel(context.Background())
	defer pipelineCancel()
	go pipeline.Start(pipelineCtx, config.PollInterval())

	limiter := ratelimit.NewLimiter(redisStore, metrics, logger.Log)
	rules := limiterRules(config)

	if config.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), ginLogger())

	router.GET("/health", healthHandler(redisStore, db, config))
	router.GET("/ready", readyHandler(redisStore))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// Static config rules first, then the subscription-tier budget
	// resolved from the request context (free tier for anonymous
	// clients).
	v1 := router.Group("/api/v1")
	v1.Use(
		ratelimit.Middleware(limiter, rules, tracker, logger.Log),
		ratelimit.TierMiddleware(limiter, tracker, logger.Log),
	)
	{
		v1.GET("/status", statusHandler(config))

		// Telemetry endpoints
		v1.GET("/telemetry/state", telemetryStateHandler(pipeline))

		// Anomaly endpoints
		v1.POST("/anomaly/detect", detectHandler(config))
		v1.POST("/anomaly/correlation", correlationHandler())

		// Alert endpoints
		v1.GET("/alerts/recent", recentAlertsHandler(alerts))
		v1.GET("/alerts/history", alertHistoryHandler(alerts))
		v1.GET("/alerts/stats", alertStatsHandler(alerts))
		v1.POST("/alerts/:id/resolve", resolveAlertHandler(alerts))

		// Remediation endpoints
		v1.GET("/remediation/history", remediationHistoryHandler(remediator))

		// Rate limit admin endpoints
		v1.GET("/ratelimit/violations", violationsHandler(db))
		v1.GET("/ratelimit/violations/stats", violationStatsHandler(db))
	}

	srv := &http.Server{
		Addr:           config.App.Addr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("HTTP server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	srv.Shutdown(shutdownCtx)
	pipelineCancel()
}

// limiterRules builds the middleware rule chain from config, falling
// back to a single free-tier budget when none are configured.
func limiterRules(config *core.Config) []ratelimit.Rule {
	if len(config.RateLimit.Rules) == 0 {
		return []ratelimit.Rule{ratelimit.TierRule(ratelimit.TierFree)}
	}

	rules := make([]ratelimit.Rule, 0, len(config.RateLimit.Rules))
	for _, rc := range config.RateLimit.Rules {
		rules = append(rules, ratelimit.Rule{
			KeyPrefix:     rc.KeyPrefix,
			Points:        int64(rc.Points),
			Duration:      time.Duration(rc.Duration) * time.Second,
			BlockDuration: time.Duration(rc.BlockDuration) * time.Second,
			ErrorMessage:  rc.ErrorMessage,
		})
	}
	return rules
}

func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("ip", c.ClientIP()),
		)
	}
}
