// Package adminserver is the investigation engine's observability
// surface: health, Prometheus metrics, recent cases, and discovered
// patterns (§6 supplemented feature, §9).
package adminserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/internal/models"
	"github.com/enterprise/fraud-investigator/internal/worker"
)

// CaseSource exposes the subset of PatternDiscovery the admin server
// reads from.
type CaseSource interface {
	Recent(n int) []models.ProcessedCase
	Patterns() []models.DiscoveredPattern
}

// PoolMetrics exposes the worker pool's aggregated performance report.
type PoolMetrics interface {
	AggregatedSnapshot() worker.Snapshot
}

var (
	casesProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fraud_investigator_cases_processed_total",
		Help: "Total number of transactions investigated.",
	})
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fraud_investigator_http_request_duration_seconds",
			Help:    "Duration of admin HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Server is the admin HTTP surface, grounded on the teacher's
// `cmd/api-server/main.go` middleware chain.
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	registry *prometheus.Registry
}

// New constructs the admin server bound to port, reading from
// discovery and pool for its endpoints.
func New(port string, discovery CaseSource, pool PoolMetrics, environment string) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(casesProcessedTotal)
	registry.MustRegister(httpRequestDurationSeconds)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())

	router.GET("/health", healthHandler())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/cases/recent", recentCasesHandler(discovery))
	router.GET("/patterns", patternsHandler(discovery))
	router.GET("/metrics/pool", poolMetricsHandler(pool))

	return &Server{
		router:   router,
		registry: registry,
		httpSrv: &http.Server{
			Addr:         ":" + port,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ObserveCaseProcessed increments the processed-case counter; called by
// the orchestrator's recorder hook.
func ObserveCaseProcessed() {
	casesProcessedTotal.Inc()
}

// Start runs the HTTP server until the process receives a shutdown
// signal via ctx cancellation.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpSrv.Addr).Msg("admin server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		httpRequestDurationSeconds.WithLabelValues(c.Request.Method, path).Observe(latency.Seconds())

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Msg("admin request completed")
	}
}

func healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func recentCasesHandler(discovery CaseSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := 50
		if q := c.Query("limit"); q != "" {
			var parsed int
			if _, err := fmt.Sscanf(q, "%d", &parsed); err == nil && parsed > 0 {
				n = parsed
			}
		}
		c.JSON(http.StatusOK, gin.H{"cases": discovery.Recent(n)})
	}
}

func patternsHandler(discovery CaseSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"patterns": discovery.Patterns()})
	}
}

func poolMetricsHandler(pool PoolMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := pool.AggregatedSnapshot()
		c.JSON(http.StatusOK, gin.H{
			"processed":         snap.Processed,
			"failed":            snap.Failed,
			"avg_ms":            snap.Avg.Milliseconds(),
			"p50_ms":            snap.P50.Milliseconds(),
			"p95_ms":            snap.P95.Milliseconds(),
			"p99_ms":            snap.P99.Milliseconds(),
			"max_ms":            snap.Max.Milliseconds(),
			"last_processed_at": snap.LastProcessedAt,
		})
	}
}
