package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amrelngm6/crm-flutter-sub001/pkg/config"
)

var (
	// Auth metrics
	LoginCounter           prometheus.Counter
	TokensIssuedCounter    *prometheus.CounterVec
	TokensRevokedCounter   *prometheus.CounterVec
	TokensRefreshedCounter prometheus.Counter
	AuthErrorCounter       *prometheus.CounterVec

	// Resource metrics
	ResourceOperationCounter *prometheus.CounterVec

	// Database operation metrics
	DBOperationHistogram *prometheus.HistogramVec

	// Request metrics
	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics initializes all Prometheus metrics. Safe to call more than
// once; registration happens a single time.
func InitMetrics(cfg *config.Config) {
	initOnce.Do(func() {
		namespace := cfg.Metrics.Prefix

		LoginCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_total",
			Help:      "Total number of login attempts",
		})

		TokensIssuedCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Total number of tokens issued",
			},
			[]string{"grant", "token_type"},
		)

		TokensRevokedCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_revoked_total",
				Help:      "Total number of tokens revoked",
			},
			[]string{"reason"},
		)

		TokensRefreshedCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_refreshed_total",
			Help:      "Total number of access tokens minted via refresh tokens",
		})

		AuthErrorCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_errors_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"error_type"},
		)

		ResourceOperationCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resource_operations_total",
				Help:      "Total number of resource operations by resource and action",
			},
			[]string{"resource", "action"},
		)

		DBOperationHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Duration of database operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		RequestDurationHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		APIRequestCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)
	})
}

// RecordAuthError increments the auth error counter for an error type
func RecordAuthError(errorType string) {
	if AuthErrorCounter != nil {
		AuthErrorCounter.WithLabelValues(errorType).Inc()
	}
}

// RecordTokenIssued increments the issued-token counter
func RecordTokenIssued(grant, tokenType string) {
	if TokensIssuedCounter != nil {
		TokensIssuedCounter.WithLabelValues(grant, tokenType).Inc()
	}
}

// RecordTokenRevoked increments the revoked-token counter
func RecordTokenRevoked(reason string) {
	if TokensRevokedCounter != nil {
		TokensRevokedCounter.WithLabelValues(reason).Inc()
	}
}

// RecordOperation increments the per-resource operation counter
func RecordOperation(resource, action string) {
	if ResourceOperationCounter != nil {
		ResourceOperationCounter.WithLabelValues(resource, action).Inc()
	}
}

// TrackDBOperation returns a function that records the duration of a
// database operation when invoked. Use with defer:
//
//	defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		if DBOperationHistogram != nil {
			DBOperationHistogram.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		}
	}
}

// MetricsMiddleware records request counts and durations for every route
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}

			if APIRequestCounter != nil {
				APIRequestCounter.WithLabelValues(c.Request().Method, path, status).Inc()
			}
			if RequestDurationHistogram != nil {
				RequestDurationHistogram.WithLabelValues(c.Request().Method, path, status).
					Observe(time.Since(start).Seconds())
			}

			return err
		}
	}
}
