package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the HTTP and business collectors of one process. Methods are
// safe on a nil receiver so services can run without instrumentation.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	purchases      *prometheus.CounterVec
	revenue        prometheus.Counter
	deposits       *prometheus.CounterVec
	archiveShared  *prometheus.CounterVec
	purgedRows     *prometheus.CounterVec
	backupRuns     *prometheus.CounterVec
	notifyOutcomes *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "path"}),
		purchases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_purchases_total",
			Help: "Purchase attempts by outcome.",
		}, []string{"outcome"}),
		revenue: f.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_revenue_total",
			Help: "Sum of committed purchase prices.",
		}),
		deposits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_deposit_decisions_total",
			Help: "Deposit requests decided by admins.",
		}, []string{"decision"}),
		archiveShared: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_archive_records_total",
			Help: "Records merged into the archive envelope.",
		}, []string{"category"}),
		purgedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_purged_records_total",
			Help: "Live records purged after archiving.",
		}, []string{"category"}),
		backupRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_backup_runs_total",
			Help: "Full backup runs by result.",
		}, []string{"result"}),
		notifyOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_notify_events_total",
			Help: "Outbound notification events by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				return err
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			m.httpRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) Purchase(outcome string, amount float64) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.revenue.Add(amount)
	}
}

func (m *Metrics) DepositDecided(decision string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(decision).Inc()
}

func (m *Metrics) Archived(category string, n int) {
	if m == nil {
		return
	}
	m.archiveShared.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) Purged(category string, n int) {
	if m == nil {
		return
	}
	m.purgedRows.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) BackupRun(result string) {
	if m == nil {
		return
	}
	m.backupRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) Notify(outcome string) {
	if m == nil {
		return
	}
	m.notifyOutcomes.WithLabelValues(outcome).Inc()
}
