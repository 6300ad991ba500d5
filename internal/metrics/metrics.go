package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the index engine.
type Metrics struct {
	TicksTotal         prometheus.Counter
	TickDuration        prometheus.Histogram
	FetchFailuresTotal  *prometheus.CounterVec // labels: metal
	PublishTotal        prometheus.Counter
	PublishRejectedTotal prometheus.Counter

	IndexPriceUSD prometheus.Gauge
	Weight        *prometheus.GaugeVec // labels: metal
	Volatility    *prometheus.GaugeVec // labels: metal
	Regime        prometheus.Gauge
	DriftCap      prometheus.Gauge
	WeightSpeed   prometheus.Gauge
	Drawdown      prometheus.Gauge

	BroadcastDropsTotal prometheus.Counter
	AuditWriteDur       prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexd_ticks_total",
			Help: "Total engine ticks completed",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexd_tick_duration_seconds",
			Help:    "Wall-clock duration of one engine tick",
			Buckets: prometheus.DefBuckets,
		}),
		FetchFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexd_fetch_failures_total",
			Help: "Quote source fetch failures by metal",
		}, []string{"metal"}),
		PublishTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexd_publish_total",
			Help: "Total successful oracle publications",
		}),
		PublishRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexd_publish_rejected_total",
			Help: "Oracle publications rejected by the sink",
		}),

		IndexPriceUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexd_index_price_usd_per_gram",
			Help: "Latest composite index value in USD per gram",
		}),
		Weight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indexd_weight",
			Help: "Current weight by metal",
		}, []string{"metal"}),
		Volatility: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indexd_volatility",
			Help: "Current annualized volatility by metal",
		}, []string{"metal"}),
		Regime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexd_regime",
			Help: "Current regime (0=LOW, 1=MEDIUM, 2=HIGH, 3=EXTREME)",
		}),
		DriftCap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexd_drift_cap",
			Help: "Current risk-adjusted drift cap",
		}),
		WeightSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexd_weight_speed",
			Help: "Current risk-adjusted weight smoothing rate",
		}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexd_drawdown",
			Help: "Current index drawdown over its trailing window",
		}),

		BroadcastDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indexd_broadcast_drops_total",
			Help: "Tick reports dropped by the WebSocket hub due to a full client buffer",
		}),
		AuditWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexd_audit_write_duration_seconds",
			Help:    "SQLite audit-trail insert latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.FetchFailuresTotal,
		m.PublishTotal,
		m.PublishRejectedTotal,
		m.IndexPriceUSD,
		m.Weight,
		m.Volatility,
		m.Regime,
		m.DriftCap,
		m.WeightSpeed,
		m.Drawdown,
		m.BroadcastDropsTotal,
		m.AuditWriteDur,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	QuoteSourceOK  bool      `json:"quote_source_ok"`
	OracleOK       bool      `json:"oracle_ok"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetQuoteSourceOK(v bool) {
	h.mu.Lock()
	h.QuoteSourceOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetOracleOK(v bool) {
	h.mu.Lock()
	h.OracleOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either dependency
// may be nil when its ambient sink was not configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.QuoteSourceOK || !h.OracleOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		QuoteSourceOK   bool    `json:"quote_source_ok"`
		OracleOK        bool    `json:"oracle_ok"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		QuoteSourceOK:   h.QuoteSourceOK,
		OracleOK:        h.OracleOK,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
