// Package metrics exposes Prometheus metrics and a health endpoint for the
// bridge.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	LoginsTotal    *prometheus.CounterVec // labels: status=success|rejected|error
	OrdersTotal    *prometheus.CounterVec // labels: op=place|modify|cancel, status=success|rejected|error
	BrokerDuration *prometheus.HistogramVec
	BrokerStatus   *prometheus.CounterVec // labels: route, status
	CatalogRows    *prometheus.GaugeVec   // labels: exchange
	LiveSessions   prometheus.Gauge
	WSClients      prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"status"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_orders_total",
			Help: "Order operations by type and outcome",
		}, []string{"op", "status"}),
		BrokerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_broker_request_duration_seconds",
			Help:    "Broker round-trip latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		BrokerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_broker_responses_total",
			Help: "Broker HTTP responses by route and status code",
		}, []string{"route", "status"}),
		CatalogRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_catalog_rows",
			Help: "Loaded scrip-master rows per exchange",
		}, []string{"exchange"}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_live_sessions",
			Help: "Sessions currently held in the registry",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_ws_clients",
			Help: "Connected order-event WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.LoginsTotal,
		m.OrdersTotal,
		m.BrokerDuration,
		m.BrokerStatus,
		m.CatalogRows,
		m.LiveSessions,
		m.WSClients,
	)

	return m
}

// ObserveBroker records one broker round trip. Wire this to the transport's
// Observe hook.
func (m *Metrics) ObserveBroker(route string, status int, elapsed time.Duration) {
	m.BrokerDuration.WithLabelValues(route).Observe(elapsed.Seconds())
	m.BrokerStatus.WithLabelValues(route, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status == 0:
		return "network_error"
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}

// HealthStatus tracks dependency liveness for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool
	SQLiteOK       bool

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time

	redisEnabled  bool
	sqliteEnabled bool
}

// NewHealthStatus returns a default health status. Disabled dependencies
// report healthy.
func NewHealthStatus(redisEnabled, sqliteEnabled bool) *HealthStatus {
	return &HealthStatus{
		StartedAt:      time.Now(),
		RedisConnected: true,
		SQLiteOK:       true,
		redisEnabled:   redisEnabled,
		sqliteEnabled:  sqliteEnabled,
	}
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

// CheckSQLite pings the snapshot database and records latency + health.
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

// StartLivenessChecker runs periodic dependency checks until ctx ends.
// Pass nil for dependencies that are disabled.
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

	overall := "healthy"
	httpCode := http.StatusOK
	if (h.redisEnabled && !h.RedisConnected) || (h.sqliteEnabled && !h.SQLiteOK) {
		overall = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteEnabled   bool    `json:"sqlite_enabled"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overall,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.redisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.sqliteEnabled,
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

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
