package metrics

import (
	"bank_ledger/internal/domain"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type MetricsCollector struct {
	registry          *prometheus.Registry
	operations        *prometheus.CounterVec
	operationsFailed  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	accountBalance    *prometheus.GaugeVec
	logger            *zap.Logger

	mu     sync.Mutex
	server *http.Server
	closed bool
}

func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()

	collector := &MetricsCollector{
		registry: registry,
		operations: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of ledger operations by outcome",
		}, []string{"operation", "outcome"}),
		operationsFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_failed_total",
			Help: "Total number of failed ledger operations by error kind",
		}, []string{"operation", "kind"}),
		operationDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time taken to run a ledger operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "account_balance",
			Help: "Current account balance",
		}, []string{"account_number", "account_type"}),
		logger: logger,
	}

	return collector
}

func (m *MetricsCollector) ObserveOperation(operation string, duration time.Duration, err error) {
	if err != nil {
		m.operations.WithLabelValues(operation, "failure").Inc()
		m.operationsFailed.WithLabelValues(operation, string(domain.KindOf(err))).Inc()
	} else {
		m.operations.WithLabelValues(operation, "success").Inc()
	}

	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *MetricsCollector) SetBalance(accountNumber string, accountType domain.AccountType, balance decimal.Decimal) {
	value, _ := balance.Float64()
	m.accountBalance.WithLabelValues(accountNumber, string(accountType)).Set(value)
}

func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server builds the /metrics server without starting it. Later calls return
// the same server.
func (m *MetricsCollector) Server(addr string) *http.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverLocked(addr)
}

func (m *MetricsCollector) serverLocked(addr string) *http.Server {
	if m.server != nil {
		return m.server
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m.server
}

// Serve blocks until the metrics server stops. A normal shutdown returns nil,
// and so does calling Serve after Shutdown.
func (m *MetricsCollector) Serve(addr string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Info("Metrics collector already shut down, not serving", zap.String("addr", addr))
		return nil
	}
	server := m.serverLocked(addr)
	m.mu.Unlock()

	m.logger.Info("Starting metrics server", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("Metrics server failed", zap.Error(err))
		return err
	}
	return nil
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	server := m.server
	m.mu.Unlock()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
	}
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
