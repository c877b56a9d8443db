package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты мутаций корзины для метки result.
const (
	ResultApplied = "applied"
	ResultFailed  = "failed"
	ResultStale   = "stale"
	ResultNoop    = "noop"
)

// CartMetrics содержит метрики синхронизатора корзины и сессий.
// Нулевой указатель допустим: все методы становятся no-op.
type CartMetrics struct {
	// Мутации корзины
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge

	// Привязка пользователя и устаревшие ответы
	binds          *prometheus.CounterVec
	staleResponses prometheus.Counter

	// Сессии
	activeSessions  prometheus.Gauge
	evictedSessions prometheus.Counter

	// Кэш каталога
	catalogCache *prometheus.CounterVec

	// Заказы
	ordersPlaced  prometheus.Counter
	statusChanges *prometheus.CounterVec
}

// NewCartMetrics регистрирует метрики в DefaultRegisterer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations grouped by operation and result",
		}, []string{"op", "result"}),
		mutationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_cart_mutation_duration_seconds",
			Help:    "Duration of cart mutations including the remote write",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_cart_mutations_in_flight",
			Help: "Number of cart mutations waiting for the remote store",
		}),
		binds: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_binds_total",
			Help: "Total number of identity binds grouped by result",
		}, []string{"result"}),
		staleResponses: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_stale_responses_total",
			Help: "Remote responses dropped because the session identity changed",
		}),
		activeSessions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "Number of live cart sessions",
		}),
		evictedSessions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_sessions_evicted_total",
			Help: "Total number of cart sessions evicted after idle timeout",
		}),
		catalogCache: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_catalog_cache_requests_total",
			Help: "Catalog cache lookups grouped by result",
		}, []string{"result"}),
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_changes_total",
			Help: "Total number of order status changes grouped by new status",
		}, []string{"status"}),
	}
}

// ObserveMutation фиксирует результат и длительность мутации корзины.
func (m *CartMetrics) ObserveMutation(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result).Inc()
	m.mutationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// MutationStarted увеличивает число мутаций в полёте.
func (m *CartMetrics) MutationStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// MutationFinished уменьшает число мутаций в полёте.
func (m *CartMetrics) MutationFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// RecordBind фиксирует результат привязки пользователя.
func (m *CartMetrics) RecordBind(result string) {
	if m == nil {
		return
	}
	m.binds.WithLabelValues(result).Inc()
}

// RecordStaleResponse увеличивает счётчик отброшенных ответов.
func (m *CartMetrics) RecordStaleResponse() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}

// SessionOpened увеличивает число активных сессий.
func (m *CartMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed уменьшает число активных сессий.
func (m *CartMetrics) SessionClosed(evicted bool) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	if evicted {
		m.evictedSessions.Inc()
	}
}

// RecordCatalogCache фиксирует hit/miss/error кэша каталога.
func (m *CartMetrics) RecordCatalogCache(result string) {
	if m == nil {
		return
	}
	m.catalogCache.WithLabelValues(result).Inc()
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *CartMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordStatusChange фиксирует смену статуса заказа.
func (m *CartMetrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}
