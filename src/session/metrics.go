package session

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
)

const namespace = "bikeshare"

// Metrics 缓存与清洗相关的 Prometheus 指标，使用独立的 registry
type Metrics struct {
	registry *prometheus.Registry

	cacheEvents *prometheus.CounterVec
	loadSeconds prometheus.Histogram
	rows        *prometheus.GaugeVec
	dropped     *prometheus.GaugeVec
	loadErrors  prometheus.Counter
}

func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Session cache events by kind (hit, miss, invalidate, sweep)",
		},
		[]string{"event"},
	)
	m.loadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "load_duration_seconds",
			Help:      "Time spent reading and cleaning the trip file",
			Buckets:   prometheus.DefBuckets,
		},
	)
	m.rows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows",
			Help:      "Row counts of the last load by table (raw, clean)",
		},
		[]string{"table"},
	)
	m.dropped = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "dropped_rows",
			Help:      "Rows dropped by each cleaning rule in the last load",
		},
		[]string{"rule"},
	)
	m.loadErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "load_errors_total",
			Help:      "Failed loads of the trip file",
		},
	)

	for _, c := range []prometheus.Collector{m.cacheEvents, m.loadSeconds, m.rows, m.dropped, m.loadErrors} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("注册指标失败: %w", err)
		}
	}
	return m, nil
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) cacheEvent(event string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.cacheEvents.WithLabelValues(event).Add(float64(n))
}

func (m *Metrics) observeLoad(seconds float64, log processor.CleaningLog) {
	if m == nil {
		return
	}
	m.loadSeconds.Observe(seconds)
	m.rows.WithLabelValues("raw").Set(float64(log.RawN))
	m.rows.WithLabelValues("clean").Set(float64(log.CleanN))
	m.dropped.WithLabelValues("geo").Set(float64(log.DroppedGeo))
	m.dropped.WithLabelValues("time").Set(float64(log.IncohTime))
	m.dropped.WithLabelValues("duration").Set(float64(log.DroppedDur))
}

func (m *Metrics) loadFailed() {
	if m == nil {
		return
	}
	m.loadErrors.Inc()
}
