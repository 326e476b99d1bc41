// Package metrics provides prometheus instrumentation for memory and session activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the companion-memory metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	memoriesStored   *prometheus.CounterVec
	memoriesEvicted  *prometheus.CounterVec
	memoriesPromoted *prometheus.CounterVec
	recalls          prometheus.Counter
	recallHits       prometheus.Histogram
	storeErrors      *prometheus.CounterVec

	sessionsStarted *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	signalsRecorded *prometheus.CounterVec

	layerSize *prometheus.GaugeVec

	eventsHandled *prometheus.CounterVec
}

// NewCollector creates a collector and registers it on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{
		memoriesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_stored_total",
			Help:      "Memories stored, by initial layer",
		}, []string{"layer"}),
		memoriesEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_evicted_total",
			Help:      "Working memories deleted by cleanup, by rule",
		}, []string{"reason"}),
		memoriesPromoted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_promoted_total",
			Help:      "Working memories promoted by consolidation, by target layer",
		}, []string{"layer"}),
		recalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_recalls_total",
			Help:      "Recall queries served",
		}),
		recallHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_recall_results",
			Help:      "Memories returned per recall query",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Persistence failures absorbed, by operation",
		}, []string{"op"}),
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started, by type",
		}, []string{"type"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of ended sessions",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		signalsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_recorded_total",
			Help:      "Behavior signals recorded, by type",
		}, []string{"type"}),
		layerSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_layer_size",
			Help:      "Memories per layer at the last stats call",
		}, []string{"layer"}),
		eventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Companion events applied by the coordinator, by kind and result",
		}, []string{"kind", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.memoriesStored, c.memoriesEvicted, c.memoriesPromoted, c.recalls, c.recallHits,
			c.storeErrors, c.sessionsStarted, c.sessionDuration, c.signalsRecorded, c.layerSize, c.eventsHandled,
		)
	}
	return c
}

func (c *Collector) MemoryStored(layer string) {
	if c == nil {
		return
	}
	c.memoriesStored.WithLabelValues(layer).Inc()
}

func (c *Collector) MemoriesEvicted(reason string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.memoriesEvicted.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) MemoriesPromoted(layer string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.memoriesPromoted.WithLabelValues(layer).Add(float64(n))
}

func (c *Collector) Recall(results int) {
	if c == nil {
		return
	}
	c.recalls.Inc()
	c.recallHits.Observe(float64(results))
}

func (c *Collector) StoreError(op string) {
	if c == nil {
		return
	}
	c.storeErrors.WithLabelValues(op).Inc()
}

func (c *Collector) SessionStarted(typ string) {
	if c == nil {
		return
	}
	c.sessionsStarted.WithLabelValues(typ).Inc()
}

func (c *Collector) SessionEnded(d time.Duration) {
	if c == nil {
		return
	}
	c.sessionDuration.Observe(d.Seconds())
}

func (c *Collector) SignalRecorded(typ string) {
	if c == nil {
		return
	}
	c.signalsRecorded.WithLabelValues(typ).Inc()
}

func (c *Collector) LayerSize(layer string, n int) {
	if c == nil {
		return
	}
	c.layerSize.WithLabelValues(layer).Set(float64(n))
}

func (c *Collector) EventHandled(kind string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.eventsHandled.WithLabelValues(kind, result).Inc()
}
