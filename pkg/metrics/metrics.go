package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Catalyst groups the per-catalyst metrics a Catalyst's main loop updates
// on every dequeue and timer tick. Construct one with NewCatalyst and pass
// it to catalyst.New/catalyst.NewMain; a nil *Catalyst is valid everywhere
// it's used (all call sites nil-check before touching it).
type Catalyst struct {
	QueueDepth      *prometheus.GaugeVec
	TimersActive    *prometheus.GaugeVec
	SparklesTotal   *prometheus.CounterVec
	SparkleDuration prometheus.Histogram
}

// NewCatalyst builds and registers a fresh set of catalyst metrics against
// reg. Pass prometheus.DefaultRegisterer for process-wide metrics.
func NewCatalyst(reg prometheus.Registerer) *Catalyst {
	c := &Catalyst{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tasktonic_catalyst_queue_depth",
			Help: "Number of sparkles currently queued on a catalyst.",
		}, []string{"catalyst"}),
		TimersActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tasktonic_catalyst_timers_active",
			Help: "Number of armed timers on a catalyst.",
		}, []string{"catalyst"}),
		SparklesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktonic_catalyst_sparkles_total",
			Help: "Total number of sparkles dispatched by a catalyst.",
		}, []string{"catalyst"}),
		SparkleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tasktonic_sparkle_duration_seconds",
			Help:    "Time taken to run one sparkle handler, in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.QueueDepth, c.TimersActive, c.SparklesTotal, c.SparkleDuration)
	return c
}

// Store groups subscription/notification metrics for a store.Store;
// pkg/store itself does not update them.
type Store struct {
	SubscribersTotal prometheus.Gauge
	NotificationsTotal prometheus.Counter
}

// NewStore builds and registers store metrics.
func NewStore(reg prometheus.Registerer) *Store {
	s := &Store{
		SubscribersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasktonic_store_subscribers_total",
			Help: "Number of currently registered store subscriptions.",
		}),
		NotificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasktonic_store_notifications_total",
			Help: "Total number of change-event batches flushed to subscribers.",
		}),
	}
	reg.MustRegister(s.SubscribersTotal, s.NotificationsTotal)
	return s
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and recording it to a
// histogram once it completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
