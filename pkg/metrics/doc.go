/*
Package metrics provides Prometheus metrics collection and a JSON health
endpoint for a TaskTonic process.

The metrics package defines the runtime's own metrics using the Prometheus
client library: catalyst queue depth and timer counts, sparkle dispatch
counts and durations, and store subscription/notification counts. Metrics
are exposed via HTTP for scraping by a Prometheus server; health is exposed
as a small JSON document for liveness/readiness probes.

# Architecture

	┌──────────────────── METRICS SYSTEM ───────────────────────┐
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │         Prometheus Registerer               │           │
	│  │  - Passed in by the caller (DefaultRegisterer│          │
	│  │    or a dedicated registry per bootstrap run) │         │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Metric Groups                  │           │
	│  │                                              │           │
	│  │  Catalyst: queue depth, timers active,      │           │
	│  │            sparkles total, sparkle duration │           │
	│  │  Store:    subscribers total,               │           │
	│  │            notifications total              │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - metrics.Handler() -> promhttp.Handler()  │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │            Health Checker                    │          │
	│  │  - RegisterComponent(name, healthy, message)│           │
	│  │  - aggregated into one HealthStatus         │           │
	│  └────────────────────────────────────────────┘            │
	└─────────────────────────────────────────────────────────────┘

# Core Components

Catalyst metrics (NewCatalyst):
  - tasktonic_catalyst_queue_depth (gauge, labeled by catalyst name)
  - tasktonic_catalyst_timers_active (gauge, labeled by catalyst name)
  - tasktonic_catalyst_sparkles_total (counter, labeled by catalyst name)
  - tasktonic_sparkle_duration_seconds (histogram)

A nil *Catalyst is valid everywhere it is passed: every call site nil-checks
before touching it, so a caller can omit metrics entirely by passing nil
into catalyst.New/catalyst.NewMain rather than threading a feature flag
through the constructor.

Store metrics (NewStore):
  - tasktonic_store_subscribers_total (gauge)
  - tasktonic_store_notifications_total (counter)

Timer helper:
  - metrics.NewTimer() starts a wall-clock timer
  - ObserveDuration/ObserveDurationVec records it once the operation ends
  - Duration() reads the elapsed time without recording

Health checker:
  - RegisterComponent(name, healthy, message) records one component's state
  - SetVersion sets the version string reported in HealthStatus
  - bootstrap.Formula.Run registers "catalyst:main", "logger_service", and
    "ledger" as each is brought up during startup

# Usage

	reg := prometheus.NewRegistry()
	catMetrics := metrics.NewCatalyst(reg)
	storeMetrics := metrics.NewStore(reg)

	main, _ := catalyst.NewMain(ledger, collector, catMetrics)
	metrics.RegisterComponent("catalyst:main", true, "")

	http.Handle("/metrics", metrics.Handler())

Timing an operation:

	timer := metrics.NewTimer()
	doWork()
	timer.ObserveDuration(catMetrics.SparkleDuration)

# Integration Points

  - pkg/catalyst: updates QueueDepth on Enqueue and dequeue, TimersActive
    just before each timer callback runs, SparklesTotal and SparkleDuration
    around each dispatched queue item
  - pkg/bootstrap: registers component health at each startup step
  - pkg/store: does not import this package; nothing in the module updates
    the metrics NewStore registers

# Design Notes

Metrics are constructor-injected rather than package-level globals
registered in an init(): a process can run more than one bootstrap.Formula
(tests routinely do) against its own prometheus.Registry without hitting a
MustRegister panic from a second registration of the same metric name. The
deliberate exception is the health checker, which stays a package-level
singleton — health is a process-wide concept with one checker per binary,
unlike the per-run metric registries bootstrap.Formula.Run constructs.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
