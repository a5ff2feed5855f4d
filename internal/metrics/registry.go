// Package metrics wraps a prometheus.Registry with Reflex's own stable
// metric names (SPEC_FULL.md §6.4), grounded on the
// prometheus.NewCounterVec/NewGaugeVec/NewHistogramVec construction idiom
// used in the retrieval pack's other_examples (the open-policy-agent-eopa
// batch query handler); the teacher itself exposes no metrics surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric SPEC_FULL.md §6.4 names, pre-registered
// against a private prometheus.Registry so tests can construct one per
// case without colliding with the global default registry.
type Registry struct {
	reg *prometheus.Registry

	FetchActiveRequests   prometheus.Gauge
	FetchTotalRequests    *prometheus.CounterVec // status
	LoaderEntityCount     *prometheus.GaugeVec   // loader
	ScanIterationCount    *prometheus.CounterVec // scan
	ScanResultCount       *prometheus.CounterVec // scan
	ScanStateSize         *prometheus.GaugeVec   // scan
	WorkerCompileDuration *prometheus.HistogramVec // label
	WorkerEvaluateDuration *prometheus.HistogramVec // label
	WorkerGcDuration      *prometheus.HistogramVec // label
	WorkerDependencyCount *prometheus.GaugeVec   // label, pid
	WorkerCacheEntryCount *prometheus.GaugeVec   // label, pid
	WorkerDependencyQuantile *prometheus.GaugeVec // label, quantile
}

// New constructs and registers every SPEC_FULL.md §6.4 metric on a fresh
// registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		FetchActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reflex_fetch_active_requests",
			Help: "In-flight reflex::fetch effect handler requests.",
		}),
		FetchTotalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex_fetch_total_requests",
			Help: "Completed reflex::fetch requests by outcome.",
		}, []string{"status"}),
		LoaderEntityCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reflex_loader_entity_count",
			Help: "Entities currently tracked by a DataLoader-style loader handler.",
		}, []string{"loader"}),
		ScanIterationCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex_scan_iteration_count",
			Help: "Scan/fold handler steps processed.",
		}, []string{"scan"}),
		ScanResultCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex_scan_result_count",
			Help: "Scan/fold handler results emitted.",
		}, []string{"scan"}),
		ScanStateSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reflex_scan_state_size",
			Help: "Current accumulator size of a scan/fold handler.",
		}, []string{"scan"}),
		WorkerCompileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reflex_worker_compile_duration_seconds",
			Help:    "Time spent compiling a query into a worker's WASM instance.",
			Buckets: prometheus.DefBuckets,
		}, []string{"label"}),
		WorkerEvaluateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reflex_worker_evaluate_duration_seconds",
			Help:    "Time spent in one worker Evaluate call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"label"}),
		WorkerGcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reflex_worker_gc_duration_seconds",
			Help:    "Time spent in one worker Gc call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"label"}),
		WorkerDependencyCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reflex_worker_dependency_count",
			Help: "Dependency-set size of a worker's most recent evaluate result.",
		}, []string{"label", "pid"}),
		WorkerCacheEntryCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reflex_worker_cache_entry_count",
			Help: "Compiled-function cache entries held by a worker.",
		}, []string{"label", "pid"}),
		WorkerDependencyQuantile: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reflex_worker_dependency_count_quantile",
			Help: "Quantile of dependency count across a label group's active workers.",
		}, []string{"label", "quantile"}),
	}
	reg.MustRegister(
		r.FetchActiveRequests, r.FetchTotalRequests, r.LoaderEntityCount,
		r.ScanIterationCount, r.ScanResultCount, r.ScanStateSize,
		r.WorkerCompileDuration, r.WorkerEvaluateDuration, r.WorkerGcDuration,
		r.WorkerDependencyCount, r.WorkerCacheEntryCount, r.WorkerDependencyQuantile,
	)
	return r
}

// Gatherer exposes the underlying prometheus.Registry for an HTTP
// /metrics handler (promhttp.HandlerFor) without leaking mutation access.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ResetWorker deletes a worker's per-worker label-vector series on
// EvaluateStop so a dead worker's pid doesn't linger in exported metrics.
// The series are removed from the vectors, not set to zero.
func (r *Registry) ResetWorker(label, pid string) {
	r.WorkerDependencyCount.DeleteLabelValues(label, pid)
	r.WorkerCacheEntryCount.DeleteLabelValues(label, pid)
}

// ResetLabelGroup removes the quantile series spec §4.H's aggregation
// publishes when a label group's last worker is removed.
func (r *Registry) ResetLabelGroup(label string, quantiles []string) {
	for _, q := range quantiles {
		r.WorkerDependencyQuantile.DeleteLabelValues(label, q)
	}
}
