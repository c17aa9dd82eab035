/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-admitgate/internal/libinfo"
)

const (
	metricsLabelResult  = "result"
	metricsLabelStage   = "stage"
	metricsLabelOp      = "op"
	metricsLabelOutcome = "outcome"
)

const (
	metricsValAllowed   = "allowed"
	metricsValBlocked   = "blocked"
	metricsValRecovered = "recovered"
	metricsValNoStage   = ""
)

// Store operations.
const (
	storeOpGet        = "get"
	storeOpDecode     = "decode"
	storeOpPut        = "put"
	storeOpMarkerGet  = "marker_get"
	storeOpMarkerPut  = "marker_put"
	storeOpEncodeLogs = "encode"
)

// Persist task outcomes.
const (
	persistOutcomePersisted  = "persisted"
	persistOutcomeSuppressed = "suppressed"
	persistOutcomeDropped    = "dropped"
	persistOutcomeFailed     = "failed"
)

// MetricsCollector represents collector of metrics for admission decisions, store errors,
// background persistence and cache sweeping.
type MetricsCollector struct {
	Decisions    *prometheus.CounterVec
	StoreErrors  *prometheus.CounterVec
	PersistTasks *prometheus.CounterVec
	SweptEntries prometheus.Counter
}

// NewMetricsCollector creates a new instance of MetricsCollector.
func NewMetricsCollector(namespace string) *MetricsCollector {
	constLabels := libinfo.AddPrometheusLibVersionLabel(nil)
	return &MetricsCollector{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "admission",
			Name:        "decisions_total",
			Help:        "Number of admission decisions by result and violated stage.",
			ConstLabels: constLabels,
		}, []string{metricsLabelResult, metricsLabelStage}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "admission",
			Name:        "store_errors_total",
			Help:        "Number of failed durable store operations.",
			ConstLabels: constLabels,
		}, []string{metricsLabelOp}),
		PersistTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "admission",
			Name:        "persist_tasks_total",
			Help:        "Number of background persist tasks by outcome.",
			ConstLabels: constLabels,
		}, []string{metricsLabelOutcome}),
		SweptEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "admission",
			Name:        "swept_entries_total",
			Help:        "Number of stale cache entries removed by sweeping.",
			ConstLabels: constLabels,
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (mc *MetricsCollector) MustRegister() {
	prometheus.MustRegister(mc.Decisions, mc.StoreErrors, mc.PersistTasks, mc.SweptEntries)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (mc *MetricsCollector) Unregister() {
	prometheus.Unregister(mc.Decisions)
	prometheus.Unregister(mc.StoreErrors)
	prometheus.Unregister(mc.PersistTasks)
	prometheus.Unregister(mc.SweptEntries)
}

// MustRegisterMetrics implements service.MetricsRegisterer.
func (mc *MetricsCollector) MustRegisterMetrics() {
	mc.MustRegister()
}

// UnregisterMetrics implements service.MetricsRegisterer.
func (mc *MetricsCollector) UnregisterMetrics() {
	mc.Unregister()
}

func (mc *MetricsCollector) incDecision(result string, stage string) {
	mc.Decisions.With(prometheus.Labels{metricsLabelResult: result, metricsLabelStage: stage}).Inc()
}

func (mc *MetricsCollector) incStoreError(op string) {
	mc.StoreErrors.With(prometheus.Labels{metricsLabelOp: op}).Inc()
}

func (mc *MetricsCollector) incPersistTask(outcome string) {
	mc.PersistTasks.With(prometheus.Labels{metricsLabelOutcome: outcome}).Inc()
}
