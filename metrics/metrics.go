// Copyright 2025 achetronic
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics owns the Prometheus collectors shared by the lexguard
// components. A Registry is built once by the composition root and passed
// to every component that records metrics; all recording methods are safe
// on a nil *Registry so metrics stay optional.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "lexguard"

// Registry wraps a private prometheus.Registry with the lexguard collectors.
type Registry struct {
	registry *prometheus.Registry

	InferenceRequests   *prometheus.CounterVec
	InferenceDuration   *prometheus.HistogramVec
	ModelState          *prometheus.GaugeVec
	MemoryEstimate      *prometheus.GaugeVec
	OptimizationPasses  *prometheus.CounterVec
	AnalysisRequests    *prometheus.CounterVec
	AnalysisDuration    *prometheus.HistogramVec
	FallbackTransitions *prometheus.CounterVec
	ConfigChanges       *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	PluginSwitches      prometheus.Counter
	PluginsRegistered   prometheus.Gauge
}

// New creates a Registry with every collector registered, plus the Go
// runtime and process collectors.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		InferenceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inference",
				Name:      "requests_total",
				Help:      "Total number of inference calls by outcome",
			},
			[]string{"backend", "model", "status"},
		),

		InferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "inference",
				Name:      "duration_seconds",
				Help:      "Inference call latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"backend"},
		),

		ModelState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "state",
				Help:      "Model lifecycle state (0=unloaded, 1=loading, 2=healthy, 3=degraded, 4=error)",
			},
			[]string{"backend"},
		),

		MemoryEstimate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "memory_estimate_megabytes",
				Help:      "Estimated memory used by the loaded model",
			},
			[]string{"backend"},
		),

		OptimizationPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "optimization_passes_total",
				Help:      "Memory optimization passes triggered by the resource ceiling",
			},
			[]string{"backend"},
		),

		AnalysisRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "requests_total",
				Help:      "Analysis requests by processing method and outcome",
			},
			[]string{"method", "status"},
		),

		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "duration_seconds",
				Help:      "End-to-end analysis latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		FallbackTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "fallbacks_total",
				Help:      "Transitions from a failed tier to the next one",
			},
			[]string{"from", "to"},
		),

		ConfigChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "config",
				Name:      "changes_total",
				Help:      "Accepted configuration mutations by namespace and operation",
			},
			[]string{"namespace", "operation"},
		),

		PersistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "config",
				Name:      "persistence_failures_total",
				Help:      "Durable configuration writes that failed (non-fatal)",
			},
			[]string{"namespace"},
		),

		PluginSwitches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "plugin",
				Name:      "switches_total",
				Help:      "Active plugin switches",
			},
		),

		PluginsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "plugin",
				Name:      "registered",
				Help:      "Number of registered plugins",
			},
		),
	}

	r.registry.MustRegister(
		r.InferenceRequests,
		r.InferenceDuration,
		r.ModelState,
		r.MemoryEstimate,
		r.OptimizationPasses,
		r.AnalysisRequests,
		r.AnalysisDuration,
		r.FallbackTransitions,
		r.ConfigChanges,
		r.PersistenceFailures,
		r.PluginSwitches,
		r.PluginsRegistered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Prometheus returns the underlying registry, e.g. for promhttp.HandlerFor.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveInference records one inference call.
func (r *Registry) ObserveInference(backend, model string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	r.InferenceRequests.WithLabelValues(backend, model, status(ok)).Inc()
	r.InferenceDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// SetModelState records the lifecycle state as its numeric code.
func (r *Registry) SetModelState(backend string, state int) {
	if r == nil {
		return
	}
	r.ModelState.WithLabelValues(backend).Set(float64(state))
}

// SetMemoryEstimate records the estimated model memory in megabytes.
func (r *Registry) SetMemoryEstimate(backend string, mb float64) {
	if r == nil {
		return
	}
	r.MemoryEstimate.WithLabelValues(backend).Set(mb)
}

// IncOptimization counts one optimization pass.
func (r *Registry) IncOptimization(backend string) {
	if r == nil {
		return
	}
	r.OptimizationPasses.WithLabelValues(backend).Inc()
}

// ObserveAnalysis records one analysis request.
func (r *Registry) ObserveAnalysis(method string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	r.AnalysisRequests.WithLabelValues(method, status(ok)).Inc()
	r.AnalysisDuration.WithLabelValues(method).Observe(d.Seconds())
}

// IncFallback counts a transition between tiers.
func (r *Registry) IncFallback(from, to string) {
	if r == nil {
		return
	}
	r.FallbackTransitions.WithLabelValues(from, to).Inc()
}

// IncConfigChange counts an accepted configuration mutation.
func (r *Registry) IncConfigChange(ns, operation string) {
	if r == nil {
		return
	}
	r.ConfigChanges.WithLabelValues(ns, operation).Inc()
}

// IncPersistenceFailure counts a failed durable write.
func (r *Registry) IncPersistenceFailure(ns string) {
	if r == nil {
		return
	}
	r.PersistenceFailures.WithLabelValues(ns).Inc()
}

// IncPluginSwitch counts an active plugin switch.
func (r *Registry) IncPluginSwitch() {
	if r == nil {
		return
	}
	r.PluginSwitches.Inc()
}

// SetPluginsRegistered records the registry size.
func (r *Registry) SetPluginsRegistered(n int) {
	if r == nil {
		return
	}
	r.PluginsRegistered.Set(float64(n))
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
