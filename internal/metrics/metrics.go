// Package metrics exposes Prometheus instruments for the checker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "typecore"

	OutcomeOK     = "ok"
	OutcomeFailed = "failed"

	ResolutionRegistered  = "registered"
	ResolutionSynthesized = "synthesized"
	ResolutionMissing     = "not_implemented"
)

// Metrics is shared by every component checking one set of modules.
// All instruments are safe for concurrent use
type Metrics struct {
	SubtypeQueries       *prometheus.CounterVec
	SubtypeDepthExceeded prometheus.Counter
	UnifyFailures        *prometheus.CounterVec
	TraitResolutions     *prometheus.CounterVec
	ConstEvaluations     *prometheus.CounterVec
	Declarations         *prometheus.CounterVec
	ModuleDuration       prometheus.Histogram
}

func New(registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		SubtypeQueries: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subtype",
			Name:      "queries_total",
			Help:      "Subtype queries answered, by result.",
		}, []string{"result"}),
		SubtypeDepthExceeded: promauto.With(registerer).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subtype",
			Name:      "depth_exceeded_total",
			Help:      "Subtype queries answered negatively because they recursed too deep.",
		}),
		UnifyFailures: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unify",
			Name:      "failures_total",
			Help:      "Failed unifications, by error code.",
		}, []string{"code"}),
		TraitResolutions: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traits",
			Name:      "resolutions_total",
			Help:      "Trait resolutions, by how they were resolved.",
		}, []string{"kind"}),
		ConstEvaluations: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consteval",
			Name:      "evaluations_total",
			Help:      "Constant evaluations, by outcome.",
		}, []string{"outcome"}),
		Declarations: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "declarations_total",
			Help:      "Declarations checked, by outcome.",
		}, []string{"outcome"}),
		ModuleDuration: promauto.With(registerer).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "module_duration_seconds",
			Help:      "Time taken to check one module.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

// Discard returns instruments registered nowhere, for callers that do not export metrics
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

func Outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}
