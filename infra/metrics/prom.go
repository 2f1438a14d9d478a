package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/gridmill/gridmill/core/metrics"
)

// PromSink records build outcomes in Prometheus metrics.
type PromSink struct {
	outcomes  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	reserved  prometheus.Gauge
	running   prometheus.Gauge
	fallbacks *prometheus.CounterVec
	runs      *prometheus.CounterVec
}

// NewPromSink registers build metrics on the default Prometheus registerer.
// The scrape endpoint is served separately, see StartPromServer.
func NewPromSink() (coremetrics.BuildSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.BuildSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "build_task_outcomes_total",
		Help: "Total number of settled build tasks",
	}, []string{"rule", "status", "cached"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "build_task_duration_seconds",
		Help:    "Wall-clock time of executed collaborators",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"rule", "status"})
	reserved := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "build_ledger_reserved_mb",
		Help: "Memory currently reserved by running tasks",
	})
	running := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "build_tasks_running",
		Help: "Tasks currently executing",
	})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "build_constraint_fallbacks_total",
		Help: "Wildcard values substituted by the stale-constraint policy",
	}, []string{"rule", "wildcard"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "build_runs_total",
		Help: "Finished build runs by outcome",
	}, []string{"outcome"})

	if err := reg.Register(outcomes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			outcomes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(reserved); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reserved = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(running); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			running = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fallbacks); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fallbacks = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		outcomes:  outcomes,
		duration:  duration,
		reserved:  reserved,
		running:   running,
		fallbacks: fallbacks,
		runs:      runs,
	}, nil
}

// RecordTaskOutcome increments the outcome counter and observes the duration
// of executed tasks.
func (s *PromSink) RecordTaskOutcome(res coremetrics.TaskOutcome) error {
	s.outcomes.WithLabelValues(res.Rule, res.Status, strconv.FormatBool(res.Cached)).Inc()
	if !res.Cached && (res.Status == "done" || res.Status == "failed") {
		s.duration.WithLabelValues(res.Rule, res.Status).Observe(res.Duration.Seconds())
	}
	return nil
}

// RecordRunSummary counts the finished run under its outcome.
func (s *PromSink) RecordRunSummary(sum coremetrics.RunSummary) error {
	outcome := "clean"
	if sum.Failed > 0 || sum.Blocked > 0 {
		outcome = "partial"
	}
	s.runs.WithLabelValues(outcome).Inc()
	return nil
}

// RecordLedgerSample sets the utilisation gauges.
func (s *PromSink) RecordLedgerSample(sample coremetrics.LedgerSample) error {
	s.reserved.Set(float64(sample.ReservedMB))
	s.running.Set(float64(sample.Running))
	return nil
}

// RecordConstraintFallback counts a vintage substitution.
func (s *PromSink) RecordConstraintFallback(ev coremetrics.ConstraintFallback) error {
	s.fallbacks.WithLabelValues(ev.Rule, ev.Wildcard).Inc()
	return nil
}
