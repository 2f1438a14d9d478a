package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/gridmill/gridmill/core/metrics"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name && len(fam.GetMetric()) > 0 {
			return fam.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

func TestPromSink_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	outcomes := []coremetrics.TaskOutcome{
		{Rule: "solve_market", Status: "done", Duration: 2 * time.Second},
		{Rule: "solve_market", Status: "done", Duration: 3 * time.Second},
		{Rule: "solve_market", Status: "failed", Duration: time.Second},
		{Rule: "fetch_demand", Status: "done", Cached: true},
	}
	for _, o := range outcomes {
		if err := sink.RecordTaskOutcome(o); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got := counterValue(t, reg, "build_task_outcomes_total",
		map[string]string{"rule": "solve_market", "status": "done", "cached": "false"})
	if got != 2 {
		t.Fatalf("expected 2 done solves, got %v", got)
	}
	got = counterValue(t, reg, "build_task_outcomes_total",
		map[string]string{"rule": "fetch_demand", "cached": "true"})
	if got != 1 {
		t.Fatalf("expected 1 cached fetch, got %v", got)
	}

	var samples uint64
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "build_task_duration_seconds" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == "done" {
					samples = m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	if samples != 2 {
		t.Fatalf("expected 2 duration observations for done solves, got %d", samples)
	}
}

func TestPromSink_LedgerAndFallbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	rec := sink.(*PromSink)

	if err := rec.RecordLedgerSample(coremetrics.LedgerSample{ReservedMB: 24000, BudgetMB: 32000, Running: 3}); err != nil {
		t.Fatalf("record ledger: %v", err)
	}
	if got := gaugeValue(t, reg, "build_ledger_reserved_mb"); got != 24000 {
		t.Fatalf("reserved gauge = %v, want 24000", got)
	}
	if got := gaugeValue(t, reg, "build_tasks_running"); got != 3 {
		t.Fatalf("running gauge = %v, want 3", got)
	}

	fb := coremetrics.ConstraintFallback{Rule: "fetch_boundary_capacities", Wildcard: "iso_year"}
	if err := rec.RecordConstraintFallback(fb); err != nil {
		t.Fatalf("record fallback: %v", err)
	}
	got := counterValue(t, reg, "build_constraint_fallbacks_total",
		map[string]string{"rule": "fetch_boundary_capacities", "wildcard": "iso_year"})
	if got != 1 {
		t.Fatalf("fallback counter = %v, want 1", got)
	}
}

func TestPromSink_ReregisterSharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}
