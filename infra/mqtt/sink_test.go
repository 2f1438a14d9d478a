package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	coremetrics "github.com/gridmill/gridmill/core/metrics"
)

func TestNotifySink_TaskOutcome(t *testing.T) {
	pub := NewMockPublisher()
	sink := NewNotifySink(pub, "")

	err := sink.RecordTaskOutcome(coremetrics.TaskOutcome{
		RunID:    "r1",
		TaskID:   "solve_market[day=2024-01-02,layout=zonal]",
		Rule:     "solve_market",
		Day:      "2024-01-02",
		Status:   "done",
		Duration: 90 * time.Second,
		MemoryMB: 16000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	msgs := pub.Published("gridmill/task/solve_market")
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	var m taskMessage
	if err := json.Unmarshal(msgs[0], &m); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if m.Status != "done" || m.Day != "2024-01-02" || m.Seconds != 90 {
		t.Fatalf("unexpected payload: %+v", m)
	}
}

func TestNotifySink_RunSummaryAndFallback(t *testing.T) {
	pub := NewMockPublisher()
	sink := NewNotifySink(pub, "island")

	err := sink.RecordRunSummary(coremetrics.RunSummary{
		RunID:     "r1",
		Targets:   []string{"results/2024-01-02/system_cost_summary_flex.csv"},
		Succeeded: 11,
		Duration:  3 * time.Minute,
	})
	if err != nil {
		t.Fatalf("record summary: %v", err)
	}
	if len(pub.Published("island/run")) != 1 {
		t.Fatal("run summary not published")
	}

	err = sink.RecordConstraintFallback(coremetrics.ConstraintFallback{
		RunID:       "r1",
		Rule:        "fetch_boundary_capacities",
		Wildcard:    "iso_year",
		Requested:   "2031",
		Substituted: "2026",
	})
	if err != nil {
		t.Fatalf("record fallback: %v", err)
	}
	msgs := pub.Published("island/fallback")
	if len(msgs) != 1 {
		t.Fatal("fallback not published")
	}
	var f fallbackMessage
	if err := json.Unmarshal(msgs[0], &f); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if f.Requested != "2031" || f.Substituted != "2026" {
		t.Fatalf("unexpected payload: %+v", f)
	}
}

func TestNotifySink_PublisherFailure(t *testing.T) {
	pub := NewMockPublisher()
	pub.FailTopics["gridmill/task/fetch_demand"] = true
	sink := NewNotifySink(pub, "")

	err := sink.RecordTaskOutcome(coremetrics.TaskOutcome{Rule: "fetch_demand", Status: "done"})
	if err == nil {
		t.Fatal("publisher failure should surface")
	}
}
