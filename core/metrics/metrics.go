package metrics

import "time"

// TaskOutcome represents a settled task to be recorded.
type TaskOutcome struct {
	RunID    string
	TaskID   string
	Rule     string
	Day      string
	Status   string
	Cached   bool
	Duration time.Duration
	MemoryMB int
	Error    string
	Time     time.Time
}

// BuildSink records task outcomes for observability purposes.
type BuildSink interface {
	RecordTaskOutcome(res TaskOutcome) error
}

// RunSummary captures the final shape of a build run.
type RunSummary struct {
	RunID        string
	Targets      []string
	Succeeded    int
	Failed       int
	Blocked      int
	Cached       int
	Executed     int
	Duration     time.Duration
	MeanTaskSec  float64
	StdevTaskSec float64
	Time         time.Time
}

// RunSummaryRecorder records end-of-run summaries.
type RunSummaryRecorder interface {
	RecordRunSummary(sum RunSummary) error
}

// LedgerSample is a snapshot of the memory ledger while tasks run.
type LedgerSample struct {
	RunID      string
	ReservedMB int
	BudgetMB   int
	Running    int
	Time       time.Time
}

// LedgerRecorder is implemented by sinks able to record ledger utilisation.
type LedgerRecorder interface {
	RecordLedgerSample(s LedgerSample) error
}

// ConstraintFallback records a wildcard value substituted under the stale
// constraint policy, typically a boundary-capacity vintage.
type ConstraintFallback struct {
	RunID       string
	Rule        string
	Wildcard    string
	Requested   string
	Substituted string
	Time        time.Time
}

// ConstraintFallbackRecorder records constraint vintage fallbacks.
type ConstraintFallbackRecorder interface {
	RecordConstraintFallback(ev ConstraintFallback) error
}

// NopSink implements BuildSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordTaskOutcome(TaskOutcome) error { return nil }

func (NopSink) RecordRunSummary(RunSummary) error                 { return nil }
func (NopSink) RecordLedgerSample(LedgerSample) error             { return nil }
func (NopSink) RecordConstraintFallback(ConstraintFallback) error { return nil }
