package events

import "time"

// RunStarted is published when the engine starts executing a build run.
type RunStarted struct {
	RunID   string
	Targets []string
	Tasks   int
	DryRun  bool
	Start   time.Time
}

// RunFinished is published once after the last task settles.
type RunFinished struct {
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
}

// LedgerSampled is published whenever the memory ledger changes.
type LedgerSampled struct {
	RunID      string
	ReservedMB int
	BudgetMB   int
	Running    int
	Time       time.Time
}

// FallbackApplied reports a wildcard value substituted by the configured
// fallback policy while the graph was built.
type FallbackApplied struct {
	RunID       string
	Rule        string
	Fn          string
	Wildcard    string
	Requested   string
	Substituted string
}
