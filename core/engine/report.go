package engine

import (
	"encoding/json"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gridmill/gridmill/core/graph"
	"github.com/gridmill/gridmill/core/rules"
)

// TargetStatus is the user-visible verdict for one requested target.
type TargetStatus int

const (
	TargetSucceeded TargetStatus = iota
	TargetFailed
	TargetBlocked
	TargetPlanned // dry run only
)

func (s TargetStatus) String() string {
	switch s {
	case TargetSucceeded:
		return "succeeded"
	case TargetFailed:
		return "failed"
	case TargetBlocked:
		return "blocked"
	case TargetPlanned:
		return "planned"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status by name so exported reports stay readable.
func (s TargetStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// TargetReport carries the verdict for one requested target path. Cause
// holds the failure for failed targets and the failed ancestor task for
// blocked ones.
type TargetReport struct {
	Path   string
	Status TargetStatus
	Cause  string
}

// TaskRun records one dispatched task in dispatch order.
type TaskRun struct {
	Key      string
	Rule     string
	Status   string // done or failed
	Duration time.Duration
	Err      string
}

// DurationStats summarises successful task execution times.
type DurationStats struct {
	Count    int
	MeanSec  float64
	StdevSec float64
	MinSec   float64
	MaxSec   float64
}

// Report is the outcome of one engine run.
type Report struct {
	RunID    string
	Start    time.Time
	Duration time.Duration
	DryRun   bool

	Targets   []TargetReport
	Planned   []string  // dry run: task keys in dispatch order
	Executed  []TaskRun // dispatch order, failed runs included
	Cached    []string  // task keys finished without execution
	Fallbacks []rules.FallbackNote

	Succeeded int // tasks executed to done
	Failed    int
	Blocked   int

	Stats DurationStats
}

func newReport(runID string, start time.Time, dryRun bool, g *graph.Graph) *Report {
	return &Report{
		RunID:     runID,
		Start:     start,
		DryRun:    dryRun,
		Fallbacks: append([]rules.FallbackNote(nil), g.Notes...),
	}
}

// finish derives the per-target verdicts and the aggregate counters from the
// final task states.
func (r *Report) finish(g *graph.Graph) {
	r.Duration = time.Since(r.Start)
	for _, t := range g.Tasks {
		switch t.State {
		case graph.StateDone:
			if !t.Cached {
				r.Succeeded++
			}
		case graph.StateFailed:
			r.Failed++
		case graph.StateBlocked:
			r.Blocked++
		}
	}
	for _, tg := range g.Targets {
		r.Targets = append(r.Targets, targetVerdict(tg, r.DryRun))
	}
	r.Stats = durationStats(r.Executed)
}

func targetVerdict(tg graph.Target, dryRun bool) TargetReport {
	rep := TargetReport{Path: tg.Path}
	t := tg.Task
	if t == nil {
		rep.Status = TargetSucceeded // already current on durable storage
		return rep
	}
	switch t.State {
	case graph.StateDone:
		rep.Status = TargetSucceeded
	case graph.StateFailed:
		rep.Status = TargetFailed
		if t.Err != nil {
			rep.Cause = t.Err.Error()
		}
	case graph.StateBlocked:
		rep.Status = TargetBlocked
		rep.Cause = t.BlockedBy
	default:
		if dryRun {
			rep.Status = TargetPlanned
		} else {
			rep.Status = TargetBlocked
			rep.Cause = "run canceled"
		}
	}
	return rep
}

func durationStats(runs []TaskRun) DurationStats {
	var secs []float64
	for _, tr := range runs {
		if tr.Status == "done" {
			secs = append(secs, tr.Duration.Seconds())
		}
	}
	st := DurationStats{Count: len(secs)}
	if len(secs) == 0 {
		return st
	}
	st.MeanSec = stat.Mean(secs, nil)
	st.MinSec = floats.Min(secs)
	st.MaxSec = floats.Max(secs)
	if len(secs) > 1 {
		st.StdevSec = stat.StdDev(secs, nil)
	}
	return st
}
