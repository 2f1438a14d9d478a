package metrics

import (
	"context"
	"time"

	"github.com/gridmill/gridmill/core/events"
	coremetrics "github.com/gridmill/gridmill/core/metrics"
	"github.com/gridmill/gridmill/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// build events. It stops when the context is canceled or the bus closes.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.BuildSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.BuildSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.TaskFinished:
		status := "done"
		errStr := ""
		if !e.Success {
			status = "failed"
			if e.Err != nil {
				errStr = e.Err.Error()
			}
		}
		_ = sink.RecordTaskOutcome(coremetrics.TaskOutcome{
			RunID:    e.RunID,
			TaskID:   e.TaskID,
			Rule:     e.Rule,
			Day:      e.Binding["day"],
			Status:   status,
			Duration: e.Duration,
			MemoryMB: e.MemoryMB,
			Error:    errStr,
			Time:     time.Now(),
		})
	case events.TaskCached:
		_ = sink.RecordTaskOutcome(coremetrics.TaskOutcome{
			RunID:  e.RunID,
			TaskID: e.TaskID,
			Rule:   e.Rule,
			Day:    e.Binding["day"],
			Status: "done",
			Cached: true,
			Time:   time.Now(),
		})
	case events.TaskBlocked:
		_ = sink.RecordTaskOutcome(coremetrics.TaskOutcome{
			RunID:  e.RunID,
			TaskID: e.TaskID,
			Rule:   e.Rule,
			Day:    e.Binding["day"],
			Status: "blocked",
			Error:  e.Cause,
			Time:   time.Now(),
		})
	case events.LedgerSampled:
		if r, ok := sink.(coremetrics.LedgerRecorder); ok {
			_ = r.RecordLedgerSample(coremetrics.LedgerSample{
				RunID:      e.RunID,
				ReservedMB: e.ReservedMB,
				BudgetMB:   e.BudgetMB,
				Running:    e.Running,
				Time:       e.Time,
			})
		}
	case events.FallbackApplied:
		if r, ok := sink.(coremetrics.ConstraintFallbackRecorder); ok {
			_ = r.RecordConstraintFallback(coremetrics.ConstraintFallback{
				RunID:       e.RunID,
				Rule:        e.Rule,
				Wildcard:    e.Wildcard,
				Requested:   e.Requested,
				Substituted: e.Substituted,
				Time:        time.Now(),
			})
		}
	case events.RunFinished:
		if r, ok := sink.(coremetrics.RunSummaryRecorder); ok {
			_ = r.RecordRunSummary(coremetrics.RunSummary{
				RunID:        e.RunID,
				Targets:      e.Targets,
				Succeeded:    e.Succeeded,
				Failed:       e.Failed,
				Blocked:      e.Blocked,
				Cached:       e.Cached,
				Executed:     e.Executed,
				Duration:     e.Duration,
				MeanTaskSec:  e.MeanTaskSec,
				StdevTaskSec: e.StdevTaskSec,
				Time:         time.Now(),
			})
		}
	}
}
