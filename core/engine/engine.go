// Package engine executes a dependency graph under a bounded worker pool and
// a global memory budget. Every task state transition happens on one
// scheduling loop; workers only run collaborators and report back on a
// channel, so graph state, the ready queue, and the ledger have a single
// writer.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gridmill/gridmill/core/events"
	"github.com/gridmill/gridmill/core/graph"
	"github.com/gridmill/gridmill/core/logger"
	"github.com/gridmill/gridmill/internal/eventbus"
)

// Store is the durable-storage view used for admission-time cache checks.
type Store interface {
	Stat(path string) (mtime time.Time, exists bool)
}

// Runner executes one task's collaborator and returns nil only when every
// declared output was produced and the collaborator exited cleanly.
type Runner interface {
	Run(ctx context.Context, t *graph.Task) error
}

// Options tune one engine run.
type Options struct {
	Workers     int
	MemoryMB    int
	TaskTimeout time.Duration // zero disables the per-task wall clock
	DryRun      bool
}

// Engine schedules and executes build graphs.
type Engine struct {
	store  Store
	runner Runner
	bus    eventbus.EventBus
	log    logger.Logger
	opts   Options
}

// New validates the options and returns an Engine.
func New(store Store, runner Runner, bus eventbus.EventBus, log logger.Logger, opts Options) (*Engine, error) {
	if store == nil || runner == nil {
		return nil, fmt.Errorf("engine needs a store and a runner")
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", opts.Workers)
	}
	if opts.MemoryMB <= 0 {
		return nil, fmt.Errorf("memory budget must be positive, got %d", opts.MemoryMB)
	}
	return &Engine{store: store, runner: runner, bus: bus, log: log, opts: opts}, nil
}

type result struct {
	task *graph.Task
	err  error
	dur  time.Duration
}

// runState is owned by the scheduling loop.
type runState struct {
	remaining map[*graph.Task]int // unfinished predecessor count
	ready     []*graph.Task       // sorted by discovery index
	running   int
	poisoned  map[string]bool // outputs of tasks that failed this run
	ledger    *ledger
}

// Run executes the graph and reports the outcome. The returned error is a
// PartialFailureError when some targets failed or were blocked; the Report
// is complete either way.
func (e *Engine) Run(ctx context.Context, g *graph.Graph) (*Report, error) {
	runID := uuid.NewString()
	start := time.Now()
	rep := newReport(runID, start, e.opts.DryRun, g)

	e.publish(events.RunStarted{
		RunID:   runID,
		Targets: targetPaths(g),
		Tasks:   g.Len(),
		DryRun:  e.opts.DryRun,
		Start:   start,
	})
	for _, n := range g.Notes {
		e.publish(events.FallbackApplied{
			RunID:       runID,
			Rule:        n.Rule,
			Fn:          n.Fn,
			Wildcard:    n.Wildcard,
			Requested:   n.Requested,
			Substituted: n.Substituted,
		})
	}
	e.log.Infof("run %s: %d tasks for %d targets", runID, g.Len(), len(g.Targets))

	st := &runState{
		remaining: make(map[*graph.Task]int, g.Len()),
		poisoned:  make(map[string]bool),
		ledger:    newLedger(e.opts.MemoryMB),
	}
	for _, t := range g.Tasks {
		st.remaining[t] = len(t.Deps)
	}

	// Tasks that can never fit the budget fail before dispatch and block
	// their dependents; unrelated subgraphs still run.
	for _, t := range g.Tasks {
		if t.MemoryMB > e.opts.MemoryMB {
			e.failTask(st, runID, t, &ResourceError{
				Task:     t.Key,
				NeedMB:   t.MemoryMB,
				BudgetMB: e.opts.MemoryMB,
			}, 0)
		}
	}

	if e.opts.DryRun {
		e.plan(g, rep)
		rep.finish(g)
		e.publishFinished(runID, rep)
		return rep, partialFailure(rep)
	}

	for _, t := range g.Tasks {
		if t.State == graph.StatePending && st.remaining[t] == 0 {
			e.markReady(st, t)
		}
	}

	workCh := make(chan *graph.Task)
	doneCh := make(chan result)
	for i := 0; i < e.opts.Workers; i++ {
		go e.worker(ctx, workCh, doneCh)
	}
	defer close(workCh)

	for {
		e.admit(ctx, st, rep, runID, workCh)
		if st.running == 0 {
			if len(st.ready) == 0 || ctx.Err() != nil {
				break
			}
			// Cannot happen: with nothing running the whole budget is
			// free and the preflight removed every over-budget task.
			return rep, fmt.Errorf("scheduler stuck: %d tasks ready, none admissible", len(st.ready))
		}
		res := <-doneCh
		st.running--
		st.ledger.release(res.task.MemoryMB)
		e.sampleLedger(st, runID)
		if res.err != nil {
			rep.Executed = append(rep.Executed, TaskRun{
				Key: res.task.Key, Rule: res.task.Rule.Name,
				Status: "failed", Duration: res.dur, Err: res.err.Error(),
			})
			e.failTask(st, runID, res.task, res.err, res.dur)
			continue
		}
		rep.Executed = append(rep.Executed, TaskRun{
			Key: res.task.Key, Rule: res.task.Rule.Name,
			Status: "done", Duration: res.dur,
		})
		e.publish(events.TaskFinished{
			RunID: runID, TaskID: res.task.Key, Rule: res.task.Rule.Name,
			Binding: res.task.Binding, Success: true, Duration: res.dur,
			MemoryMB: res.task.MemoryMB,
		})
		e.settleDone(st, res.task, false)
	}

	rep.finish(g)
	e.publishFinished(runID, rep)
	e.log.Infof("run %s finished: %d executed, %d cached, %d failed, %d blocked",
		runID, rep.Succeeded, len(rep.Cached), rep.Failed, rep.Blocked)
	return rep, partialFailure(rep)
}

// partialFailure derives the aggregate error from the per-target verdicts.
func partialFailure(rep *Report) error {
	failed, blocked := 0, 0
	for _, tr := range rep.Targets {
		switch tr.Status {
		case TargetFailed:
			failed++
		case TargetBlocked:
			blocked++
		}
	}
	if failed+blocked > 0 {
		return &PartialFailureError{Failed: failed, Blocked: blocked}
	}
	return nil
}

// admit hands out every ready task that fits, cache-skipping fresh ones.
// Priority follows discovery index; a task that does not fit is skipped in
// favour of the next one that does.
func (e *Engine) admit(ctx context.Context, st *runState, rep *Report, runID string, workCh chan<- *graph.Task) {
	if ctx.Err() != nil {
		return
	}
	i := 0
	for i < len(st.ready) {
		t := st.ready[i]
		if e.cacheFresh(t, st.poisoned) {
			st.ready = append(st.ready[:i], st.ready[i+1:]...)
			rep.Cached = append(rep.Cached, t.Key)
			e.publish(events.TaskCached{RunID: runID, TaskID: t.Key, Rule: t.Rule.Name, Binding: t.Binding})
			e.log.Debugf("task %s: outputs current, skipped", t.Key)
			e.settleDone(st, t, true)
			i = 0 // dependents may have become ready with lower indexes
			continue
		}
		if st.running < e.opts.Workers && st.ledger.fits(t.MemoryMB) {
			st.ready = append(st.ready[:i], st.ready[i+1:]...)
			st.ledger.reserve(t.MemoryMB)
			st.running++
			t.State = graph.StateRunning
			e.publish(events.TaskStarted{
				RunID: runID, TaskID: t.Key, Rule: t.Rule.Name, Outputs: t.Outputs,
			})
			e.sampleLedger(st, runID)
			e.log.Debugf("task %s dispatched (%d MB reserved of %d)", t.Key, st.ledger.reservedMB, st.ledger.budgetMB)
			workCh <- t
			continue
		}
		i++
	}
}

func (e *Engine) worker(ctx context.Context, workCh <-chan *graph.Task, doneCh chan<- result) {
	for t := range workCh {
		start := time.Now()
		err := e.execute(ctx, t)
		doneCh <- result{task: t, err: err, dur: time.Since(start)}
	}
}

func (e *Engine) execute(ctx context.Context, t *graph.Task) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if e.opts.TaskTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.opts.TaskTimeout)
		defer cancel()
	}
	err := e.runner.Run(runCtx, t)
	if err == nil {
		return nil
	}
	kind := FailureExit
	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		kind = FailureTimeout
	}
	return &TaskError{Task: t.Key, Kind: kind, Err: err}
}

// settleDone marks a task done and promotes dependents whose predecessors
// are now all finished.
func (e *Engine) settleDone(st *runState, t *graph.Task, cached bool) {
	t.State = graph.StateDone
	t.Cached = cached
	for _, d := range t.Dependents {
		st.remaining[d]--
		if st.remaining[d] == 0 && d.State == graph.StatePending {
			e.markReady(st, d)
		}
	}
}

func (e *Engine) markReady(st *runState, t *graph.Task) {
	t.State = graph.StateReady
	st.ready = append(st.ready, t)
	sort.Slice(st.ready, func(i, j int) bool { return st.ready[i].Index < st.ready[j].Index })
}

// failTask settles a failure: poisons its outputs for the rest of the run
// and blocks every transitive dependent.
func (e *Engine) failTask(st *runState, runID string, t *graph.Task, err error, dur time.Duration) {
	t.State = graph.StateFailed
	t.Err = err
	for _, out := range t.Outputs {
		st.poisoned[out] = true
	}
	e.publish(events.TaskFinished{
		RunID: runID, TaskID: t.Key, Rule: t.Rule.Name, Binding: t.Binding,
		Success: false, Duration: dur, MemoryMB: t.MemoryMB, Err: err,
	})
	e.log.Errorf("task %s failed: %v", t.Key, err)

	queue := append([]*graph.Task(nil), t.Dependents...)
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if d.State == graph.StateBlocked || d.State == graph.StateFailed {
			continue
		}
		d.State = graph.StateBlocked
		d.BlockedBy = t.Key
		e.publish(events.TaskBlocked{RunID: runID, TaskID: d.Key, Rule: d.Rule.Name, Binding: d.Binding, Cause: t.Key})
		e.log.Warnf("task %s blocked by failure of %s", d.Key, t.Key)
		queue = append(queue, d.Dependents...)
	}
}

// cacheFresh reports whether every output exists, none was written by a task
// that failed this run, and no output is older than any input.
func (e *Engine) cacheFresh(t *graph.Task, poisoned map[string]bool) bool {
	var oldestOut time.Time
	for i, out := range t.Outputs {
		if poisoned[out] {
			return false
		}
		mt, ok := e.store.Stat(out)
		if !ok {
			return false
		}
		if i == 0 || mt.Before(oldestOut) {
			oldestOut = mt
		}
	}
	for _, in := range t.Inputs {
		if poisoned[in] {
			return false
		}
		mt, ok := e.store.Stat(in)
		if !ok {
			return false
		}
		if mt.After(oldestOut) {
			return false
		}
	}
	return true
}

// plan fills the dry-run task listing in dispatch order, leaving states
// untouched beyond the resource preflight.
func (e *Engine) plan(g *graph.Graph, rep *Report) {
	for _, t := range g.TopoOrder() {
		if t.State == graph.StateFailed || t.State == graph.StateBlocked {
			continue
		}
		rep.Planned = append(rep.Planned, t.Key)
	}
}

func (e *Engine) sampleLedger(st *runState, runID string) {
	e.publish(events.LedgerSampled{
		RunID:      runID,
		ReservedMB: st.ledger.reservedMB,
		BudgetMB:   st.ledger.budgetMB,
		Running:    st.running,
		Time:       time.Now(),
	})
}

func (e *Engine) publishFinished(runID string, rep *Report) {
	targets := make([]string, len(rep.Targets))
	for i, tr := range rep.Targets {
		targets[i] = tr.Path
	}
	e.publish(events.RunFinished{
		RunID:        runID,
		Targets:      targets,
		Succeeded:    rep.Succeeded,
		Failed:       rep.Failed,
		Blocked:      rep.Blocked,
		Cached:       len(rep.Cached),
		Executed:     len(rep.Executed),
		Duration:     rep.Duration,
		MeanTaskSec:  rep.Stats.MeanSec,
		StdevTaskSec: rep.Stats.StdevSec,
	})
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func targetPaths(g *graph.Graph) []string {
	paths := make([]string, len(g.Targets))
	for i, tg := range g.Targets {
		paths[i] = tg.Path
	}
	return paths
}
