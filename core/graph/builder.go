// Package graph expands requested output paths into a DAG of concrete build
// tasks, resolving producers through the rule registry and folding subtrees
// that durable storage already satisfies.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridmill/gridmill/core/logger"
	"github.com/gridmill/gridmill/core/rules"
)

// Store is the durable-storage view the builder consults: existence and
// modification time per pipeline-relative path.
type Store interface {
	Stat(path string) (mtime time.Time, exists bool)
}

// ErrCyclicDependency marks dependency cycles for errors.Is.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CycleError reports a dependency cycle, naming the task keys along it.
type CycleError struct{ Stack []string }

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Stack, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// MissingProducerError reports a required path that neither exists on
// durable storage nor is produced by any registered rule.
type MissingProducerError struct {
	Path   string
	Needed string // rule needing the path, "" for a requested target
}

func (e *MissingProducerError) Error() string {
	if e.Needed != "" {
		return fmt.Sprintf("input %q of rule %s: file absent and no rule produces it", e.Path, e.Needed)
	}
	return fmt.Sprintf("target %q: file absent and no rule produces it", e.Path)
}

func (e *MissingProducerError) Unwrap() error { return rules.ErrNoProducer }

// Builder expands requested target paths into a dependency graph.
type Builder struct {
	reg   *rules.Registry
	store Store
	log   logger.Logger
}

// NewBuilder returns a Builder resolving against the given registry and
// storage view.
func NewBuilder(reg *rules.Registry, store Store, log logger.Logger) *Builder {
	return &Builder{reg: reg, store: store, log: log}
}

type buildState struct {
	g        *Graph
	visiting map[string]bool
	stack    []string
	pathMemo map[string]*Task // concrete path -> producer, nil entry = leaf
	noted    map[rules.FallbackNote]bool
}

// Build expands the requested targets into one shared graph. A structural
// error (mismatch, unbound wildcard, failed derivation, missing producer,
// cycle) aborts the whole request before anything executes: it means the
// pipeline specification or the storage tree cannot support the request,
// not that a task failed.
func (b *Builder) Build(targets ...string) (*Graph, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets requested")
	}
	st := &buildState{
		g:        newGraph(),
		visiting: make(map[string]bool),
		pathMemo: make(map[string]*Task),
		noted:    make(map[rules.FallbackNote]bool),
	}
	for _, target := range targets {
		task, err := b.expand(st, target, "")
		if err != nil {
			return nil, err
		}
		st.g.Targets = append(st.g.Targets, Target{Path: target, Task: task})
		if task == nil {
			b.log.Debugf("target %s already current, nothing to build", target)
		}
	}
	return st.g, nil
}

// expand resolves one concrete path to its producing task, or to nil when
// the file on durable storage already satisfies it.
func (b *Builder) expand(st *buildState, path, neededBy string) (*Task, error) {
	if t, ok := st.pathMemo[path]; ok {
		return t, nil
	}
	tpl, binding, err := b.reg.Lookup(path)
	if err != nil {
		if _, exists := b.store.Stat(path); exists {
			st.pathMemo[path] = nil
			st.g.Leaves = append(st.g.Leaves, path)
			return nil, nil
		}
		return nil, &MissingProducerError{Path: path, Needed: neededBy}
	}

	key := TaskKey(tpl.Name, binding)
	if st.visiting[key] {
		return nil, &CycleError{Stack: cycleTail(st.stack, key)}
	}
	if t, ok := st.g.byKey[key]; ok {
		st.pathMemo[path] = t
		return t, nil
	}

	outputs, err := tpl.RenderOutputs(binding)
	if err != nil {
		return nil, err
	}
	logPath, err := tpl.RenderLog(binding)
	if err != nil {
		return nil, err
	}

	t := &Task{
		Rule:     tpl,
		Binding:  binding,
		Key:      key,
		Index:    len(st.g.Tasks),
		Outputs:  outputs,
		LogPath:  logPath,
		MemoryMB: tpl.MemoryMB,
		State:    StatePending,
	}
	st.g.Tasks = append(st.g.Tasks, t)
	st.g.byKey[key] = t
	st.visiting[key] = true
	st.stack = append(st.stack, key)

	for _, ref := range tpl.Inputs {
		in, note, err := b.reg.ResolveInput(ref, binding)
		if err != nil {
			return nil, err
		}
		if note != nil {
			note.Rule = tpl.Name
			if !st.noted[*note] {
				st.noted[*note] = true
				st.g.Notes = append(st.g.Notes, *note)
				b.log.Warnf("rule %s input %s: %s=%s substituted for requested %s by fallback policy",
					tpl.Name, ref.Name, note.Wildcard, note.Substituted, note.Requested)
			}
		}
		t.Inputs = append(t.Inputs, in)
		dep, err := b.expand(st, in, tpl.Name)
		if err != nil {
			return nil, err
		}
		if dep != nil {
			t.addDep(dep)
		}
	}

	st.stack = st.stack[:len(st.stack)-1]
	delete(st.visiting, key)

	// Fold into a leaf when storage already satisfies the whole subtree:
	// nothing below needs to run and no output is older than any input.
	// The task was necessarily the last one committed, so the pop keeps
	// discovery indexes dense.
	if len(t.Deps) == 0 && b.outputsCurrent(t) {
		st.g.Tasks = st.g.Tasks[:len(st.g.Tasks)-1]
		delete(st.g.byKey, key)
		for _, out := range outputs {
			st.pathMemo[out] = nil
			st.g.Leaves = append(st.g.Leaves, out)
		}
		b.log.Debugf("rule %s [%s]: outputs current, folded to leaf", tpl.Name, binding.Key())
		return nil, nil
	}

	for _, out := range outputs {
		st.pathMemo[out] = t
	}
	return t, nil
}

// outputsCurrent reports whether every output exists and none is older than
// any input.
func (b *Builder) outputsCurrent(t *Task) bool {
	var oldestOut time.Time
	for i, out := range t.Outputs {
		mt, ok := b.store.Stat(out)
		if !ok {
			return false
		}
		if i == 0 || mt.Before(oldestOut) {
			oldestOut = mt
		}
	}
	for _, in := range t.Inputs {
		mt, ok := b.store.Stat(in)
		if !ok {
			return false
		}
		if mt.After(oldestOut) {
			return false
		}
	}
	return true
}

func cycleTail(stack []string, key string) []string {
	for i, k := range stack {
		if k == key {
			tail := append([]string(nil), stack[i:]...)
			return append(tail, key)
		}
	}
	return append(append([]string(nil), stack...), key)
}
