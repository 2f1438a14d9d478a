package graph

import "github.com/gridmill/gridmill/core/rules"

// State is the lifecycle state of a task.
type State int

const (
	StatePending State = iota
	StateReady
	StateRunning
	StateDone
	StateFailed
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Task is a concrete instantiation of one rule template under one wildcard
// binding. Identity is (rule name, binding): the builder returns the same
// *Task for every request resolving to the same key.
type Task struct {
	Rule    *rules.RuleTemplate
	Binding rules.Binding
	Key     string
	Index   int // discovery index; lower = discovered earlier

	Inputs   []string // rendered concrete input paths, template order
	Outputs  []string // rendered concrete output paths, template order
	LogPath  string
	MemoryMB int

	Deps       []*Task // predecessors, discovery order, unique
	Dependents []*Task // successors, discovery order, unique

	// Mutable run state. Every transition happens on the engine's
	// scheduling loop; nothing else writes these fields.
	State     State
	Cached    bool   // done without execution
	Err       error  // failure cause when State == StateFailed
	BlockedBy string // failed ancestor key when State == StateBlocked
}

// TaskKey builds the identity key for a rule name and binding.
func TaskKey(rule string, b rules.Binding) string {
	return rule + "[" + b.Key() + "]"
}

func (t *Task) addDep(dep *Task) {
	for _, d := range t.Deps {
		if d == dep {
			return
		}
	}
	t.Deps = append(t.Deps, dep)
	dep.Dependents = append(dep.Dependents, t)
}
