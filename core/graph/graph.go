package graph

import "github.com/gridmill/gridmill/core/rules"

// Graph is the dependency DAG of one build invocation: tasks in discovery
// order plus the leaf files that satisfy inputs without running anything.
// Graphs live for a single run; durable outputs are the only persistent
// state between runs.
type Graph struct {
	Tasks   []*Task
	Targets []Target // requested targets, request order
	Leaves  []string // existing files consumed as-is, discovery order
	Notes   []rules.FallbackNote

	byKey map[string]*Task
}

// Target ties a requested path to its producing task. Task is nil when the
// path was already present and current on durable storage.
type Target struct {
	Path string
	Task *Task
}

func newGraph() *Graph {
	return &Graph{byKey: make(map[string]*Task)}
}

// Task returns the task with the given identity key.
func (g *Graph) Task(key string) (*Task, bool) {
	t, ok := g.byKey[key]
	return t, ok
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.Tasks) }

// TopoOrder returns the tasks in a deterministic topological order: among
// tasks whose predecessors are all placed, the lowest discovery index goes
// first. Builder-produced graphs are acyclic, so the order is always total.
func (g *Graph) TopoOrder() []*Task {
	placed := make(map[*Task]bool, len(g.Tasks))
	order := make([]*Task, 0, len(g.Tasks))
	for len(order) < len(g.Tasks) {
		var next *Task
		for _, t := range g.Tasks {
			if placed[t] {
				continue
			}
			free := true
			for _, d := range t.Deps {
				if !placed[d] {
					free = false
					break
				}
			}
			if free {
				next = t
				break
			}
		}
		if next == nil {
			break
		}
		placed[next] = true
		order = append(order, next)
	}
	return order
}
