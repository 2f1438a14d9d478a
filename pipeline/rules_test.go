package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/gridmill/gridmill/core/graph"
	"github.com/gridmill/gridmill/core/rules"
)

type nopLog struct{}

func (nopLog) Debugf(string, ...any)         {}
func (nopLog) Debugw(string, map[string]any) {}
func (nopLog) Infof(string, ...any)          {}
func (nopLog) Warnf(string, ...any)          {}
func (nopLog) Errorf(string, ...any)         {}

type fakeStore struct {
	files map[string]time.Time
}

func (s *fakeStore) Stat(path string) (time.Time, bool) {
	t, ok := s.files[path]
	return t, ok
}

func emptyStore() *fakeStore {
	return &fakeStore{files: map[string]time.Time{}}
}

func defaultRegistry(t *testing.T, policy Policy) *rules.Registry {
	t.Helper()
	reg := rules.NewRegistry()
	if err := Default(reg, policy); err != nil {
		t.Fatalf("registering default pipeline: %v", err)
	}
	return reg
}

func TestDefault_Registers(t *testing.T) {
	reg := defaultRegistry(t, Policy{})
	tpls := reg.Templates()
	if len(tpls) != 12 {
		t.Fatalf("expected 12 built-in rules, got %d", len(tpls))
	}
	for _, tpl := range tpls {
		if tpl.Script == "" {
			t.Errorf("rule %s has no collaborator script", tpl.Name)
		}
		if tpl.Log == nil {
			t.Errorf("rule %s has no log pattern", tpl.Name)
		}
	}
	derivs := reg.Derivations()
	if len(derivs) != 1 || derivs[0] != "iso_week_path" {
		t.Fatalf("derivations = %v, want [iso_week_path]", derivs)
	}
}

// Requesting one interconnector-wide summary must expand into the full study
// for that day: five retrievals, the weekly constraint fetch, and a
// network/solve/balancing/revenue chain per layout feeding the summary.
func TestSummaryTargetExpandsFullStudy(t *testing.T) {
	reg := defaultRegistry(t, Policy{})
	b := graph.NewBuilder(reg, emptyStore(), nopLog{})

	target := "results/2024-03-21/system_cost_summary_flex.csv"
	g, err := b.Build(target)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Len() != 19 {
		t.Fatalf("expected 19 tasks, got %d", g.Len())
	}

	perRule := map[string]int{}
	for _, task := range g.Tasks {
		perRule[task.Rule.Name]++
	}
	want := map[string]int{
		"fetch_bmu_register":             1,
		"fetch_demand":                   1,
		"fetch_physical_notifications":   1,
		"fetch_bid_offer_stack":          1,
		"fetch_interconnector_schedules": 1,
		"fetch_boundary_capacities":      1,
		"build_network":                  3,
		"solve_market":                   3,
		"clear_balancing":                3,
		"compute_revenues":               3,
		"system_cost_summary":            1,
	}
	for rule, n := range want {
		if perRule[rule] != n {
			t.Errorf("rule %s: %d tasks, want %d", rule, perRule[rule], n)
		}
	}

	day := rules.Binding{"day": "2024-03-21"}
	summaryKey := graph.TaskKey("system_cost_summary", rules.Binding{"day": "2024-03-21", "ic": "flex"})
	summary, ok := g.Task(summaryKey)
	if !ok {
		t.Fatalf("summary task %s missing", summaryKey)
	}
	if len(g.Targets) != 1 || g.Targets[0].Task != summary {
		t.Fatalf("target not wired to summary task")
	}

	// prices inputs memoize onto the solve tasks, so the summary depends on
	// three solves and three revenue tasks
	wantDeps := map[string]bool{}
	for _, layout := range []string{"national", "zonal", "nodal"} {
		lb := rules.Binding{"day": "2024-03-21", "layout": layout, "ic": "flex"}
		wantDeps[graph.TaskKey("compute_revenues", lb)] = true
		wantDeps[graph.TaskKey("solve_market", lb)] = true
	}
	if len(summary.Deps) != len(wantDeps) {
		t.Fatalf("summary has %d deps, want %d", len(summary.Deps), len(wantDeps))
	}
	for _, d := range summary.Deps {
		if !wantDeps[d.Key] {
			t.Errorf("unexpected summary dep %s", d.Key)
		}
	}

	// every network build consumes the same weekly constraint vintage
	boundaryKey := graph.TaskKey("fetch_boundary_capacities", rules.Binding{"iso_year": "2024", "iso_week": "12"})
	if _, ok := g.Task(boundaryKey); !ok {
		t.Fatalf("boundary task %s missing", boundaryKey)
	}
	for _, layout := range []string{"national", "zonal", "nodal"} {
		netKey := graph.TaskKey("build_network", rules.Binding{"day": "2024-03-21", "layout": layout})
		net, ok := g.Task(netKey)
		if !ok {
			t.Fatalf("network task %s missing", netKey)
		}
		found := false
		for _, d := range net.Deps {
			if d.Key == boundaryKey {
				found = true
			}
		}
		if !found {
			t.Errorf("network %s does not depend on %s", netKey, boundaryKey)
		}
	}

	// dispatch order sanity on the topological order
	pos := map[string]int{}
	for i, task := range g.TopoOrder() {
		pos[task.Key] = i
	}
	demandKey := graph.TaskKey("fetch_demand", day)
	natSolve := graph.TaskKey("solve_market", rules.Binding{"day": "2024-03-21", "layout": "national", "ic": "flex"})
	if !(pos[demandKey] < pos[natSolve] && pos[natSolve] < pos[summaryKey]) {
		t.Errorf("topo order violated: demand=%d solve=%d summary=%d", pos[demandKey], pos[natSolve], pos[summaryKey])
	}
	if pos[summaryKey] != g.Len()-1 {
		t.Errorf("summary not last in topo order, at %d of %d", pos[summaryKey], g.Len())
	}
}

// 2024-01-01 is a Monday and belongs to ISO week 1 of 2024, not to the last
// week of 2023. 2023-12-31 is the Sunday closing ISO week 52 of 2023.
func TestISOWeekDerivation(t *testing.T) {
	reg := defaultRegistry(t, Policy{})
	b := graph.NewBuilder(reg, emptyStore(), nopLog{})

	g, err := b.Build("networks/2024-01-01/national.nc", "networks/2023-12-31/zonal.nc")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	checks := []struct {
		netKey   string
		capPath  string
		boundary string
	}{
		{
			netKey:   graph.TaskKey("build_network", rules.Binding{"day": "2024-01-01", "layout": "national"}),
			capPath:  "data/constraints/2024/week_01/boundary_capacities.csv",
			boundary: graph.TaskKey("fetch_boundary_capacities", rules.Binding{"iso_year": "2024", "iso_week": "01"}),
		},
		{
			netKey:   graph.TaskKey("build_network", rules.Binding{"day": "2023-12-31", "layout": "zonal"}),
			capPath:  "data/constraints/2023/week_52/boundary_capacities.csv",
			boundary: graph.TaskKey("fetch_boundary_capacities", rules.Binding{"iso_year": "2023", "iso_week": "52"}),
		},
	}
	for _, c := range checks {
		net, ok := g.Task(c.netKey)
		if !ok {
			t.Fatalf("network task %s missing", c.netKey)
		}
		found := false
		for _, in := range net.Inputs {
			if in == c.capPath {
				found = true
			}
		}
		if !found {
			t.Errorf("network %s inputs %v missing %s", c.netKey, net.Inputs, c.capPath)
		}
		if _, ok := g.Task(c.boundary); !ok {
			t.Errorf("boundary task %s missing", c.boundary)
		}
	}
	if len(g.Notes) != 0 {
		t.Errorf("unexpected fallback notes: %v", g.Notes)
	}
}

func TestConstraintHorizonFallback(t *testing.T) {
	reg := defaultRegistry(t, Policy{ConstraintHorizonYear: 2026})
	b := graph.NewBuilder(reg, emptyStore(), nopLog{})

	g, err := b.Build("networks/2031-01-01/nodal.nc")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	boundaryKey := graph.TaskKey("fetch_boundary_capacities", rules.Binding{"iso_year": "2026", "iso_week": "01"})
	if _, ok := g.Task(boundaryKey); !ok {
		t.Fatalf("substituted boundary task %s missing", boundaryKey)
	}
	if len(g.Notes) != 1 {
		t.Fatalf("expected 1 fallback note, got %d", len(g.Notes))
	}
	n := g.Notes[0]
	if n.Rule != "build_network" || n.Fn != "iso_week_path" || n.Wildcard != "iso_year" {
		t.Errorf("note identity = %+v", n)
	}
	if n.Requested != "2031" || n.Substituted != "2026" {
		t.Errorf("note values = requested %s substituted %s", n.Requested, n.Substituted)
	}
}

func TestConstraintHorizonDisabled(t *testing.T) {
	reg := defaultRegistry(t, Policy{})
	b := graph.NewBuilder(reg, emptyStore(), nopLog{})

	g, err := b.Build("networks/2031-01-01/nodal.nc")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	boundaryKey := graph.TaskKey("fetch_boundary_capacities", rules.Binding{"iso_year": "2031", "iso_week": "01"})
	if _, ok := g.Task(boundaryKey); !ok {
		t.Fatalf("true-vintage boundary task %s missing", boundaryKey)
	}
	if len(g.Notes) != 0 {
		t.Errorf("unexpected fallback notes: %v", g.Notes)
	}
}

// Wildcard validators narrow pattern matches: ill-formed days, unknown
// layouts or interconnector modes must not resolve to a producer.
func TestLookupRejectsInvalidWildcards(t *testing.T) {
	reg := defaultRegistry(t, Policy{})

	bad := []string{
		"results/2024-13-45/system_cost_summary_flex.csv",
		"results/not-a-day/dispatch_zonal_flex.csv",
		"results/2024-03-21/dispatch_regional_flex.csv",
		"results/2024-03-21/dispatch_zonal_sometimes.csv",
		"data/constraints/24/week_01/boundary_capacities.csv",
		"data/constraints/2024/week_1/boundary_capacities.csv",
		"data/constraints/2024/week_60/boundary_capacities.csv",
	}
	for _, path := range bad {
		if _, _, err := reg.Lookup(path); !errors.Is(err, rules.ErrNoProducer) {
			t.Errorf("Lookup(%s) err = %v, want no-producer", path, err)
		}
	}

	tpl, binding, err := reg.Lookup("results/2024-03-21/dispatch_zonal_flex.csv")
	if err != nil {
		t.Fatalf("Lookup valid dispatch: %v", err)
	}
	if tpl.Name != "solve_market" {
		t.Errorf("producer = %s, want solve_market", tpl.Name)
	}
	if binding["layout"] != "zonal" || binding["ic"] != "flex" {
		t.Errorf("binding = %v", binding)
	}
}

func TestDeriveRequiresDay(t *testing.T) {
	fn := isoWeekPath(Policy{})
	if _, _, err := fn(rules.Binding{"layout": "zonal"}); err == nil {
		t.Fatal("expected error for binding without day")
	}
	if _, _, err := fn(rules.Binding{"day": "21-03-2024"}); err == nil {
		t.Fatal("expected error for malformed day")
	}
}
