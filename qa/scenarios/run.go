package scenarios

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gridmill/gridmill/app"
	"github.com/gridmill/gridmill/config"
	"github.com/gridmill/gridmill/core/engine"
	"github.com/gridmill/gridmill/core/rules"
	"github.com/gridmill/gridmill/pipeline"
)

const passthroughScript = `#!/bin/sh
for f in $GRIDMILL_OUTPUTS; do
  mkdir -p "$(dirname "$f")"
  echo "data" > "$f"
done
`

const failingScript = `#!/bin/sh
exit 3
`

// RunScenario wires a Service in temp directories, points every built-in
// rule at a passthrough collaborator (a failing one for fail_rules) and
// checks the run report against the scenario's expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()

	root := t.TempDir()
	scriptsDir := filepath.Join(root, "scripts")
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		t.Fatalf("mkdir scripts: %v", err)
	}

	fail := make(map[string]bool, len(sc.FailRules))
	for _, r := range sc.FailRules {
		fail[r] = true
	}
	reg := rules.NewRegistry()
	if err := pipeline.Default(reg, pipeline.Policy{}); err != nil {
		t.Fatalf("built-in rules: %v", err)
	}
	for _, tpl := range reg.Templates() {
		body := passthroughScript
		if fail[tpl.Name] {
			body = failingScript
		}
		if err := os.WriteFile(filepath.Join(scriptsDir, tpl.Script), []byte(body), 0o755); err != nil {
			t.Fatalf("write script %s: %v", tpl.Script, err)
		}
	}

	cfg := &config.Config{}
	cfg.Engine.Workers = sc.Workers
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 4
	}
	cfg.Engine.MemoryMB = 32000
	cfg.Engine.DataRoot = filepath.Join(root, "data")
	cfg.Engine.ScriptsDir = scriptsDir
	cfg.Pipeline.ConstraintHorizonYear = sc.HorizonYear
	cfg.Logging.Level = "error"

	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	rep, err := svc.Run(context.Background(), sc.Targets, sc.DryRun)
	if len(sc.FailRules) > 0 {
		if !errors.Is(err, engine.ErrPartialFailure) {
			t.Fatalf("expected partial failure, got %v", err)
		}
	} else if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep == nil {
		t.Fatal("no report returned")
	}
	checkReport(t, sc.Expected, rep)
}

func checkReport(t *testing.T, exp Expected, rep *engine.Report) {
	t.Helper()
	if got := len(rep.Planned); got != exp.Planned {
		t.Errorf("planned: got %d want %d", got, exp.Planned)
	}
	if rep.Succeeded != exp.Executed {
		t.Errorf("executed: got %d want %d", rep.Succeeded, exp.Executed)
	}
	if got := len(rep.Cached); got != exp.Cached {
		t.Errorf("cached: got %d want %d", got, exp.Cached)
	}
	if rep.Failed != exp.Failed {
		t.Errorf("failed: got %d want %d", rep.Failed, exp.Failed)
	}
	if rep.Blocked != exp.Blocked {
		t.Errorf("blocked: got %d want %d", rep.Blocked, exp.Blocked)
	}
	if got := len(rep.Fallbacks); got != exp.Fallbacks {
		t.Errorf("fallbacks: got %d want %d", got, exp.Fallbacks)
	}
	for path, want := range exp.Targets {
		found := false
		for _, tr := range rep.Targets {
			if tr.Path != path {
				continue
			}
			found = true
			if got := tr.Status.String(); got != want {
				t.Errorf("target %s: got %s want %s (cause %q)", path, got, want, tr.Cause)
			}
		}
		if !found {
			t.Errorf("target %s missing from report", path)
		}
	}
}
