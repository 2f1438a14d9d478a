package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmill/gridmill/core/graph"
	"github.com/gridmill/gridmill/core/rules"
)

func TestLoadDir(t *testing.T) {
	reg := defaultRegistry(t, Policy{})
	vars := map[string]string{"scripts_dir": "/opt/gridmill/scripts"}

	added, err := LoadDir(reg, "testdata", vars, nopLog{})
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	archive, ok := reg.Template("archive_bundle")
	require.True(t, ok, "archive_bundle not registered")
	assert.Equal(t, "/opt/gridmill/scripts/archive_bundle.sh", archive.Script)
	assert.Equal(t, 500, archive.MemoryMB)
	assert.Nil(t, archive.Log)

	report, ok := reg.Template("outturn_report")
	require.True(t, ok, "outturn_report not registered")
	require.Len(t, report.Inputs, 3)
	assert.Equal(t, "iso_week_path", report.Inputs[2].Derive)
	assert.NotNil(t, report.Validators["day"], "day validator not attached")
	assert.NotNil(t, report.Validators["ic"], "ic validator not attached")

	tpl, binding, err := reg.Lookup("reports/2024-03-21/outturn_flex.csv")
	require.NoError(t, err)
	assert.Equal(t, "outturn_report", tpl.Name)
	assert.Equal(t, rules.Binding{"day": "2024-03-21", "ic": "flex"}, binding)

	_, _, err = reg.Lookup("reports/2024-03-21/outturn_bidirectional.csv")
	assert.ErrorIs(t, err, rules.ErrNoProducer, "attached ic validator should reject unknown modes")
}

// Overlay rules resolve their inputs through the built-in pipeline: the
// outturn report pulls in the whole summary chain plus its own fetch.
func TestLoadDirOverlayBuildsAgainstBuiltins(t *testing.T) {
	reg := defaultRegistry(t, Policy{})
	_, err := LoadDir(reg, "testdata", map[string]string{"scripts_dir": "scripts"}, nopLog{})
	require.NoError(t, err)

	g, err := graph.NewBuilder(reg, emptyStore(), nopLog{}).Build("reports/2024-03-21/outturn_flex.csv")
	require.NoError(t, err)
	assert.Equal(t, 21, g.Len())

	reportKey := graph.TaskKey("outturn_report", rules.Binding{"day": "2024-03-21", "ic": "flex"})
	report, ok := g.Task(reportKey)
	require.True(t, ok)
	require.Len(t, report.Deps, 3)

	depRules := map[string]bool{}
	for _, d := range report.Deps {
		depRules[d.Rule.Name] = true
	}
	assert.True(t, depRules["fetch_outturn"])
	assert.True(t, depRules["system_cost_summary"])
	assert.True(t, depRules["fetch_boundary_capacities"])
}

func TestLoadDirEmptyAndMissing(t *testing.T) {
	reg := defaultRegistry(t, Policy{})

	added, err := LoadDir(reg, "", nil, nopLog{})
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = LoadDir(reg, filepath.Join(t.TempDir(), "absent"), nil, nopLog{})
	assert.Error(t, err)
}

func TestLoadDirRejectsBadManifests(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name: "input with path and derived",
			manifest: `rule "x" {
  mem_mb = 100
  script = "x.sh"
  output "o" { path = "x/{day}/out.csv" }
  input "i" {
    path    = "x/{day}/in.csv"
    derived = "iso_week_path"
  }
}`,
			wantErr: "mutually exclusive",
		},
		{
			name: "input without path or derived",
			manifest: `rule "x" {
  mem_mb = 100
  script = "x.sh"
  output "o" { path = "x/{day}/out.csv" }
  input "i" {}
}`,
			wantErr: "needs path or derived",
		},
		{
			name: "no outputs",
			manifest: `rule "x" {
  mem_mb = 100
  script = "x.sh"
}`,
			wantErr: "declares no outputs",
		},
		{
			name: "missing mem_mb",
			manifest: `rule "x" {
  script = "x.sh"
  output "o" { path = "x/{day}/out.csv" }
}`,
			wantErr: "mem_mb",
		},
		{
			name: "invalid wildcard name",
			manifest: `rule "x" {
  mem_mb = 100
  script = "x.sh"
  output "o" { path = "x/{1bad}/out.csv" }
}`,
			wantErr: "invalid wildcard name",
		},
		{
			name: "redefines built-in name",
			manifest: `rule "fetch_demand" {
  mem_mb = 100
  script = "x.sh"
  output "o" { path = "alt/{day}/demand.csv" }
}`,
			wantErr: "already registered",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "m.hcl"), []byte(tc.manifest), 0o644))

			reg := defaultRegistry(t, Policy{})
			_, err := LoadDir(reg, dir, nil, nopLog{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadDirRejectsOverlappingOutputs(t *testing.T) {
	dir := t.TempDir()
	manifest := `rule "demand_copy" {
  mem_mb = 100
  script = "x.sh"
  output "o" { path = "data/base/{day}/demand.csv" }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.hcl"), []byte(manifest), 0o644))

	reg := defaultRegistry(t, Policy{})
	_, err := LoadDir(reg, dir, nil, nopLog{})
	require.Error(t, err)

	var amb *rules.AmbiguityError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "demand_copy", amb.Rule)
	assert.Equal(t, "fetch_demand", amb.Existing)
}
