// Package scenarios drives end-to-end study runs from YAML fixtures. Every
// .yaml file in this directory describes one run: the requested targets, how
// the collaborators behave and the report the engine must produce.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Expected holds the report counters and per-target verdicts a scenario
// must produce. Omitted counters default to zero, which is the correct
// expectation for the run modes that never touch them.
type Expected struct {
	Planned   int               `yaml:"planned,omitempty"`
	Executed  int               `yaml:"executed,omitempty"`
	Cached    int               `yaml:"cached,omitempty"`
	Failed    int               `yaml:"failed,omitempty"`
	Blocked   int               `yaml:"blocked,omitempty"`
	Fallbacks int               `yaml:"fallbacks,omitempty"`
	Targets   map[string]string `yaml:"targets"`
}

type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Targets     []string `yaml:"targets"`
	DryRun      bool     `yaml:"dry_run,omitempty"`
	FailRules   []string `yaml:"fail_rules,omitempty"`
	HorizonYear int      `yaml:"constraint_horizon_year,omitempty"`
	Workers     int      `yaml:"workers,omitempty"`
	Expected    Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(sc.Targets) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one target is required", path)
	}
	return &sc, nil
}
