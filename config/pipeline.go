package config

import "fmt"

// PipelineConfig selects rule overlays and the constraint vintage policy.
type PipelineConfig struct {
	// RulesDir holds .hcl manifests registered on top of the built-in study.
	RulesDir string `json:"rules_dir"`
	// ConstraintHorizonYear is the last ISO year with published boundary
	// capacities. Days beyond it reuse the horizon vintage under a recorded
	// fallback; zero always requests the true vintage.
	ConstraintHorizonYear int `json:"constraint_horizon_year"`
}

// Validate checks mandatory fields.
func (c PipelineConfig) Validate() error {
	if c.ConstraintHorizonYear < 0 {
		return fmt.Errorf("constraint_horizon_year must not be negative, got %d", c.ConstraintHorizonYear)
	}
	return nil
}
