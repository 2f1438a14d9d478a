package config

import (
	"fmt"
	"runtime"
	"time"
)

// EngineConfig sizes the scheduler and anchors the data tree.
type EngineConfig struct {
	// Workers bounds concurrently running collaborator processes.
	Workers int `json:"workers"`
	// MemoryMB is the memory budget shared by running tasks.
	MemoryMB int `json:"memory_mb"`
	// TaskTimeoutS fails a collaborator exceeding this wall-clock budget.
	// Zero disables the per-task timeout.
	TaskTimeoutS int `json:"task_timeout_s"`
	// DataRoot is the directory every pipeline path is relative to.
	DataRoot string `json:"data_root"`
	// ScriptsDir resolves relative collaborator script names.
	ScriptsDir string `json:"scripts_dir"`
	// Interpreter executes collaborator scripts, /bin/sh when empty.
	Interpreter string `json:"interpreter"`
}

// SetDefaults applies sane defaults.
func (c *EngineConfig) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MemoryMB == 0 {
		c.MemoryMB = 32000
	}
	if c.DataRoot == "" {
		c.DataRoot = "."
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = "scripts"
	}
}

// Validate checks mandatory fields.
func (c EngineConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MemoryMB <= 0 {
		return fmt.Errorf("memory_mb must be positive, got %d", c.MemoryMB)
	}
	if c.TaskTimeoutS < 0 {
		return fmt.Errorf("task_timeout_s must not be negative, got %d", c.TaskTimeoutS)
	}
	return nil
}

// TaskTimeout returns the per-task timeout as a duration.
func (c EngineConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutS) * time.Second
}
