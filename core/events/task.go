package events

import "time"

// TaskStarted is published for each task handed to a worker.
type TaskStarted struct {
	RunID   string
	TaskID  string
	Rule    string
	Outputs []string
}

// TaskFinished is published when a running task settles.
type TaskFinished struct {
	RunID    string
	TaskID   string
	Rule     string
	Binding  map[string]string
	Success  bool
	Duration time.Duration
	MemoryMB int
	Err      error
}

// TaskCached is published when a task is skipped because its outputs
// are newer than every input.
type TaskCached struct {
	RunID   string
	TaskID  string
	Rule    string
	Binding map[string]string
}

// TaskBlocked is published when a task is abandoned because one of its
// dependencies failed. Cause names the failed task.
type TaskBlocked struct {
	RunID   string
	TaskID  string
	Rule    string
	Binding map[string]string
	Cause   string
}
