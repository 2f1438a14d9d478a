package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the execution-side failure modes.
var (
	ErrResourceUnsatisfiable = errors.New("resource unsatisfiable")
	ErrTaskFailed            = errors.New("task execution failed")
	ErrPartialFailure        = errors.New("partial build failure")
)

// ResourceError reports a task whose memory requirement can never fit the
// configured budget. It is raised before dispatch, fails the task, and
// blocks everything depending on it without touching unrelated subgraphs.
type ResourceError struct {
	Task     string
	NeedMB   int
	BudgetMB int
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("task %s needs %d MB but the budget is %d MB", e.Task, e.NeedMB, e.BudgetMB)
}

func (e *ResourceError) Unwrap() error { return ErrResourceUnsatisfiable }

// FailureKind classifies a task execution failure.
type FailureKind int

const (
	FailureExit FailureKind = iota
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureExit:
		return "exit"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TaskError reports a collaborator that exited nonzero or overran its
// wall-clock budget.
type TaskError struct {
	Task string
	Kind FailureKind
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed (%s): %v", e.Task, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Is lets errors.Is match the ErrTaskFailed sentinel in addition to the
// wrapped cause.
func (e *TaskError) Is(target error) bool { return target == ErrTaskFailed }

// PartialFailureError is the aggregate returned when a run finishes with
// failed or blocked targets. The Report carries the detail.
type PartialFailureError struct {
	Failed  int
	Blocked int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("build finished with %d failed and %d blocked targets", e.Failed, e.Blocked)
}

func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }
