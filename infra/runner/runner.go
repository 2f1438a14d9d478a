// Package runner launches rule collaborators as external processes. The
// engine stays ignorant of file contents and domain computation; this is the
// boundary where a task becomes a real process working the data tree.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gridmill/gridmill/core/graph"
	"github.com/gridmill/gridmill/core/logger"
)

// ExecRunner execs the configured interpreter on a task's collaborator
// script with the working directory set to the data root. Inputs, outputs,
// the memory budget and the log destination travel through the environment:
//
//	GRIDMILL_INPUTS   space-joined input paths, relative to the data root
//	GRIDMILL_OUTPUTS  space-joined output paths, relative to the data root
//	GRIDMILL_MEM_MB   the task's declared memory budget
//	GRIDMILL_LOG      log path, relative to the data root, "" when none
//
// Stdout and stderr are captured into the task's log file.
type ExecRunner struct {
	root        string
	scripts     string
	interpreter string
	log         logger.Logger
}

// New returns an ExecRunner working under the given data root. Relative
// script paths resolve under scriptsDir; interpreter defaults to /bin/sh.
func New(root, scriptsDir, interpreter string, log logger.Logger) (*ExecRunner, error) {
	if root == "" {
		return nil, fmt.Errorf("data root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving data root %q: %w", root, err)
	}
	if interpreter == "" {
		interpreter = "/bin/sh"
	}
	return &ExecRunner{root: abs, scripts: scriptsDir, interpreter: interpreter, log: log}, nil
}

// Run launches the collaborator and returns nil only when it exited cleanly
// and every declared output exists afterwards.
func (r *ExecRunner) Run(ctx context.Context, t *graph.Task) error {
	script := t.Rule.Script
	if script == "" {
		return fmt.Errorf("rule %s declares no collaborator script", t.Rule.Name)
	}
	if !filepath.IsAbs(script) {
		script = filepath.Join(r.scripts, script)
	}
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("collaborator script for rule %s: %w", t.Rule.Name, err)
	}

	for _, out := range t.Outputs {
		if err := os.MkdirAll(filepath.Dir(r.abs(out)), 0o755); err != nil {
			return fmt.Errorf("preparing output directory for %s: %w", out, err)
		}
	}

	sink, closeLog, err := r.openLog(t.LogPath)
	if err != nil {
		return err
	}
	defer closeLog()

	cmd := exec.CommandContext(ctx, r.interpreter, script)
	cmd.Dir = r.root
	cmd.Stdout = sink
	cmd.Stderr = sink
	cmd.Env = append(os.Environ(),
		"GRIDMILL_INPUTS="+strings.Join(t.Inputs, " "),
		"GRIDMILL_OUTPUTS="+strings.Join(t.Outputs, " "),
		"GRIDMILL_MEM_MB="+strconv.Itoa(t.MemoryMB),
		"GRIDMILL_LOG="+t.LogPath,
	)

	r.log.Debugf("task %s: exec %s %s", t.Key, r.interpreter, script)
	if err := cmd.Run(); err != nil {
		if t.LogPath != "" {
			return fmt.Errorf("collaborator for %s: %w (log: %s)", t.Key, err, t.LogPath)
		}
		return fmt.Errorf("collaborator for %s: %w", t.Key, err)
	}

	for _, out := range t.Outputs {
		info, err := os.Stat(r.abs(out))
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("collaborator for %s exited cleanly but did not produce %s", t.Key, out)
		}
	}
	return nil
}

func (r *ExecRunner) abs(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

// openLog prepares the capture destination for a collaborator. Rules with
// no log pattern run silent.
func (r *ExecRunner) openLog(rel string) (io.Writer, func(), error) {
	if rel == "" {
		return io.Discard, func() {}, nil
	}
	p := r.abs(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, nil, fmt.Errorf("preparing log directory for %s: %w", rel, err)
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log %s: %w", rel, err)
	}
	return f, func() { _ = f.Close() }, nil
}
