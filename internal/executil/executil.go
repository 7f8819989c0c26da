// Package executil runs external commands on behalf of built-in plugins
// that shell out to tooling (cargo, npm) — adapted from
// catalyst-forge-libs/executor, trimmed to the subset the release
// orchestrator's plugins need: context-aware execution, separate stdout
// and stderr capture, and a working directory.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/semanteecore/forge-release/internal/errors"
)

// Result holds the captured output and exit status of a command run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes program with args in dir, returning the captured output.
// A non-zero exit or a failure to start the process is reported as a
// *errors.Error with CodeExecutionFailed so callers can surface it as a
// plugin.Failed outcome without re-wrapping.
func Run(ctx context.Context, dir, program string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.Writer(&stdout)
	cmd.Stderr = io.Writer(&stderr)

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	}

	if err != nil {
		return result, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			fmt.Sprintf("command %q failed", program), map[string]interface{}{
				"args":   args,
				"dir":    dir,
				"stderr": stderr.String(),
			})
	}

	return result, nil
}
