package sandbox

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// shellRunner executes commands directly on the host, used when sandboxing
// is off or Docker is unavailable. sessionKey is unused beyond being part of
// the Runner interface — the host shell has no per-session container to
// tear down.
type shellRunner struct {
	timeout time.Duration
}

func newShellRunner(timeout time.Duration) *shellRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &shellRunner{timeout: timeout}
}

func (s *shellRunner) Run(ctx context.Context, _ string, command []string) (*Result, error) {
	if len(command) == 0 {
		return &Result{}, nil
	}
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Timeout = true
		return result, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, nil
}

func (s *shellRunner) Close(string) error { return nil }
