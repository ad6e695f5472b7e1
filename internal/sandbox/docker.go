package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// dockerRunner keeps one long-lived container per session key, started with
// the workspace bind-mounted read-write and hardened with the flags below.
// This differs from a one-shot "docker run --rm" invocation because tool
// calls within a session need to see each other's filesystem side effects
// (a write_file followed by a bash cat, for instance).
type dockerRunner struct {
	cfg       Config
	mu        sync.Mutex
	container map[string]string // sessionKey -> container id
}

func newDockerRunner(cfg Config) *dockerRunner {
	return &dockerRunner{cfg: cfg, container: make(map[string]string)}
}

// dockerAvailable probes the daemon with a short-timeout CLI call rather
// than a socket dial, so it works whether Docker is reached via unix
// socket or a remote DOCKER_HOST.
func dockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

func (d *dockerRunner) ensureContainer(ctx context.Context, sessionKey string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.container[sessionKey]; ok {
		return id, nil
	}

	args := []string{"create", "-i"}
	args = append(args, d.baseArgs()...)
	args = append(args, "-v", fmt.Sprintf("%s:/workspace", d.cfg.WorkspaceRoot), "-w", "/workspace")
	args = append(args, d.cfg.Image, "sleep", "infinity")

	out, err := exec.CommandContext(ctx, "docker", args...).Output()
	if err != nil {
		return "", fmt.Errorf("sandbox: create container: %w", err)
	}
	id := strings.TrimSpace(string(out))

	if err := exec.CommandContext(ctx, "docker", "start", id).Run(); err != nil {
		return "", fmt.Errorf("sandbox: start container: %w", err)
	}

	d.container[sessionKey] = id
	return id, nil
}

// baseArgs builds the hardening flags shared by every container: no
// network unless explicitly enabled, a CPU/memory/pids cap, and the two
// privilege-reduction flags the original sandbox lacked (--cap-drop ALL,
// --security-opt no-new-privileges).
func (d *dockerRunner) baseArgs() []string {
	args := []string{}
	if !d.cfg.NetworkEnabled {
		args = append(args, "--network", "none")
	}
	if d.cfg.CPULimit > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(d.cfg.CPULimit, 'f', -1, 64))
	}
	if d.cfg.MemoryLimitMB > 0 {
		mem := fmt.Sprintf("%dm", d.cfg.MemoryLimitMB)
		args = append(args, "--memory", mem, "--memory-swap", mem)
	}
	args = append(args,
		"--pids-limit", "100",
		"--ulimit", "nofile=1024:1024",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
	)
	return args
}

func (d *dockerRunner) Run(ctx context.Context, sessionKey string, command []string) (*Result, error) {
	timeout := d.cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := d.ensureContainer(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	args := append([]string{"exec", id}, command...)
	cmd := exec.CommandContext(runCtx, "docker", args...)

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
	if runErr != nil {
		return nil, fmt.Errorf("sandbox: exec: %w", runErr)
	}
	return result, nil
}

func (d *dockerRunner) Close(sessionKey string) error {
	d.mu.Lock()
	id, ok := d.container[sessionKey]
	if ok {
		delete(d.container, sessionKey)
	}
	d.mu.Unlock()

	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "rm", "-f", id).Run()
}
