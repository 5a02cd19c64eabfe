package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mcpdock/pkg/logging"
)

// Kind selects how a child is launched.
type Kind string

const (
	// KindContainer runs the child as a container via the engine binary.
	KindContainer Kind = "container"
	// KindCommand spawns the child directly as a local command.
	KindCommand Kind = "command"
)

// GraceTimeout is how long teardown waits for a child to exit after its
// stdin is closed before force-terminating it.
const GraceTimeout = 5 * time.Second

// Spec describes the child to spawn.
type Spec struct {
	Kind Kind

	// Image is the container image reference (KindContainer only).
	Image string

	// Command and Args name the executable to run (KindCommand only).
	Command string
	Args    []string

	// Env is passed to the child. Values may contain template expressions
	// (see templates.go); they are rendered before spawning.
	Env map[string]string

	// Name is a stable label for diagnostics and the container name stem.
	Name string
}

// Process is a running child with usable pipes. The Handle is opaque to
// callers: the container name for container children, a process-group tag
// for command children.
type Process struct {
	Handle string
	Stdin  io.WriteCloser
	Stdout io.Reader

	kind   Kind
	engine string
	ctName string
	cmd    *exec.Cmd
}

// Launcher spawns children. It is stateless apart from the engine binary
// name and safe for concurrent use.
type Launcher struct {
	engine string
}

// New creates a launcher driving the given container engine binary
// (typically "podman").
func New(engine string) *Launcher {
	if engine == "" {
		engine = "podman"
	}
	return &Launcher{engine: engine}
}

// Spawn starts the child described by spec. When it returns without error
// the child is live; the caller owns the returned process and must call
// Teardown when done (including on any later activation failure).
func (l *Launcher) Spawn(ctx context.Context, spec Spec) (*Process, error) {
	env, err := renderEnv(spec.Env)
	if err != nil {
		return nil, fmt.Errorf("render environment for %s: %w", spec.Name, err)
	}

	switch spec.Kind {
	case KindContainer:
		return l.spawnContainer(ctx, spec, env)
	case KindCommand:
		return l.spawnCommand(spec, env)
	default:
		return nil, fmt.Errorf("unsupported launch kind %q for %s", spec.Kind, spec.Name)
	}
}

// spawnContainer runs the engine in interactive auto-remove mode with
// piped stdio. No volume mounts, no network remapping, no privileged mode.
func (l *Launcher) spawnContainer(ctx context.Context, spec Spec, env map[string]string) (*Process, error) {
	enginePath, err := exec.LookPath(l.engine)
	if err != nil {
		return nil, fmt.Errorf("container engine %q not found on PATH: %w", l.engine, err)
	}

	// Pull is idempotent; doing it before every first spawn keeps run
	// latency predictable for already-present images.
	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	pull := exec.CommandContext(pullCtx, enginePath, "pull", spec.Image)
	if out, err := pull.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pull image %s: %w: %s", spec.Image, err, strings.TrimSpace(string(out)))
	}

	ctName := containerName(spec.Name)
	args := []string{"run", "-i", "--rm", "--name", ctName}
	for _, k := range sortedKeys(env) {
		args = append(args, "-e", k+"="+env[k])
	}
	args = append(args, spec.Image)

	cmd := exec.Command(enginePath, args...)
	proc, err := startPiped(cmd, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("run image %s: %w", spec.Image, err)
	}

	proc.Handle = ctName
	proc.kind = KindContainer
	proc.engine = enginePath
	proc.ctName = ctName

	logging.Info("Launcher", "Started container %s for %s (image %s)", ctName, spec.Name, spec.Image)
	return proc, nil
}

// spawnCommand runs the command directly with the process environment
// overlaid by the rendered entry environment.
func (l *Launcher) spawnCommand(spec Spec, env map[string]string) (*Process, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("empty command for %s", spec.Name)
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = os.Environ()
	for _, k := range sortedKeys(env) {
		cmd.Env = append(cmd.Env, k+"="+env[k])
	}

	proc, err := startPiped(cmd, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("spawn command %s: %w", spec.Command, err)
	}

	proc.Handle = fmt.Sprintf("pg-%d", cmd.Process.Pid)
	proc.kind = KindCommand

	logging.Info("Launcher", "Started command %s for %s (pid %d)", spec.Command, spec.Name, cmd.Process.Pid)
	return proc, nil
}

// startPiped wires stdio pipes, starts the command and attaches the
// stderr drain.
func startPiped(cmd *exec.Cmd, name string) (*Process, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	go drainStderr(name, stderr)

	return &Process{
		Stdin:  stdin,
		Stdout: stdout,
		cmd:    cmd,
	}, nil
}

// drainStderr forwards the child's stderr into the log stream at DEBUG,
// line by line, until the pipe closes.
func drainStderr(name string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		logging.Debug("Launcher", "[%s stderr] %s", name, scanner.Text())
	}
}

// Teardown stops the child: close stdin, wait up to GraceTimeout for a
// clean exit, then force-terminate. Safe to call more than once; later
// calls find the process already reaped and return quickly.
func (p *Process) Teardown() {
	if p.Stdin != nil {
		_ = p.Stdin.Close()
	}
	if p.cmd == nil {
		return
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logging.Debug("Launcher", "Child %s exited: %v", p.Handle, err)
		}
		return
	case <-time.After(GraceTimeout):
	}

	logging.Warn("Launcher", "Child %s did not exit within %s, force-terminating", p.Handle, GraceTimeout)

	if p.kind == KindContainer && p.engine != "" {
		// Best-effort engine stop; auto-remove reclaims the record.
		if out, err := exec.Command(p.engine, "kill", p.ctName).CombinedOutput(); err != nil {
			logging.Debug("Launcher", "Engine kill %s: %v: %s", p.ctName, err, strings.TrimSpace(string(out)))
		}
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-done
}

// containerName derives a unique container name from the entry name.
func containerName(name string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, name)
	return fmt.Sprintf("mcpdock-%s-%s", strings.Trim(stem, "-"), uuid.NewString()[:8])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
