package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/logging"
)

// DefaultShell is used when a Launcher is created without one.
const DefaultShell = "/bin/sh"

// interruptTrap keeps the shell alive when its process group receives
// SIGINT; only the foreground command is interrupted.
const interruptTrap = "trap : INT"

// Spec describes a session to launch.
type Spec struct {
	// Dir is the working directory. It must exist.
	Dir string
	// Commands are written to the shell one per line, in order.
	Commands []string
	// Env overlays the parent environment and DefaultEnv.
	Env map[string]string
	// FailFast puts the shell in "set -e" mode so the first failing
	// command ends the session.
	FailFast bool
}

// LineFunc receives every line read from a session's output. It is called
// concurrently from the stdout and stderr readers.
type LineFunc func(stream logbuffer.Stream, text string)

// Launcher spawns shell sessions.
type Launcher struct {
	shell  string
	logger *logging.Logger

	// killWait bounds how long Terminate waits after SIGKILL, and how long
	// a session waits for its readers once the process has been reaped.
	killWait time.Duration
}

// NewLauncher creates a launcher for the given shell. An empty shell means
// DefaultShell; a nil logger discards.
func NewLauncher(shell string, logger *logging.Logger) *Launcher {
	if shell == "" {
		shell = DefaultShell
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Launcher{
		shell:    shell,
		logger:   logger.WithComponent("shell"),
		killWait: 2 * time.Second,
	}
}

// Shell returns the configured shell.
func (l *Launcher) Shell() string {
	return l.shell
}

// Script returns the lines written to the shell's stdin for spec.
func Script(spec Spec) []string {
	lines := make([]string, 0, len(spec.Commands)+2)
	lines = append(lines, interruptTrap)
	if spec.FailFast {
		lines = append(lines, "set -e")
	}
	for _, c := range spec.Commands {
		if strings.TrimSpace(c) == "" {
			continue
		}
		lines = append(lines, c)
	}
	return lines
}

// Launch spawns a session for spec. Output lines are delivered to onLine
// until the session ends. ctx only bounds the launch itself; cancelling it
// later does not affect the running session.
func (l *Launcher) Launch(ctx context.Context, spec Spec, onLine LineFunc) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewLaunchError("launch cancelled", err).WithPath(spec.Dir)
	}

	shellPath, err := exec.LookPath(l.shell)
	if err != nil {
		return nil, errors.NewLaunchError("shell not found", err).WithShell(l.shell)
	}

	info, err := os.Stat(spec.Dir)
	if err != nil {
		return nil, errors.NewLaunchError("project path is not accessible", err).WithPath(spec.Dir)
	}
	if !info.IsDir() {
		return nil, errors.NewLaunchError("project path is not a directory", nil).WithPath(spec.Dir)
	}

	if onLine == nil {
		onLine = func(logbuffer.Stream, string) {}
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, errors.NewLaunchError("failed to create stdin pipe", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW)
		return nil, errors.NewLaunchError("failed to create stdout pipe", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		return nil, errors.NewLaunchError("failed to create stderr pipe", err)
	}

	cmd := exec.Command(shellPath, "-s")
	cmd.Dir = spec.Dir
	cmd.Env = BuildEnv(os.Environ(), spec.Env)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW, stderrR, stderrW)
		return nil, errors.NewLaunchError("failed to spawn shell", err).
			WithPath(spec.Dir).
			WithShell(shellPath)
	}

	// The child holds its own copies; the parent keeps only its ends.
	closeAll(stdinR, stdoutW, stderrW)

	s := newSession(cmd, stdinW, stdoutR, stderrR, l.killWait, l.logger)
	s.start(onLine)

	for _, line := range Script(spec) {
		if err := s.WriteLine(line); err != nil {
			_ = s.Terminate(0)
			return nil, errors.NewLaunchError(fmt.Sprintf("failed to send command %q", line), err).
				WithPath(spec.Dir).
				WithShell(shellPath)
		}
	}

	l.logger.Debug("session launched",
		"pid", s.PID(),
		"dir", spec.Dir,
		"commands", len(spec.Commands),
		"fail_fast", spec.FailFast)
	return s, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
