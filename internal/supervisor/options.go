package supervisor

import (
	"context"
	"time"

	"github.com/Iron-Ham/devboot/internal/config"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/registry"
	"github.com/Iron-Ham/devboot/internal/shell"
)

// Options tune the restart policy and resource limits.
type Options struct {
	// MaxRestartAttempts is the crash count at which automatic restarts
	// stop and the project enters the Error state. Zero makes the first
	// crash final.
	MaxRestartAttempts int
	// RestartDelay is the wait between a crash and the relaunch.
	RestartDelay time.Duration
	// StopGracePeriod is how long a stop waits after SIGTERM before
	// killing the process group.
	StopGracePeriod time.Duration
	// RestartPause is the gap between stop and start in RestartProject.
	RestartPause time.Duration
	// LogBufferLines caps each project's log.
	LogBufferLines int
	// SubscriberBuffer is the default event channel size.
	SubscriberBuffer int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Supervisor)
}

// OptionsFromConfig maps the supervisor section of the config file.
func OptionsFromConfig(cfg config.SupervisorConfig) Options {
	return Options{
		MaxRestartAttempts: cfg.MaxRestartAttempts,
		RestartDelay:       cfg.RestartDelay,
		StopGracePeriod:    cfg.StopGracePeriod,
		RestartPause:       cfg.RestartPause,
		LogBufferLines:     cfg.LogBufferLines,
		SubscriberBuffer:   cfg.SubscriberBuffer,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxRestartAttempts < 0 {
		o.MaxRestartAttempts = 0
	}
	if o.LogBufferLines <= 0 {
		o.LogBufferLines = logbuffer.DefaultCapacity
	}
	if o.RestartDelay < 0 {
		o.RestartDelay = 0
	}
	if o.RestartPause < 0 {
		o.RestartPause = 0
	}
	return o
}

// ProjectStore is where project definitions live. *project.Store
// implements it.
type ProjectStore interface {
	List() []project.Project
	Get(id string) (project.Project, error)
	Add(p project.Project) (project.Project, error)
	Update(p project.Project) (project.Project, error)
	Delete(id string) error
}

// Launcher spawns the process for a project.
type Launcher interface {
	Launch(ctx context.Context, spec shell.Spec, onLine shell.LineFunc) (registry.Handle, error)
}

// ShellLauncher adapts a shell.Launcher to Launcher.
type ShellLauncher struct {
	*shell.Launcher
}

// NewShellLauncher wraps l.
func NewShellLauncher(l *shell.Launcher) ShellLauncher {
	return ShellLauncher{Launcher: l}
}

// Launch starts a shell session.
func (l ShellLauncher) Launch(ctx context.Context, spec shell.Spec, onLine shell.LineFunc) (registry.Handle, error) {
	s, err := l.Launcher.Launch(ctx, spec, onLine)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func specFor(p project.Project) shell.Spec {
	return shell.Spec{
		Dir:      p.Path,
		Commands: p.Commands,
		Env:      p.Env,
		FailFast: p.FailFast,
	}
}
