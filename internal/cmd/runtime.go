package cmd

import (
	"context"
	"os"
	"time"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/config"
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/history"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/shell"
	"github.com/Iron-Ham/devboot/internal/supervisor"
)

const (
	// pingTimeout bounds the check for a running server.
	pingTimeout = 300 * time.Millisecond
	// shutdownTimeout bounds stopping every project on exit.
	shutdownTimeout = 30 * time.Second
)

// errServerNotRunning is returned by commands that need `devboot serve`.
var errServerNotRunning = errors.New("devboot server is not running (start it with 'devboot serve')")

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// newLogger opens the rotating supervisor log, or a stderr logger for
// warnings when file logging is disabled.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewWithWriter(os.Stderr, logging.LevelWarn), nil
	}
	return logging.NewLogger(config.LogDir(), cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

func openStore(cfg *config.Config, logger *logging.Logger) (*project.Store, error) {
	return project.Open(cfg.Paths.ResolveProjectsFile(), logger)
}

func newSupervisor(cfg *config.Config, store *project.Store, logger *logging.Logger) *supervisor.Supervisor {
	launcher := supervisor.NewShellLauncher(shell.NewLauncher(cfg.Supervisor.Shell, logger))
	return supervisor.New(store, launcher, supervisor.OptionsFromConfig(cfg.Supervisor), logger)
}

// connect returns a client for the configured server, or nil when nothing
// answers on api.listen.
func connect(ctx context.Context, cfg *config.Config) *api.Client {
	client := api.NewClient(cfg.API.Listen)
	if err := client.Ping(ctx, pingTimeout); err != nil {
		return nil
	}
	return client
}

func requireServer(ctx context.Context, cfg *config.Config) (*api.Client, error) {
	client := connect(ctx, cfg)
	if client == nil {
		return nil, errServerNotRunning
	}
	return client, nil
}

// attachHistory opens the event journal and wires it to sup: status and
// crash events are recorded and a deleted project's rows are purged. It
// returns nil when history is disabled or the database cannot be opened;
// the supervisor runs without a journal in that case.
func attachHistory(cfg *config.Config, sup *supervisor.Supervisor, logger *logging.Logger) *history.Journal {
	if !cfg.History.Enabled {
		return nil
	}
	journal, err := history.Open(cfg.Paths.ResolveHistoryDB(), logger)
	if err != nil {
		logger.Warn("event journal unavailable", "error", err)
		return nil
	}
	journal.Attach(sup.Bus())
	sup.OnDelete(func(id string) {
		if _, err := journal.Purge(context.Background(), id); err != nil {
			logger.Warn("failed to purge journal", "project_id", id, "error", err)
		}
	})
	return journal
}
