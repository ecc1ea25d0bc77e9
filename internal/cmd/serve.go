package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/project"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor and its HTTP API",
	Long: `Run the supervisor in the foreground and serve the control API on
api.listen (default 127.0.0.1:7777). The other commands talk to it.

Every project starts Stopped. --autostart starts the projects marked
auto_start and enabled. Edits to projects.json are picked up while running.
On SIGINT or SIGTERM every project is stopped before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAutostart bool

func init() {
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "start auto_start projects")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	if connect(cmd.Context(), cfg) != nil {
		return fmt.Errorf("a devboot server is already running on %s", cfg.API.Listen)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	sup := newSupervisor(cfg, store, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []api.Option{api.WithLogger(logger)}
	if journal := attachHistory(cfg, sup, logger); journal != nil {
		defer func() { _ = journal.Close() }()
		opts = append(opts, api.WithHistory(journal))
	}

	if serveAutostart {
		if err := sup.StartAutoStart(ctx); err != nil {
			logger.Warn("some projects failed to auto start", "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		sup.RunReconciler(ctx, cfg.Supervisor.ReconcileInterval)
	})
	wg.Go(func() {
		err := store.Watch(ctx, project.DefaultWatchDebounce, func() {
			logger.Info("projects file changed on disk")
			sup.SyncProjects(ctx)
		})
		if err != nil {
			logger.Warn("not watching projects file", "error", err)
		}
	})

	server := api.NewServer(sup, opts...)
	serveErr := server.ListenAndServe(ctx, cfg.API.Listen, func(addr net.Addr) {
		fmt.Fprintf(cmd.OutOrStdout(), "DevBoot serving on http://%s (%d projects)\n", addr, len(store.List()))
	})

	stop()
	wg.Wait()

	fmt.Fprintln(cmd.OutOrStdout(), "Stopping all projects...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sup.Close(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
