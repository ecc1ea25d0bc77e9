package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive dashboard",
	Long: `Open a terminal dashboard that supervises the projects itself: a project
list with live states, the selected project's log and an input line wired to
its shell. Quitting stops every project.

The dashboard cannot run next to 'devboot serve'; stop the server first.`,
	Args: cobra.NoArgs,
	RunE: runUI,
}

var uiAutostart bool

func init() {
	uiCmd.Flags().BoolVar(&uiAutostart, "autostart", false, "start auto_start projects")
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if connect(cmd.Context(), cfg) != nil {
		return fmt.Errorf("a devboot server is running on %s; the dashboard runs its own supervisor", cfg.API.Listen)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	sup := newSupervisor(cfg, store, logger)
	if journal := attachHistory(cfg, sup, logger); journal != nil {
		defer func() { _ = journal.Close() }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if uiAutostart {
		if err := sup.StartAutoStart(ctx); err != nil {
			logger.Warn("some projects failed to auto start", "error", err)
		}
	}
	go sup.RunReconciler(ctx, cfg.Supervisor.ReconcileInterval)

	runErr := tui.New(sup).Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sup.Close(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return runErr
}
