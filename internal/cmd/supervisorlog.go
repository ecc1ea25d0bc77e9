package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/config"
	"github.com/Iron-Ham/devboot/internal/logging"
)

var supervisorLogCmd = &cobra.Command{
	Use:   "supervisor-log",
	Short: "View DevBoot's own log",
	Long: `View and filter the supervisor's structured log (launches, state changes,
stop escalations, dropped subscribers). Project output is shown by
'devboot logs' instead.

Examples:
  # Last 50 entries
  devboot supervisor-log

  # Warnings and errors from the last hour
  devboot supervisor-log --level warn --since 1h

  # Everything about one project
  devboot supervisor-log --project 3f2a... -n 0`,
	Args: cobra.NoArgs,
	RunE: runSupervisorLog,
}

var (
	slogTail      int
	slogLevel     string
	slogSince     time.Duration
	slogProject   string
	slogComponent string
	slogGrep      string
)

func init() {
	rootCmd.AddCommand(supervisorLogCmd)

	supervisorLogCmd.Flags().IntVarP(&slogTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	supervisorLogCmd.Flags().StringVar(&slogLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	supervisorLogCmd.Flags().DurationVar(&slogSince, "since", 0, "Show entries newer than this (e.g., 1h, 30m)")
	supervisorLogCmd.Flags().StringVar(&slogProject, "project", "", "Filter by project ID")
	supervisorLogCmd.Flags().StringVar(&slogComponent, "component", "", "Filter by component (supervisor, shell, store, api, history)")
	supervisorLogCmd.Flags().StringVar(&slogGrep, "grep", "", "Filter by message substring")
}

func runSupervisorLog(cmd *cobra.Command, args []string) error {
	path := filepath.Join(config.LogDir(), logging.FileName)
	entries, err := logging.ReadEntries(path)
	if err != nil {
		return err
	}

	filter := logging.Filter{
		Level:     slogLevel,
		ProjectID: slogProject,
		Component: slogComponent,
		Contains:  slogGrep,
	}
	if slogSince > 0 {
		filter.Since = time.Now().Add(-slogSince)
	}
	entries = logging.FilterEntries(entries, filter)
	if slogTail > 0 && len(entries) > slogTail {
		entries = entries[len(entries)-slogTail:]
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No log entries found.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(out, e.String())
	}
	return nil
}
