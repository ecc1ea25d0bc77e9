package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/config"
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/history"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/registry"
)

var historyCmd = &cobra.Command{
	Use:   "history <project>",
	Short: "Show a project's recent state changes and crashes",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultLimit, "Number of records to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return usageError("history is disabled (history.enabled is false)")
	}

	var records []history.Record
	if client := connect(cmd.Context(), cfg); client != nil {
		views, err := client.Projects(cmd.Context())
		if err != nil {
			return err
		}
		v, err := resolveProject(views, args[0])
		if err != nil {
			return err
		}
		if records, err = client.History(cmd.Context(), v.ID, historyLimit); err != nil {
			return err
		}
	} else {
		if records, err = localHistory(cmd.Context(), cfg, args[0], historyLimit); err != nil {
			return err
		}
	}

	printHistory(cmd.OutOrStdout(), records)
	return nil
}

// localHistory reads the journal file directly when no server is running.
func localHistory(ctx context.Context, cfg *config.Config, ref string, limit int) ([]history.Record, error) {
	store, err := openStore(cfg, nil)
	if err != nil {
		return nil, err
	}
	p, err := store.Resolve(ref)
	if err != nil {
		return nil, err
	}

	path := cfg.Paths.ResolveHistoryDB()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	journal, err := history.Open(path, logging.NopLogger())
	if err != nil {
		return nil, err
	}
	defer func() { _ = journal.Close() }()
	return journal.Recent(ctx, p.ID, limit)
}

func printHistory(w io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No history.")
		return
	}
	pal := newPalette(w)
	for _, r := range records {
		ts := r.At.Local().Format("2006-01-02 15:04:05")
		switch r.Type {
		case event.TypeCrashed:
			exit := "?"
			if r.ExitCode != nil {
				exit = fmt.Sprint(*r.ExitCode)
			}
			next := "giving up"
			if r.WillRestart {
				next = "restarting"
			}
			fmt.Fprintf(w, "%s  %s with exit code %s, attempt %d, %s\n", ts, pal.fg("#F87171", "Crashed"), exit, r.RestartCount, next)
		default:
			fmt.Fprintf(w, "%s  %s\n", ts, pal.state(registry.ParseState(r.State)))
		}
	}
}
