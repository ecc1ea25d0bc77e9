package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
)

var logsCmd = &cobra.Command{
	Use:   "logs <project>",
	Short: "Show a project's output",
	Long: `Show the captured output of a project.

Examples:
  # Show the last 50 lines
  devboot logs api

  # Show everything and keep printing new lines
  devboot logs api -n 0 -f

  # Save the log as CSV
  devboot logs api --export api.csv --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

var (
	logsTail   int
	logsFollow bool
	logsExport string
	logsFormat string
	logsClear  bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep printing new lines until interrupted")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "Write the log to a file ('-' for stdout)")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Export format (text, json, csv)")
	logsCmd.Flags().BoolVar(&logsClear, "clear", false, "Clear the log")
}

func runLogs(cmd *cobra.Command, args []string) error {
	if logsExport != "" && (logsFollow || logsClear) {
		return usageError("--export cannot be combined with --follow or --clear")
	}

	client, v, err := remoteProject(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if logsClear {
		if err := client.ClearLogs(cmd.Context(), v.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Cleared the log of %s\n", v.Name)
		return nil
	}

	if logsExport != "" {
		format, err := logbuffer.ParseFormat(logsFormat)
		if err != nil {
			return err
		}
		return exportLogs(cmd.Context(), out, logsExport, func(ctx context.Context, w io.Writer) error {
			return client.ExportLogs(ctx, v.ID, format, w)
		})
	}

	lines, err := client.Logs(cmd.Context(), v.ID, logsTail)
	if err != nil {
		return err
	}
	pal := newPalette(out)
	for _, l := range lines {
		fmt.Fprintln(out, pal.line(l))
	}
	if !logsFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = client.Events(ctx, v.ID, []string{event.TypeLogAppended}, func(p event.Payload) error {
		if p.Line != nil {
			fmt.Fprintln(out, pal.line(*p.Line))
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// exportLogs writes an export to dest, a file path or "-" for out.
func exportLogs(ctx context.Context, out io.Writer, dest string, export func(context.Context, io.Writer) error) error {
	if dest == "-" {
		return export(ctx, out)
	}

	f, err := os.Create(dest)
	if err != nil {
		return errors.NewIOError("failed to create export file", err).WithPath(dest)
	}
	if err := export(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewIOError("failed to write export file", err).WithPath(dest)
	}
	fmt.Fprintf(out, "Exported to %s\n", dest)
	return nil
}
