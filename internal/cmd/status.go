package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status [project]...",
	Short: "Show project states",
	Long: `Show the state of every project, or of the projects matched by the
arguments (IDs, names or glob patterns).

Without a running server every project is reported as Stopped.`,
	RunE: runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(b projectBackend, _ *logging.Logger) error {
		views, err := b.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) > 0 {
			if views, err = selectProjects(views, args); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			if views == nil {
				views = []api.ProjectView{}
			}
			return writeJSON(out, views)
		}
		if len(views) == 0 {
			fmt.Fprintln(out, "No projects. Add one with 'devboot project add'.")
			return nil
		}

		pal := newPalette(out)
		fmt.Fprintln(out, renderStatusTable(pal, views, time.Now()))
		if !b.Remote() {
			fmt.Fprintln(out, pal.muted("\nServer not running; start it with 'devboot serve'."))
		}
		return nil
	})
}
