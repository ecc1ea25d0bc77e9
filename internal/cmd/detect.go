package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/detect"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/project"
)

var detectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "Suggest commands for a project directory",
	Long: `Inspect a directory (default: the current one) for marker files such as
package.json, requirements.txt, Cargo.toml, go.mod or docker-compose.yml and
suggest commands to run it.

With --add the directory is added as a project running the recommended
commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

var (
	detectAdd  bool
	detectName string
)

func init() {
	detectCmd.Flags().BoolVar(&detectAdd, "add", false, "add the directory as a project")
	detectCmd.Flags().StringVar(&detectName, "name", "", "project name for --add (default: directory name)")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	res, err := detect.Detect(abs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printDetection(cmd, res)
	if !detectAdd {
		return nil
	}

	commands := res.Commands()
	if len(commands) == 0 {
		return usageError("nothing to run was detected in %s; use 'devboot project add --cmd'", res.Path)
	}
	name := detectName
	if name == "" {
		name = res.Name
	}
	return withBackend(cmd, func(b projectBackend, _ *logging.Logger) error {
		added, err := b.Add(cmd.Context(), project.New(name, res.Path, commands))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nAdded %s (%s)\n", added.Name, added.ID)
		return nil
	})
}

func printDetection(cmd *cobra.Command, res detect.Result) {
	out := cmd.OutOrStdout()
	pal := newPalette(out)

	fmt.Fprintf(out, "%s: %s\n", res.Name, res.Type)
	if len(res.Suggestions) == 0 {
		fmt.Fprintln(out, pal.muted("No suggestions."))
		return
	}
	for _, s := range res.Suggestions {
		marker := " "
		if s.Recommended {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %-40s %s\n", marker, s.Command, pal.muted(s.Description))
	}
}
