package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/supervisor"
)

var startCmd = &cobra.Command{
	Use:   "start <project>...",
	Short: "Start projects",
	Long: `Start one or more projects on the running server.

Projects are named by ID, by name or by a glob pattern over names:
  devboot start api
  devboot start 'web-*' worker`,
	Args: cobra.MinimumNArgs(1),
	RunE: lifecycleRunner("start", (*api.Client).Start),
}

var stopCmd = &cobra.Command{
	Use:   "stop <project>...",
	Short: "Stop projects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  lifecycleRunner("stop", (*api.Client).Stop),
}

var restartCmd = &cobra.Command{
	Use:   "restart <project>...",
	Short: "Restart projects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  lifecycleRunner("restart", (*api.Client).Restart),
}

var inputCmd = &cobra.Command{
	Use:   "input <project> <text>...",
	Short: "Send a line of input to a project's shell",
	Long: `Send a line of input to a running project. The remaining arguments are
joined with spaces and written to the shell followed by a newline.

Example:
  devboot input api rails db:migrate`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInput,
}

var interruptCmd = &cobra.Command{
	Use:   "interrupt <project>",
	Short: "Send Ctrl+C to a project's foreground command",
	Args:  cobra.ExactArgs(1),
	RunE:  runInterrupt,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(inputCmd)
	rootCmd.AddCommand(interruptCmd)
}

type lifecycleOp func(c *api.Client, ctx context.Context, id string) (supervisor.Status, error)

// lifecycleRunner applies op to every selected project. It keeps going
// after a failure and reports all of them at the end.
func lifecycleRunner(action string, op lifecycleOp) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := requireServer(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		views, err := client.Projects(cmd.Context())
		if err != nil {
			return err
		}
		selected, err := selectProjects(views, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		pal := newPalette(out)
		var failed []error
		for _, v := range selected {
			st, err := op(client, cmd.Context(), v.ID)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s failed: %v\n", v.Name, action, err)
				failed = append(failed, err)
				continue
			}
			fmt.Fprintf(out, "%s: %s\n", v.Name, pal.state(st.State))
		}
		if len(failed) > 0 {
			return errors.Wrapf(errors.Join(failed...), "%d of %d projects failed to %s", len(failed), len(selected), action)
		}
		return nil
	}
}

// remoteProject connects to the server and resolves ref.
func remoteProject(cmd *cobra.Command, ref string) (*api.Client, api.ProjectView, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, api.ProjectView{}, err
	}
	client, err := requireServer(cmd.Context(), cfg)
	if err != nil {
		return nil, api.ProjectView{}, err
	}
	views, err := client.Projects(cmd.Context())
	if err != nil {
		return nil, api.ProjectView{}, err
	}
	v, err := resolveProject(views, ref)
	if err != nil {
		return nil, api.ProjectView{}, err
	}
	return client, v, nil
}

func runInput(cmd *cobra.Command, args []string) error {
	client, v, err := remoteProject(cmd, args[0])
	if err != nil {
		return err
	}
	return client.SendInput(cmd.Context(), v.ID, strings.Join(args[1:], " "))
}

func runInterrupt(cmd *cobra.Command, args []string) error {
	client, v, err := remoteProject(cmd, args[0])
	if err != nil {
		return err
	}
	_, err = client.Interrupt(cmd.Context(), v.ID)
	return err
}
