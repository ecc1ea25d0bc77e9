package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/registry"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects"},
	Short:   "Manage project definitions",
	Long: `Add, list, show, update and remove projects.

When a devboot server is running the changes go through it, so they take
effect immediately. Otherwise projects.json is edited directly.`,
}

var projectAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Add a project",
	Long: `Add a project rooted at path (default: the current directory).

Examples:
  devboot project add --cmd "npm install" --cmd "npm run dev"
  devboot project add ~/src/api --name api --cmd "go run ./cmd/api" --env PORT=8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	Args:    cobra.NoArgs,
	RunE:    runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show a project's definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <project>",
	Short: "Change a project's definition",
	Long: `Change the fields given by flags. --cmd replaces the whole command list
and --env adds or replaces variables (use --unset-env to remove one).

A running project keeps its current session until it is restarted.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectUpdate,
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <project>...",
	Aliases: []string{"rm"},
	Short:   "Remove projects, stopping them first",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runProjectRemove,
}

// projectFlags holds the definition flags shared by add and update.
type projectFlags struct {
	name           string
	path           string
	commands       []string
	env            []string
	unsetEnv       []string
	autoStart      bool
	restartOnCrash bool
	enabled        bool
	failFast       bool
}

var (
	addFlags    projectFlags
	updateFlags projectFlags
	projectJSON bool
)

func (f *projectFlags) register(fs *pflag.FlagSet, update bool) {
	fs.StringVar(&f.name, "name", "", "display name (default: directory name)")
	fs.StringArrayVar(&f.commands, "cmd", nil, "shell command to run, in order (repeatable)")
	fs.StringArrayVarP(&f.env, "env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	fs.BoolVar(&f.autoStart, "auto-start", true, "start with 'devboot serve --autostart'")
	fs.BoolVar(&f.restartOnCrash, "restart-on-crash", true, "restart automatically after a crash")
	fs.BoolVar(&f.enabled, "enabled", true, "include in auto start")
	fs.BoolVar(&f.failFast, "fail-fast", false, "end the session at the first failing command")
	if update {
		fs.StringVar(&f.path, "path", "", "project directory")
		fs.StringArrayVar(&f.unsetEnv, "unset-env", nil, "environment variable to remove (repeatable)")
	}
}

func init() {
	addFlags.register(projectAddCmd.Flags(), false)
	updateFlags.register(projectUpdateCmd.Flags(), true)
	projectListCmd.Flags().BoolVar(&projectJSON, "json", false, "print JSON")
	projectShowCmd.Flags().BoolVar(&projectJSON, "json", false, "print JSON")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectUpdateCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

// parseEnv turns KEY=VALUE pairs into a map.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.NewValidationError("expected KEY=VALUE").WithField("env").WithValue(pair)
		}
		env[key] = value
	}
	return env, nil
}

// absPath resolves path against the working directory, defaulting to it.
func absPath(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", path)
	}
	return abs, nil
}

// withBackend loads config and the project backend for a command.
func withBackend(cmd *cobra.Command, fn func(b projectBackend, logger *logging.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	b, err := openProjects(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	return fn(b, logger)
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	env, err := parseEnv(addFlags.env)
	if err != nil {
		return err
	}

	name := addFlags.name
	if name == "" {
		name = filepath.Base(abs)
	}
	p := project.New(name, abs, addFlags.commands)
	p.Env = env
	p.AutoStart = addFlags.autoStart
	p.RestartOnCrash = addFlags.restartOnCrash
	p.Enabled = addFlags.enabled
	p.FailFast = addFlags.failFast

	return withBackend(cmd, func(b projectBackend, _ *logging.Logger) error {
		added, err := b.Add(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", added.Name, added.ID)
		return nil
	})
}

func runProjectList(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(b projectBackend, _ *logging.Logger) error {
		views, err := b.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if projectJSON {
			return writeJSON(out, views)
		}
		if len(views) == 0 {
			fmt.Fprintln(out, "No projects. Add one with 'devboot project add'.")
			return nil
		}
		for _, v := range views {
			fmt.Fprintf(out, "%-20s %s  %s\n", v.Name, v.ID, v.Path)
		}
		return nil
	})
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(b projectBackend, _ *logging.Logger) error {
		views, err := b.List(cmd.Context())
		if err != nil {
			return err
		}
		v, err := resolveProject(views, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if projectJSON {
			return writeJSON(out, v)
		}
		printProject(out, newPalette(out), v, b.Remote())
		return nil
	})
}

func printProject(w io.Writer, p palette, v api.ProjectView, live bool) {
	fmt.Fprintf(w, "Name:             %s\n", v.Name)
	fmt.Fprintf(w, "ID:               %s\n", v.ID)
	fmt.Fprintf(w, "Path:             %s\n", v.Path)
	fmt.Fprintf(w, "Auto start:       %v\n", v.AutoStart)
	fmt.Fprintf(w, "Restart on crash: %v\n", v.RestartOnCrash)
	fmt.Fprintf(w, "Enabled:          %v\n", v.Enabled)
	if v.FailFast {
		fmt.Fprintf(w, "Fail fast:        true\n")
	}
	if live {
		fmt.Fprintf(w, "State:            %s\n", p.state(v.Status.State))
	}
	fmt.Fprintln(w, "Commands:")
	for i, c := range v.Commands {
		fmt.Fprintf(w, "  %d. %s\n", i+1, c)
	}
	if len(v.Env) > 0 {
		fmt.Fprintln(w, "Environment:")
		for _, k := range slices.Sorted(maps.Keys(v.Env)) {
			fmt.Fprintf(w, "  %s=%s\n", k, v.Env[k])
		}
	}
}

func runProjectUpdate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	return withBackend(cmd, func(b projectBackend, _ *logging.Logger) error {
		views, err := b.List(cmd.Context())
		if err != nil {
			return err
		}
		v, err := resolveProject(views, args[0])
		if err != nil {
			return err
		}
		p, err := applyUpdate(v.Project, flags, updateFlags)
		if err != nil {
			return err
		}
		updated, err := b.Update(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", updated.Name)
		if b.Remote() && updated.Status.State != registry.StateStopped {
			fmt.Fprintln(cmd.OutOrStdout(), "Restart the project to apply the changes.")
		}
		return nil
	})
}

// applyUpdate copies the flags the user set onto p.
func applyUpdate(p project.Project, fs *pflag.FlagSet, f projectFlags) (project.Project, error) {
	p = p.Clone()
	if fs.Changed("name") {
		p.Name = f.name
	}
	if fs.Changed("path") {
		abs, err := absPath(f.path)
		if err != nil {
			return p, err
		}
		p.Path = abs
	}
	if fs.Changed("cmd") {
		p.Commands = f.commands
	}
	if fs.Changed("env") {
		env, err := parseEnv(f.env)
		if err != nil {
			return p, err
		}
		if p.Env == nil {
			p.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			p.Env[k] = v
		}
	}
	for _, k := range f.unsetEnv {
		delete(p.Env, k)
	}
	if fs.Changed("auto-start") {
		p.AutoStart = f.autoStart
	}
	if fs.Changed("restart-on-crash") {
		p.RestartOnCrash = f.restartOnCrash
	}
	if fs.Changed("enabled") {
		p.Enabled = f.enabled
	}
	if fs.Changed("fail-fast") {
		p.FailFast = f.failFast
	}
	return p, nil
}

func runProjectRemove(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(b projectBackend, _ *logging.Logger) error {
		views, err := b.List(cmd.Context())
		if err != nil {
			return err
		}
		selected, err := selectProjects(views, args)
		if err != nil {
			return err
		}
		for _, v := range selected {
			if err := b.Remove(cmd.Context(), v.ID); err != nil {
				return errors.Wrapf(err, "failed to remove %s", v.Name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", v.Name)
		}
		return nil
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// usageError reports a bad flag combination.
func usageError(format string, args ...any) error {
	return errors.NewValidationError(fmt.Sprintf(format, args...))
}
