// Package config provides CLI commands for managing DevBoot configuration.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/devboot/internal/config"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify DevBoot configuration",
	Long: `View or modify DevBoot configuration.

Use 'config show' to display the effective configuration, 'config init' to
create a commented config file and 'config set' to change one value.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  devboot config set supervisor.max_restart_attempts 10
  devboot config set supervisor.restart_delay 5s
  devboot config set api.listen 127.0.0.1:9000

Run 'devboot config show' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/devboot/config.yaml with all available options.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Examples:
  devboot config reset                          # Reset all to defaults
  devboot config reset supervisor.restart_delay # Reset one key`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
	kindDuration
	kindLevel
)

// setting describes one configuration key.
type setting struct {
	key     string
	kind    valueKind
	comment string
	value   func(c *appconfig.Config) any
}

// settings lists every key in file order.
var settings = []setting{
	{"supervisor.shell", kindString, "Interpreter each project's commands are fed to",
		func(c *appconfig.Config) any { return c.Supervisor.Shell }},
	{"supervisor.max_restart_attempts", kindInt, "Consecutive crashes tolerated before a project is left in Error",
		func(c *appconfig.Config) any { return c.Supervisor.MaxRestartAttempts }},
	{"supervisor.restart_delay", kindDuration, "Wait between a crash and the automatic relaunch",
		func(c *appconfig.Config) any { return c.Supervisor.RestartDelay }},
	{"supervisor.stop_grace_period", kindDuration, "How long a stop waits after SIGTERM before SIGKILL",
		func(c *appconfig.Config) any { return c.Supervisor.StopGracePeriod }},
	{"supervisor.restart_pause", kindDuration, "Gap between stop and start on an explicit restart",
		func(c *appconfig.Config) any { return c.Supervisor.RestartPause }},
	{"supervisor.log_buffer_lines", kindInt, "Lines of output kept per project",
		func(c *appconfig.Config) any { return c.Supervisor.LogBufferLines }},
	{"supervisor.subscriber_buffer", kindInt, "Events buffered per subscriber before it starts missing some",
		func(c *appconfig.Config) any { return c.Supervisor.SubscriberBuffer }},
	{"supervisor.reconcile_interval", kindDuration, "How often live processes are re-checked (0 disables)",
		func(c *appconfig.Config) any { return c.Supervisor.ReconcileInterval }},
	{"logging.enabled", kindBool, "Write the supervisor log to ~/.config/devboot/logs/devboot.log",
		func(c *appconfig.Config) any { return c.Logging.Enabled }},
	{"logging.level", kindLevel, "debug, info, warn or error",
		func(c *appconfig.Config) any { return c.Logging.Level }},
	{"logging.max_size_mb", kindInt, "Rotate the log at this size",
		func(c *appconfig.Config) any { return c.Logging.MaxSizeMB }},
	{"logging.max_backups", kindInt, "Rotated log files to keep",
		func(c *appconfig.Config) any { return c.Logging.MaxBackups }},
	{"api.listen", kindString, "Address 'devboot serve' listens on",
		func(c *appconfig.Config) any { return c.API.Listen }},
	{"history.enabled", kindBool, "Record state changes and crashes to history.db",
		func(c *appconfig.Config) any { return c.History.Enabled }},
	{"paths.projects_file", kindString, "Project list (empty: projects.json in the config directory)",
		func(c *appconfig.Config) any { return c.Paths.ProjectsFile }},
	{"paths.history_db", kindString, "Event journal (empty: history.db in the config directory)",
		func(c *appconfig.Config) any { return c.Paths.HistoryDB }},
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// parseValue converts a command-line value to the key's type.
func parseValue(s setting, value string) (any, error) {
	switch s.kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", s.key)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", s.key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", s.key)
		}
		return n, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 2s or 500ms", s.key)
		}
		return d.String(), nil
	case kindLevel:
		level := strings.ToLower(value)
		for _, valid := range appconfig.ValidLogLevels() {
			if level == valid {
				return level, nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
			s.key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
	}
	return value, nil
}

// formatValue renders a value the way it is written in YAML.
func formatValue(v any) string {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return fmt.Sprint(v)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := appconfig.Get()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n\n")
	}

	section := ""
	for _, s := range settings {
		group, name, _ := strings.Cut(s.key, ".")
		if group != section {
			fmt.Fprintf(out, "%s:\n", group)
			section = group
		}
		fmt.Fprintf(out, "  %s: %s\n", name, formatValue(s.value(cfg)))
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	s, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'devboot config show' to see valid keys", key)
	}
	typed, err := parseValue(s, value)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	viper.Set(key, typed)

	// Reject combinations the validator refuses before writing anything.
	if _, err := appconfig.Load(); err != nil {
		return fmt.Errorf("refusing to save invalid configuration: %w", err)
	}

	configFile := targetFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typed)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

// targetFile is the file in use, or the default location.
func targetFile() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return appconfig.ConfigFile()
}

// defaultDocument builds the commented YAML written by 'config init'.
func defaultDocument() *yaml.Node {
	defaults := appconfig.Default()
	root := &yaml.Node{
		Kind:        yaml.MappingNode,
		HeadComment: "DevBoot configuration\nEvery key can also be set with an environment variable, e.g. DEVBOOT_API_LISTEN.",
	}

	sections := map[string]*yaml.Node{}
	for _, s := range settings {
		group, name, _ := strings.Cut(s.key, ".")
		section, ok := sections[group]
		if !ok {
			section = &yaml.Node{Kind: yaml.MappingNode}
			sections[group] = section
			root.Content = append(root.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: group},
				section)
		}

		value := &yaml.Node{Kind: yaml.ScalarNode, Value: formatValue(s.value(defaults))}
		if s.kind == kindString {
			value.Style = yaml.DoubleQuotedStyle
		}
		section.Content = append(section.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name, HeadComment: s.comment},
			value)
	}
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'devboot config set' to modify values", configFile)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := yaml.Marshal(defaultDocument())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configFile, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	cfg := appconfig.Get()
	fmt.Fprintf(out, "Projects:      %s\n", cfg.Paths.ResolveProjectsFile())
	fmt.Fprintf(out, "History:       %s\n", cfg.Paths.ResolveHistoryDB())
	fmt.Fprintf(out, "Logs:          %s\n", appconfig.LogDir())
	fmt.Fprintln(out, "\nEnvironment variables: DEVBOOT_* (e.g., DEVBOOT_SUPERVISOR_RESTART_DELAY)")
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file exists, if not create it
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	defaults := appconfig.Default()

	var reset []setting
	if len(args) == 1 {
		s, ok := lookupSetting(args[0])
		if !ok {
			return fmt.Errorf("unknown configuration key: %s", args[0])
		}
		reset = []setting{s}
	} else {
		reset = settings
	}

	for _, s := range reset {
		v := s.value(defaults)
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		viper.Set(s.key, v)
	}

	configFile := targetFile()
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if len(args) == 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to default\n", args[0])
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Reset all configuration to defaults")
	}
	return nil
}
