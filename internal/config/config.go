package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the complete DevBoot configuration
type Config struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	API        APIConfig        `mapstructure:"api"`
	History    HistoryConfig    `mapstructure:"history"`
	Paths      PathsConfig      `mapstructure:"paths"`
}

// SupervisorConfig controls process launching and the restart policy
type SupervisorConfig struct {
	// Shell is the interpreter each project's commands are fed to (default: /bin/sh)
	Shell string `mapstructure:"shell"`
	// MaxRestartAttempts is how many consecutive crashes are tolerated before
	// a project is left in the error state (default: 5)
	MaxRestartAttempts int `mapstructure:"max_restart_attempts"`
	// RestartDelay is the wait between a crash and the automatic relaunch (default: 2s)
	RestartDelay time.Duration `mapstructure:"restart_delay"`
	// StopGracePeriod is how long a stop waits after SIGTERM before SIGKILL (default: 3s)
	StopGracePeriod time.Duration `mapstructure:"stop_grace_period"`
	// RestartPause is the gap between stop and start on an explicit restart (default: 500ms)
	RestartPause time.Duration `mapstructure:"restart_pause"`
	// LogBufferLines caps each project's in-memory log (default: 1000)
	LogBufferLines int `mapstructure:"log_buffer_lines"`
	// SubscriberBuffer is the channel size given to each event subscriber (default: 256)
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
	// ReconcileInterval is how often live entries are checked against their
	// processes as a fallback to exit notifications (default: 5s, 0 = disabled)
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// LoggingConfig controls the supervisor's own log
type LoggingConfig struct {
	// Enabled turns the file log on; when false only warnings reach stderr
	Enabled bool `mapstructure:"enabled"`
	// Level is one of debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
	// MaxSizeMB rotates devboot.log at this size (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// APIConfig controls the HTTP control surface of `devboot serve`
type APIConfig struct {
	// Listen is the address the API binds to (default: 127.0.0.1:7777)
	Listen string `mapstructure:"listen"`
}

// HistoryConfig controls the event journal
type HistoryConfig struct {
	// Enabled records status and crash events to SQLite (default: true)
	Enabled bool `mapstructure:"enabled"`
}

// PathsConfig overrides where state files live
type PathsConfig struct {
	// ProjectsFile is the project list; empty means <config dir>/projects.json
	ProjectsFile string `mapstructure:"projects_file"`
	// HistoryDB is the journal database; empty means <config dir>/history.db
	HistoryDB string `mapstructure:"history_db"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			Shell:              "/bin/sh",
			MaxRestartAttempts: 5,
			RestartDelay:       2 * time.Second,
			StopGracePeriod:    3 * time.Second,
			RestartPause:       500 * time.Millisecond,
			LogBufferLines:     1000,
			SubscriberBuffer:   256,
			ReconcileInterval:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		API: APIConfig{
			Listen: "127.0.0.1:7777",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Supervisor defaults
	viper.SetDefault("supervisor.shell", defaults.Supervisor.Shell)
	viper.SetDefault("supervisor.max_restart_attempts", defaults.Supervisor.MaxRestartAttempts)
	viper.SetDefault("supervisor.restart_delay", defaults.Supervisor.RestartDelay)
	viper.SetDefault("supervisor.stop_grace_period", defaults.Supervisor.StopGracePeriod)
	viper.SetDefault("supervisor.restart_pause", defaults.Supervisor.RestartPause)
	viper.SetDefault("supervisor.log_buffer_lines", defaults.Supervisor.LogBufferLines)
	viper.SetDefault("supervisor.subscriber_buffer", defaults.Supervisor.SubscriberBuffer)
	viper.SetDefault("supervisor.reconcile_interval", defaults.Supervisor.ReconcileInterval)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// API defaults
	viper.SetDefault("api.listen", defaults.API.Listen)

	// History defaults
	viper.SetDefault("history.enabled", defaults.History.Enabled)

	// Paths defaults
	viper.SetDefault("paths.projects_file", defaults.Paths.ProjectsFile)
	viper.SetDefault("paths.history_db", defaults.Paths.HistoryDB)
}

// decodeHook lets config files say "2s" or "750ms" for duration fields.
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if the
// loaded configuration is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "devboot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devboot"
	}
	return filepath.Join(home, ".config", "devboot")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LogDir returns the directory holding devboot.log
func LogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

// ResolveProjectsFile resolves the project list location
func (p PathsConfig) ResolveProjectsFile() string {
	if p.ProjectsFile != "" {
		return expandHome(p.ProjectsFile)
	}
	return filepath.Join(ConfigDir(), "projects.json")
}

// ResolveHistoryDB resolves the journal database location
func (p PathsConfig) ResolveHistoryDB() string {
	if p.HistoryDB != "" {
		return expandHome(p.HistoryDB)
	}
	return filepath.Join(ConfigDir(), "history.db")
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
