package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/devboot/internal/cmd/config"
	appconfig "github.com/Iron-Ham/devboot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "devboot",
	Short: "Supervise local development processes",
	Long: `DevBoot runs your development servers, watchers and tools as supervised
projects. Each project is a directory plus the shell commands to run in it.
DevBoot captures their output, restarts them when they crash and lets you
send them input.

Run 'devboot serve' to start the supervisor, then control it with the other
commands or open the dashboard with 'devboot ui'.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/devboot/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "supervisor log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	config.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath("$HOME/.config/devboot")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DEVBOOT")
	// DEVBOOT_API_LISTEN overrides api.listen
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
