// Command claudestation is the CLI surface over the core ClaudeStation
// packages — the debugging/scripting entrypoint a GUI shell would
// otherwise own exclusively. Bootstrap follows the teacher's
// cobra+viper layering (cmd/pinocchio/main.go, cmd/pinocchio/cmds/config.go):
// a root command whose PersistentPreRun re-initialises logging once
// flags are parsed, and viper owning the config file + env var layer
// beneath explicit flags.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"claudestation/internal/logging"
)

var (
	flagLogLevel    string
	flagPretty      bool
	flagDBPath      string
	flagAPIKey      string
	flagPricingFile string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claudestation",
		Short: "ClaudeStation: token-economical desktop client for long Claude conversations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Init(logging.Options{Level: viper.GetString("log-level"), Pretty: flagPretty})
		},
	}

	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "trace|debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&flagPretty, "pretty-log", true, "human-readable console logging instead of JSON")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db", defaultDBPath(), "path to the SQLite database file")
	cmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Anthropic API key (falls back to ANTHROPIC_API_KEY)")
	cmd.PersistentFlags().StringVar(&flagPricingFile, "pricing-file", "", "path to a YAML file overriding the built-in model pricing table")

	initViper(cmd)

	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newCompressCmd())
	return cmd
}

// initViper layers config.yaml (if present) and CLAUDESTATION_*
// environment variables beneath the flags declared above, mirroring
// the teacher's viper.ConfigFileUsed()-driven config editor (the
// config file here is read-only from the CLI's perspective; there is
// no `claudestation config set` analogue since every setting the spec
// exposes is per-project, stored in Store, not in a global file).
func initViper(cmd *cobra.Command) {
	viper.SetEnvPrefix("claudestation")
	viper.AutomaticEnv()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigDir())
	_ = viper.ReadInConfig() // absent config file is not an error

	_ = viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("db", cmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("api-key", cmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("pricing-file", cmd.PersistentFlags().Lookup("pricing-file"))
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".claudestation")
}

func defaultDBPath() string {
	return filepath.Join(defaultConfigDir(), "claude_station.db")
}

func resolveAPIKey() string {
	if flagAPIKey != "" {
		return flagAPIKey
	}
	if v := viper.GetString("api-key"); v != "" {
		return v
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

func resolveDBPath() string {
	if v := viper.GetString("db"); v != "" {
		return v
	}
	return flagDBPath
}

func resolvePricingFile() string {
	if flagPricingFile != "" {
		return flagPricingFile
	}
	return viper.GetString("pricing-file")
}
