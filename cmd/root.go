package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentic-research/buildverify/internal/logging"
)

// cfg holds settings resolved from flags, BUILDVERIFY_* environment
// variables and an optional config file, in that order of precedence.
var cfg = viper.New()

var configPath string

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a config file (yaml, toml or json)")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error")
	flags.String("log-dir", "", "Directory for rotated log files")
	flags.Bool("no-color", false, "Disable colored output")
	_ = cfg.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = cfg.BindPFlag("log_dir", flags.Lookup("log-dir"))
	_ = cfg.BindPFlag("no_color", flags.Lookup("no-color"))

	cfg.SetEnvPrefix("BUILDVERIFY")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
}

var rootCmd = &cobra.Command{
	Use:           "buildverify",
	Short:         "Verify incremental builds against scripted scenarios",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			cfg.SetConfigFile(configPath)
			if err := cfg.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		}
		level, err := parseLevel(cfg.GetString("log_level"))
		if err != nil {
			return err
		}
		logging.Init(logging.Options{
			Level:  level,
			Dir:    cfg.GetString("log_dir"),
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
		})
		if cfg.GetBool("no_color") {
			color.NoColor = true
		}
		return nil
	},
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
