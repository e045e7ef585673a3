package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentskills/skillkit/pkg/config"
	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/presenter"
)

// appConfig is loaded once the persistent flags are parsed.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "skillkit",
	Short: "Validated skill contracts for autonomous social media agents",
	Long: `skillkit validates and dispatches agent skills (transcription, downloads,
content and image generation, video rendering) and detects platform trends
through pluggable MCP and generative AI backends.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle (loadConfig reads rootCmd's flags).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd.Context(), viper.GetViper())
	}

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt or json)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Path of the .env file to load")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress informational output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(trendsCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env, the config file and the environment into appConfig
// and applies the logging settings.
func loadConfig(ctx context.Context, v *viper.Viper) error {
	envFile, _ := rootCmd.PersistentFlags().GetString("env-file")
	config.LoadEnv(ctx, envFile)

	if err := config.Init(v); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	if err := logger.SetLogLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logger.SetLogFormat(cfg.LogFormat)

	if quiet, _ := rootCmd.PersistentFlags().GetBool("quiet"); quiet {
		presenter.SetQuiet(true)
	}

	appConfig = cfg
	return nil
}

func main() {
	ctx := context.Background()
	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "")
		fmt.Fprintln(os.Stderr, "Run 'skillkit --help' for usage.")
		os.Exit(1)
	}
}
