package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/presenter"
	"github.com/agentskills/skillkit/pkg/server"
	"github.com/agentskills/skillkit/pkg/skills"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host string
	Port int
}

var serveCmd = withTracing(&cobra.Command{
	Use:   "serve",
	Short: "Start the skill API server",
	Long: `Start an HTTP server that lists the registered skills, invokes them one at a
time or in batches, runs trend queries and reports recorded outcomes.

Host and port default to server.host and server.port from the configuration.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServeCommand(cmd.Context(), getServeConfigFromFlags(cmd))
	},
})

func init() {
	serveCmd.Flags().String("host", "", "Host to bind the API server to (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "Port to bind the API server to (overrides server.port)")
}

// getServeConfigFromFlags starts from the loaded configuration and applies
// any flags the user set.
func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := &ServeConfig{
		Host: appConfig.Server.Host,
		Port: appConfig.Server.Port,
	}

	if cmd.Flags().Changed("host") {
		config.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		config.Port, _ = cmd.Flags().GetInt("port")
	}

	return config
}

// validateServeConfig validates the serve configuration
func validateServeConfig(config *ServeConfig) error {
	if config.Host == "" {
		return errors.New("host cannot be empty")
	}

	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return errors.Errorf("invalid host: %s", config.Host)
			}
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	if config.Port < 1024 {
		logger.G(context.Background()).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	return nil
}

func runServeCommand(ctx context.Context, config *ServeConfig) error {
	if err := validateServeConfig(config); err != nil {
		return errors.Wrap(err, "invalid server configuration")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := newBackends(ctx, appConfig)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	srv, err := server.NewServer(&server.Config{Host: config.Host, Port: config.Port}, server.Deps{
		Registry: skills.NewRegistry(),
		Service:  b.router,
		Store:    b.store,
		Detector: b.detector,
		Options:  skillOptions(appConfig),
	})
	if err != nil {
		return err
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"host": config.Host,
		"port": config.Port,
	}).Info("starting skill API server")
	presenter.Info("Press Ctrl+C to stop the server")

	if err := srv.Start(ctx); err != nil {
		return err
	}

	presenter.Success(fmt.Sprintf("Server on %s:%d stopped", config.Host, config.Port))
	return nil
}
