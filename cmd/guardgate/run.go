package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/cli"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/config"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/server"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the GuardGate proxy server",
	Long: `Start the GuardGate proxy server with the specified configuration.

The server listens on the configured address and proxies inference requests
through the guard pipeline, admission controller, and rate limiter.

Examples:
  # Start with default config
  guardgate run

  # Start with custom config
  guardgate run --config /etc/guardgate/config.yaml

  # Override listen address
  guardgate run --listen 0.0.0.0:8080

  # Validate config without starting the server
  guardgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger := logging.Setup(cfg.Telemetry.Logging)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("GuardGate v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	srv, err := server.New(cfg, server.Options{
		Logger:     logger,
		ConfigPath: cfgFile,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Printf("✓ Server listening on %s\n", cfg.Proxy.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Proxy.ListenAddress)
	if *cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(cli.SetupSignalHandler()); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}
