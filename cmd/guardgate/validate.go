package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

Every problem is reported with the configuration field it concerns, so a
broken file can be fixed in a single pass.

Examples:
  # Validate the default config
  guardgate validate

  # Validate a specific file
  guardgate validate --config /etc/guardgate/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Configuration invalid (%d problems):\n", len(verr.Errors))
			for _, fieldErr := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
			return fmt.Errorf("validation failed")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Listen address:  %s\n", cfg.Proxy.ListenAddress)
	fmt.Printf("  Upstream:        %s\n", cfg.Upstream.BaseURL)
	fmt.Printf("  Guard service:   %s\n", cfg.Guard.ServiceURL)
	fmt.Printf("  Cache backend:   %s\n", cfg.Cache.Backend)
	fmt.Printf("  Allowlist:       %d entries\n", len(cfg.Allowlist))
	return nil
}
