package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guardgate",
	Short: "GuardGate - security-enforcing reverse proxy for LLM backends",
	Long: `GuardGate is a reverse proxy that sits between API clients and an LLM
inference backend, scanning prompts and generated output for policy
violations before they cross the wire.

It provides:
  - Input and output content scanning with mid-stream abort
  - Admission control bounding concurrent upstream generations
  - Per-client sliding-window rate limiting
  - Client IP allowlisting
  - A persistent audit trail of blocked requests`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
