package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/audit"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/cli"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/config"
)

var auditFlags struct {
	limit  int
	format string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the block-event audit store",
	Long: `Query and maintain the persistent record of guard block events.

Block events carry the scan direction, client address, failed scanners,
and a hash of the offending content. The content itself is never stored.`,
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent block events",
	Long: `Show the most recent block events, newest first.

Examples:
  # Show the last 20 block events
  guardgate audit recent --limit 20

  # Machine-readable output
  guardgate audit recent --format json`,
	RunE: auditRecent,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete block events past the retention window",
	Long: `Delete block events older than the configured retention period.

The running server prunes on its own schedule; this command forces a
pass immediately, for example after shortening the retention window.`,
	RunE: auditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditRecentCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditRecentCmd.Flags().IntVar(&auditFlags.limit, "limit", 20, "maximum events to show")
	auditRecentCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
}

func openAuditStore() (*audit.Store, *config.Config, error) {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	store, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return nil, nil, cli.NewCommandError("audit", err)
	}
	return store, cfg, nil
}

func auditRecent(cmd *cobra.Command, args []string) error {
	store, _, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	events, err := store.Recent(ctx, auditFlags.limit)
	if err != nil {
		return cli.NewCommandError("audit recent", err)
	}

	if auditFlags.format == string(cli.FormatJSON) {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, events)
	}

	if len(events) == 0 {
		fmt.Println("No block events recorded.")
		return nil
	}

	total, err := store.Count(ctx)
	if err != nil {
		return cli.NewCommandError("audit recent", err)
	}

	fmt.Printf("Showing %d of %d block events (newest first):\n\n", len(events), total)
	for _, event := range events {
		fmt.Printf("%s  %-6s  %-15s  %s\n",
			event.CreatedAt.Format("2006-01-02 15:04:05"),
			event.Direction,
			event.ClientID,
			event.Message,
		)
		for _, scanner := range event.FailedScanners {
			fmt.Printf("    - %s: %s (score %.2f)\n", scanner.Scanner, scanner.Reason, scanner.Score)
		}
	}
	return nil
}

func auditPrune(cmd *cobra.Command, args []string) error {
	store, cfg, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Audit.RetentionDays <= 0 {
		fmt.Println("Retention is unlimited (retention_days: 0); nothing to prune.")
		return nil
	}

	pruner := audit.NewPruner(store, cfg.Audit.RetentionDays, cfg.Audit.PruneSchedule)
	removed, err := pruner.PruneNow(context.Background())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Printf("✓ Removed %d block events older than %d days\n", removed, cfg.Audit.RetentionDays)
	return nil
}
