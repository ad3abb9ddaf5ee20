package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/storefrontd/internal/monitor"
)

// statsCmd prints per-store catalog and usage statistics
var statsCmd = &cobra.Command{
	Use:   "stats [slug]",
	Short: "Show store statistics",
	Long: `Show catalog and usage statistics for one store, or for every loaded
store when no slug is given.

Examples:
  # All stores
  storefrontctl stats

  # One store
  storefrontctl stats acme-pets`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	addr := resolveAddr()
	client := monitor.NewAdminClient(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(args) == 1 {
		status, err := client.StoreStats(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to reach %s: %w", addr, err)
		}
		printStore(cmd, status)
		return nil
	}

	result, err := client.Stores(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", addr, err)
	}
	if len(result.Stores) == 0 {
		cmd.Println("no stores loaded")
		return nil
	}
	for i, st := range result.Stores {
		if i > 0 {
			cmd.Println()
		}
		printStore(cmd, st)
	}
	return nil
}

func printStore(cmd *cobra.Command, st monitor.StoreStatus) {
	cmd.Printf("%s (%s)\n", st.Slug, st.StoreName)
	cmd.Printf("  Products:   %d\n", st.Products)
	cmd.Printf("  Index size: %d\n", st.IndexSize)
	if len(st.Categories) > 0 {
		cmd.Printf("  Categories: %s\n", strings.Join(st.Categories, ", "))
	}
	if c := st.Counters; c != nil {
		cmd.Printf("  Updates:    %s\n", monitor.FormatCount(c.Updates))
		cmd.Printf("  Searches:   %s (hits %s, misses %s)\n",
			monitor.FormatCount(c.Searches), monitor.FormatCount(c.Hits), monitor.FormatCount(c.NoResults))
		cmd.Printf("  Trolls:     %s\n", monitor.FormatCount(c.Trolls))
		cmd.Printf("  Failures:   %s\n", monitor.FormatCount(c.Failures))
	}
}
