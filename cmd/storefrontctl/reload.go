package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/storefrontd/internal/monitor"
)

var reloadAllStores bool

func init() {
	reloadCmd.Flags().BoolVar(&reloadAllStores, "all", false, "rescan the whole stores root")
}

// reloadCmd reloads one store from disk or rescans the stores root
var reloadCmd = &cobra.Command{
	Use:   "reload [slug]",
	Short: "Reload a store from disk",
	Long: `Reload one store's files from disk, or rescan the whole stores root
with --all. A rescan picks up stores that were added or removed.

Reloading rebuilds the store's embedding index, so it can take a while
for large catalogs.

Examples:
  # Reload one store
  storefrontctl reload acme-pets

  # Rescan the stores root
  storefrontctl reload --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReload,
}

func runReload(cmd *cobra.Command, args []string) error {
	if reloadAllStores && len(args) > 0 {
		return fmt.Errorf("--all cannot be combined with a slug")
	}
	if !reloadAllStores && len(args) == 0 {
		return fmt.Errorf("slug required (or --all)")
	}

	addr := resolveAddr()
	client := monitor.NewAdminClient(addr)

	// Reloads rebuild embedding indexes, give them room
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if reloadAllStores {
		result, err := client.ReloadAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to reach %s: %w", addr, err)
		}
		cmd.Printf("Rescanned: %d stores loaded\n", result.Stores)
		return nil
	}

	result, err := client.Reload(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", addr, err)
	}
	cmd.Printf("Reloaded %s: %d products\n", result.Slug, result.Products)
	return nil
}
