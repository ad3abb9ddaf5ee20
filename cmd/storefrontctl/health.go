package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/storefrontd/internal/monitor"
)

// healthCmd checks daemon health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check storefrontd daemon health",
	Long: `Check the health of a running storefrontd daemon.

Examples:
  # Check the local daemon
  storefrontctl health

  # Check a daemon on another host
  storefrontctl health --addr http://10.0.0.5:8080`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	addr := resolveAddr()
	client := monitor.NewAdminClient(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", addr, err)
	}

	cmd.Printf("Status:  %s\n", health.Status)
	cmd.Printf("Stores:  %d\n", health.Stores)
	cmd.Printf("Uptime:  %s\n", monitor.FormatDuration(health.Uptime))
	cmd.Printf("Address: %s\n", addr)
	return nil
}
