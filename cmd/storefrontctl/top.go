package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/storefrontd/internal/monitor"
)

var topInterval time.Duration

func init() {
	topCmd.Flags().DurationVar(&topInterval, "interval", 2*time.Second, "refresh interval")
}

// topCmd runs the live terminal dashboard
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live daemon dashboard",
	Long: `Run a live terminal dashboard showing webhook rates, search hit rates
and per-store counters, refreshed on an interval.

Examples:
  # Watch the local daemon
  storefrontctl top

  # Slower refresh against a remote daemon
  storefrontctl top --addr http://10.0.0.5:8080 --interval 10s`,
	RunE: runTop,
}

func runTop(cmd *cobra.Command, args []string) error {
	model := monitor.NewModel(resolveAddr(), topInterval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
