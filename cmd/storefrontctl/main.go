// Package main implements the storefrontctl CLI for operating a running
// storefrontd daemon over its admin API.
package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var (
	// daemonAddr is the base URL for the storefrontd admin API
	daemonAddr string
	// version information
	version = "dev"
)

const defaultAddr = "http://localhost:8080"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storefrontctl",
	Short: "CLI for operating a running storefrontd daemon",
	Long: `storefrontctl talks to the admin API of a running storefrontd daemon.
It provides commands for checking health, inspecting store statistics,
reloading stores and watching a live dashboard.

The daemon address is resolved in order:
  1. --addr flag
  2. STOREFRONTCTL_ADDR environment variable
  3. addr key in ~/.config/storefrontctl/config.toml
  4. ` + defaultAddr,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", "", "storefrontd address (default "+defaultAddr+")")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(topCmd)
}

// ctlConfig is the optional on-disk CLI configuration.
type ctlConfig struct {
	Addr string `toml:"addr"`
}

// resolveAddr picks the daemon address from the flag, the environment, the
// config file, or the default, in that order.
func resolveAddr() string {
	if daemonAddr != "" {
		return daemonAddr
	}
	if env := os.Getenv("STOREFRONTCTL_ADDR"); env != "" {
		return env
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "storefrontctl", "config.toml")
		var cfg ctlConfig
		if _, err := toml.DecodeFile(path, &cfg); err == nil && cfg.Addr != "" {
			return cfg.Addr
		}
	}
	return defaultAddr
}
