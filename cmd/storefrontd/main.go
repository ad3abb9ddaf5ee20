// Package main implements the storefrontd daemon, a multi-tenant host for
// Telegram storefront bots.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// cfgFile is the --config flag shared by all subcommands
var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storefrontd",
	Short: "Multi-tenant Telegram storefront daemon",
	Long: `storefrontd hosts many independent Telegram shop bots in one process.

Each store is a directory under the stores root carrying its own bot token,
catalog and prompts. The daemon builds a semantic search index per store and
routes webhook updates arriving at /webhook/{slug} to the right bot.

Running storefrontd without a subcommand starts the daemon, same as
"storefrontd serve".`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("storefrontd by Fyrsmith Labs\n")
		cmd.Printf("Version:    %s\n", version)
		cmd.Printf("Commit:     %s\n", gitCommit)
		cmd.Printf("Build Date: %s\n", buildDate)
	},
}
