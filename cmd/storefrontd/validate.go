package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/config"
	"github.com/fyrsmithlabs/storefrontd/internal/store"
)

var validateStoresRoot string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate stores without serving",
	Long: `Validate every store under the stores root and print a verdict per
store without starting the daemon.

Examples:
  # Validate the configured stores root
  storefrontd validate

  # Validate a specific directory
  storefrontd validate --stores-root ./stores`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateStoresRoot, "stores-root", "", "stores root to validate (defaults to the configured one)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	root := validateStoresRoot
	if root == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		root = cfg.Stores.Root
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read stores root %s: %w", root, err)
	}

	var valid, invalid int
	// Slugs collide case-insensitively, same as in the registry.
	seen := make(map[string]string)

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		slug := strings.ToLower(entry.Name())
		if prev, dup := seen[slug]; dup {
			invalid++
			cmd.Printf("%-24s FAIL  slug collides with %s\n", entry.Name(), prev)
			continue
		}
		seen[slug] = entry.Name()

		sc, err := store.New(filepath.Join(root, entry.Name()), zap.NewNop())
		if err != nil {
			invalid++
			cmd.Printf("%-24s FAIL  %v\n", entry.Name(), err)
			continue
		}
		valid++
		cmd.Printf("%-24s ok    %q, %d products\n", sc.Slug(), sc.Config().StoreName, len(sc.Catalog()))
	}

	cmd.Printf("\n%d valid, %d invalid\n", valid, invalid)
	if invalid > 0 {
		return fmt.Errorf("%d store(s) failed validation", invalid)
	}
	return nil
}
